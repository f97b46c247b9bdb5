//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"

	"github.com/gandalf-events/ledger/internal/database"
	"github.com/gandalf-events/ledger/internal/model"
)

// newTestPool starts a throwaway postgres container and applies the
// schema. Ryuk reclaims the container after the run.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gandalf_test"),
		tcpostgres.WithUsername("gandalf"),
		tcpostgres.WithPassword("gandalf"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return pool
}

func pgSeed(t *testing.T, pool *pgxpool.Pool, capacity *int) (*model.Event, *model.AccessLevel) {
	t.Helper()

	ctx := context.Background()
	events := NewEventRepository(pool)
	levels := NewAccessLevelRepository(pool)

	event := &model.Event{Name: "Galabal"}
	require.NoError(t, events.Create(ctx, event))

	al := &model.AccessLevel{
		EventID:  event.ID,
		Name:     "Standard",
		Price:    1000,
		Capacity: capacity,
		Public:   true,
	}
	require.NoError(t, levels.Create(ctx, al))
	return event, al
}

var paymentCodeSeq atomic.Int64

func pgRegistration(event *model.Event, al *model.AccessLevel, name, email string) *model.Registration {
	return &model.Registration{
		EventID:       event.ID,
		AccessLevelID: al.ID,
		Name:          name,
		Email:         email,
		Price:         al.Price,
		PaymentCode:   fmt.Sprintf("GAN%017d", paymentCodeSeq.Add(1)),
	}
}

func TestPostgresCapacityUnderConcurrency(t *testing.T) {
	pool := newTestPool(t)
	capacity := 5
	event, al := pgSeed(t, pool, &capacity)
	regs := NewRegistrationRepository(pool)

	ctx := context.Background()
	results := make([]error, 8)
	var g errgroup.Group
	for i := 0; i < len(results); i++ {
		i := i
		g.Go(func() error {
			results[i] = regs.Create(ctx, pgRegistration(event, al, "Attendee", "attendee@example.com"))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	created, rejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, capacity, created)
	require.Equal(t, len(results)-capacity, rejected)

	stored, err := regs.ListByEvent(ctx, event.ID, false)
	require.NoError(t, err)
	require.Len(t, stored, capacity)
}

func TestPostgresPaymentCodeUnique(t *testing.T) {
	pool := newTestPool(t)
	event, al := pgSeed(t, pool, nil)
	regs := NewRegistrationRepository(pool)

	ctx := context.Background()
	first := pgRegistration(event, al, "Ada", "ada@example.com")
	require.NoError(t, regs.Create(ctx, first))

	dup := pgRegistration(event, al, "Grace", "grace@example.com")
	dup.PaymentCode = first.PaymentCode
	require.ErrorIs(t, regs.Create(ctx, dup), ErrPaymentCodeCollision)
}

func TestPostgresDuplicateStudentNumber(t *testing.T) {
	pool := newTestPool(t)
	event, al := pgSeed(t, pool, nil)
	regs := NewRegistrationRepository(pool)

	ctx := context.Background()
	first := pgRegistration(event, al, "Ada", "ada@example.com")
	first.StudentNumber = "01234567"
	require.NoError(t, regs.Create(ctx, first))

	dup := pgRegistration(event, al, "Grace", "grace@example.com")
	dup.StudentNumber = "01234567"
	require.ErrorIs(t, regs.Create(ctx, dup), ErrDuplicateStudentNumber)
}

func TestPostgresAuditHistorySurvivesDelete(t *testing.T) {
	pool := newTestPool(t)
	event, al := pgSeed(t, pool, nil)
	regs := NewRegistrationRepository(pool)
	auditLog := NewAuditRepository(pool)

	ctx := WithActor(context.Background(), "treasurer@example.com")
	reg := pgRegistration(event, al, "Ada", "ada@example.com")
	require.NoError(t, regs.Create(ctx, reg))

	reg.Paid = 1000
	require.NoError(t, regs.Update(ctx, reg))
	require.NoError(t, regs.Delete(ctx, reg.ID))

	history, err := auditLog.History(ctx, reg.ID, "paid")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "0", history[1].OldValue)
	require.Equal(t, "1000", history[1].NewValue)
	require.Equal(t, "treasurer@example.com", history[1].Actor)
}

func TestPostgresTierDeleteGuard(t *testing.T) {
	pool := newTestPool(t)
	event, al := pgSeed(t, pool, nil)
	regs := NewRegistrationRepository(pool)
	levels := NewAccessLevelRepository(pool)

	ctx := context.Background()
	reg := pgRegistration(event, al, "Ada", "ada@example.com")
	require.NoError(t, regs.Create(ctx, reg))
	require.ErrorIs(t, levels.Delete(ctx, al.ID), ErrTierInUse)

	require.NoError(t, regs.Delete(ctx, reg.ID))
	require.NoError(t, levels.Delete(ctx, al.ID))
}
