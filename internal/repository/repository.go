// Package repository implements all database queries for the registration
// ledger. It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gandalf-events/ledger/internal/model"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event and assigns it a generated UUID.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, name, created_at) VALUES ($1, $2, $3)`,
		event.ID, event.Name, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, created_at FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const accessLevelColumns = `id, event_id, name, capacity, price, public, hidden, requires_login, has_comment, created_at`

// AccessLevelRepository handles persistence for access levels.
type AccessLevelRepository struct {
	db *pgxpool.Pool
}

// NewAccessLevelRepository constructs an AccessLevelRepository.
func NewAccessLevelRepository(db *pgxpool.Pool) *AccessLevelRepository {
	return &AccessLevelRepository{db: db}
}

// Create inserts a new access level and assigns it a generated UUID.
func (r *AccessLevelRepository) Create(ctx context.Context, al *model.AccessLevel) error {
	if al.ID == "" {
		al.ID = uuid.New().String()
	}
	al.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO access_levels (`+accessLevelColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		al.ID, al.EventID, al.Name, al.Capacity, al.Price,
		al.Public, al.Hidden, al.RequiresLogin, al.HasComment, al.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert access level: %w", err)
	}
	return nil
}

// GetByID returns a single access level or ErrNotFound.
func (r *AccessLevelRepository) GetByID(ctx context.Context, id string) (*model.AccessLevel, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accessLevelColumns+` FROM access_levels WHERE id = $1`, id,
	)
	al, err := scanAccessLevel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get access level: %w", err)
	}
	return al, nil
}

// ListByEvent returns all access levels for an event, ordered by name.
func (r *AccessLevelRepository) ListByEvent(ctx context.Context, eventID string) ([]model.AccessLevel, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accessLevelColumns+` FROM access_levels WHERE event_id = $1 ORDER BY name ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list access levels: %w", err)
	}
	defer rows.Close()

	var levels []model.AccessLevel
	for rows.Next() {
		al, err := scanAccessLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access level: %w", err)
		}
		levels = append(levels, *al)
	}
	return levels, rows.Err()
}

// Update persists tier changes. Shrinking the capacity does not evict
// existing registrations; the ceiling only applies to subsequent writes.
func (r *AccessLevelRepository) Update(ctx context.Context, al *model.AccessLevel) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE access_levels
		 SET name = $2, capacity = $3, price = $4, public = $5, hidden = $6,
		     requires_login = $7, has_comment = $8
		 WHERE id = $1`,
		al.ID, al.Name, al.Capacity, al.Price,
		al.Public, al.Hidden, al.RequiresLogin, al.HasComment,
	)
	if err != nil {
		return fmt.Errorf("update access level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a tier that has no registrations. The registration count
// is checked under a row lock so a concurrent registration cannot slip in
// between check and delete.
func (r *AccessLevelRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var lockedID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM access_levels WHERE id = $1 FOR UPDATE`, id,
	).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock access level: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE access_level_id = $1`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	if count > 0 {
		return ErrTierInUse
	}

	if _, err = tx.Exec(ctx, `DELETE FROM access_levels WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete access level: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccessLevel(row rowScanner) (*model.AccessLevel, error) {
	var al model.AccessLevel
	err := row.Scan(
		&al.ID, &al.EventID, &al.Name, &al.Capacity, &al.Price,
		&al.Public, &al.Hidden, &al.RequiresLogin, &al.HasComment, &al.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &al, nil
}
