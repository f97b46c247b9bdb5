package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gandalf-events/ledger/internal/audit"
	"github.com/gandalf-events/ledger/internal/model"
)

const registrationColumns = `id, event_id, access_level_id, name, email, student_number, comment,
	paid, price, payment_code, barcode, barcode_data, checked_in_at, created_at, updated_at`

// uniqueViolation is the postgres error code the payment-code index raises
// on a colliding insert.
const uniqueViolation = "23505"

// RegistrationRepository handles persistence for registrations.
//
// Every write that can change a tier's registration count runs inside one
// transaction that (1) takes a row-level lock on the access level, (2)
// performs the write, (3) recounts the tier's registrations and rolls the
// whole thing back when the count overshoots the capacity. The row lock
// serialises concurrent writers on the same tier, so two of them can never
// both observe a free slot and both commit.
//
// Audit entries for the tracked fields (paid, payment_code, checked_in_at)
// are appended inside the same transaction: either the change and its
// history commit together, or neither does.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration under the capacity guard. The payment code
// must already be assigned by the caller; a colliding code surfaces as
// ErrPaymentCodeCollision so the caller can retry with a fresh draw.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the tier row first; holding it across write and recount is what
	// keeps the capacity check race-free.
	capacity, err := lockAccessLevel(ctx, tx, reg.AccessLevelID)
	if err != nil {
		return err
	}

	if err = checkStudentNumber(ctx, tx, reg); err != nil {
		return err
	}

	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		reg.ID, nullable(reg.EventID), reg.AccessLevelID, reg.Name, reg.Email,
		reg.StudentNumber, reg.Comment, reg.Paid, reg.Price, reg.PaymentCode,
		reg.Barcode, reg.BarcodeData, reg.CheckedInAt, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		if isPaymentCodeViolation(err) {
			return ErrPaymentCodeCollision
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	if err = checkCapacity(ctx, tx, reg.AccessLevelID, capacity); err != nil {
		return err
	}

	if err = appendAuditEntries(ctx, tx, audit.Diff(nil, reg), ActorFrom(ctx), now); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Update persists registration changes and appends audit entries for every
// tracked field that moved. If the registration changed tier, the new tier
// is recounted under its row lock.
func (r *RegistrationRepository) Update(ctx context.Context, reg *model.Registration) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Tier lock before the registration row lock, same order as Create,
	// so concurrent create/update pairs cannot deadlock.
	capacity, err := lockAccessLevel(ctx, tx, reg.AccessLevelID)
	if err != nil {
		return err
	}

	row := tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`,
		reg.ID,
	)
	prev, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock registration: %w", err)
	}

	if reg.StudentNumber != prev.StudentNumber {
		if err = checkStudentNumber(ctx, tx, reg); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	reg.CreatedAt = prev.CreatedAt
	reg.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`UPDATE registrations
		 SET event_id = $2, access_level_id = $3, name = $4, email = $5,
		     student_number = $6, comment = $7, paid = $8, price = $9,
		     payment_code = $10, barcode = $11, barcode_data = $12,
		     checked_in_at = $13, updated_at = $14
		 WHERE id = $1`,
		reg.ID, nullable(reg.EventID), reg.AccessLevelID, reg.Name, reg.Email,
		reg.StudentNumber, reg.Comment, reg.Paid, reg.Price, reg.PaymentCode,
		reg.Barcode, reg.BarcodeData, reg.CheckedInAt, reg.UpdatedAt,
	)
	if err != nil {
		if isPaymentCodeViolation(err) {
			return ErrPaymentCodeCollision
		}
		return fmt.Errorf("update registration: %w", err)
	}

	// Moving between tiers can fill the destination; recount it.
	if prev.AccessLevelID != reg.AccessLevelID {
		if err = checkCapacity(ctx, tx, reg.AccessLevelID, capacity); err != nil {
			return err
		}
	}

	if err = appendAuditEntries(ctx, tx, audit.Diff(prev, reg), ActorFrom(ctx), now); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns registrations for an event ordered by name. With
// paidOnly set, only settled registrations (price <= paid) are returned.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string, paidOnly bool) ([]model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1`
	if paidOnly {
		query += ` AND price <= paid`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// FindByPaymentCode resolves an exact payment code, or ErrNotFound.
func (r *RegistrationRepository) FindByPaymentCode(ctx context.Context, code string) (*model.Registration, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE payment_code = $1`, code,
	)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find by payment code: %w", err)
	}
	return reg, nil
}

// Delete removes a registration. Audit entries are kept; history must
// outlive the record.
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// lockAccessLevel takes the tier's row lock and returns its capacity
// (nil = unlimited).
func lockAccessLevel(ctx context.Context, tx pgx.Tx, accessLevelID string) (*int, error) {
	var capacity *int
	err := tx.QueryRow(ctx,
		`SELECT capacity FROM access_levels WHERE id = $1 FOR UPDATE`,
		accessLevelID,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock access level: %w", err)
	}
	return capacity, nil
}

// checkCapacity recounts the tier after the write and aborts on overshoot.
// Must run while the tier row lock is held.
func checkCapacity(ctx context.Context, tx pgx.Tx, accessLevelID string, capacity *int) error {
	if capacity == nil {
		return nil
	}
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE access_level_id = $1`,
		accessLevelID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	if count > *capacity {
		return ErrCapacityExceeded
	}
	return nil
}

// checkStudentNumber enforces per-event uniqueness of non-blank student
// numbers.
func checkStudentNumber(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	if reg.StudentNumber == "" || reg.EventID == "" {
		return nil
	}
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM registrations
			WHERE event_id = $1 AND student_number = $2 AND id <> $3
		)`,
		reg.EventID, reg.StudentNumber, reg.ID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check student number: %w", err)
	}
	if exists {
		return ErrDuplicateStudentNumber
	}
	return nil
}

func appendAuditEntries(ctx context.Context, tx pgx.Tx, entries []audit.Entry, actor string, now time.Time) error {
	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO audit_entries (id, registration_id, field, old_value, new_value, actor, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), e.RegistrationID, e.Field, e.OldValue, e.NewValue, actor, now,
		)
		if err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
	}
	return nil
}

func isPaymentCodeViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == "idx_registrations_payment_code"
}

// nullable maps an empty string to NULL for optional UUID columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var reg model.Registration
	var eventID *string
	err := row.Scan(
		&reg.ID, &eventID, &reg.AccessLevelID, &reg.Name, &reg.Email,
		&reg.StudentNumber, &reg.Comment, &reg.Paid, &reg.Price, &reg.PaymentCode,
		&reg.Barcode, &reg.BarcodeData, &reg.CheckedInAt, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if eventID != nil {
		reg.EventID = *eventID
	}
	return &reg, nil
}

// AuditRepository reads the append-only audit history.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// History returns all entries for one tracked field of one registration,
// oldest first. Within one registration the order matches commit order.
func (r *AuditRepository) History(ctx context.Context, registrationID, field string) ([]audit.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, registration_id, field, old_value, new_value, actor, created_at
		 FROM audit_entries
		 WHERE registration_id = $1 AND field = $2
		 ORDER BY created_at ASC, id ASC`,
		registrationID, field,
	)
	if err != nil {
		return nil, fmt.Errorf("audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.RegistrationID, &e.Field, &e.OldValue, &e.NewValue, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
