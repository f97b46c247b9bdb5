package repository

import (
	"context"

	"github.com/gandalf-events/ledger/internal/audit"
	"github.com/gandalf-events/ledger/internal/model"
)

// EventStore handles persistence for events.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
}

// AccessLevelStore handles persistence for access levels (tiers).
type AccessLevelStore interface {
	Create(ctx context.Context, al *model.AccessLevel) error
	GetByID(ctx context.Context, id string) (*model.AccessLevel, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.AccessLevel, error)
	Update(ctx context.Context, al *model.AccessLevel) error
	// Delete removes a tier; ErrTierInUse while registrations exist.
	Delete(ctx context.Context, id string) error
}

// RegistrationStore handles persistence for registrations. Create and
// Update run the capacity guard inside the same transaction as the write
// and append audit entries for tracked field changes; either everything
// commits or nothing does.
type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration) error
	Update(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string, paidOnly bool) ([]model.Registration, error)
	FindByPaymentCode(ctx context.Context, code string) (*model.Registration, error)
	Delete(ctx context.Context, id string) error
}

// AuditStore reads the append-only change history.
type AuditStore interface {
	// History returns all entries for one field of one registration,
	// ordered oldest first.
	History(ctx context.Context, registrationID, field string) ([]audit.Entry, error)
}
