package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gandalf-events/ledger/internal/audit"
	"github.com/gandalf-events/ledger/internal/model"
)

// Memory is an in-memory implementation of every store interface, sharing
// one mutex so the capacity check-then-commit region is atomic exactly like
// the postgres transaction. Intended for tests and local development
// without a database.
type Memory struct {
	mu            sync.Mutex
	events        map[string]model.Event
	accessLevels  map[string]model.AccessLevel
	registrations map[string]model.Registration
	auditEntries  []audit.Entry
}

// NewMemory constructs an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		events:        make(map[string]model.Event),
		accessLevels:  make(map[string]model.AccessLevel),
		registrations: make(map[string]model.Registration),
	}
}

// Events returns the in-memory EventStore.
func (m *Memory) Events() EventStore { return &memoryEvents{m} }

// AccessLevels returns the in-memory AccessLevelStore.
func (m *Memory) AccessLevels() AccessLevelStore { return &memoryAccessLevels{m} }

// Registrations returns the in-memory RegistrationStore.
func (m *Memory) Registrations() RegistrationStore { return &memoryRegistrations{m} }

// Audit returns the in-memory AuditStore.
func (m *Memory) Audit() AuditStore { return &memoryAudit{m} }

type memoryEvents struct{ m *Memory }

func (e *memoryEvents) Create(_ context.Context, event *model.Event) error {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()
	e.m.events[event.ID] = *event
	return nil
}

func (e *memoryEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	event, ok := e.m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (e *memoryEvents) List(_ context.Context) ([]model.Event, error) {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	events := make([]model.Event, 0, len(e.m.events))
	for _, event := range e.m.events {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

type memoryAccessLevels struct{ m *Memory }

func (a *memoryAccessLevels) Create(_ context.Context, al *model.AccessLevel) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if al.ID == "" {
		al.ID = uuid.New().String()
	}
	al.CreatedAt = time.Now().UTC()
	a.m.accessLevels[al.ID] = *al
	return nil
}

func (a *memoryAccessLevels) GetByID(_ context.Context, id string) (*model.AccessLevel, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	al, ok := a.m.accessLevels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &al, nil
}

func (a *memoryAccessLevels) ListByEvent(_ context.Context, eventID string) ([]model.AccessLevel, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	var levels []model.AccessLevel
	for _, al := range a.m.accessLevels {
		if al.EventID == eventID {
			levels = append(levels, al)
		}
	}
	sort.Slice(levels, func(i, j int) bool {
		return strings.ToLower(levels[i].Name) < strings.ToLower(levels[j].Name)
	})
	return levels, nil
}

func (a *memoryAccessLevels) Update(_ context.Context, al *model.AccessLevel) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	current, ok := a.m.accessLevels[al.ID]
	if !ok {
		return ErrNotFound
	}
	al.CreatedAt = current.CreatedAt
	a.m.accessLevels[al.ID] = *al
	return nil
}

func (a *memoryAccessLevels) Delete(_ context.Context, id string) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if _, ok := a.m.accessLevels[id]; !ok {
		return ErrNotFound
	}
	for _, reg := range a.m.registrations {
		if reg.AccessLevelID == id {
			return ErrTierInUse
		}
	}
	delete(a.m.accessLevels, id)
	return nil
}

type memoryRegistrations struct{ m *Memory }

func (r *memoryRegistrations) Create(ctx context.Context, reg *model.Registration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	al, ok := r.m.accessLevels[reg.AccessLevelID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range r.m.registrations {
		if existing.PaymentCode == reg.PaymentCode {
			return ErrPaymentCodeCollision
		}
	}
	if err := r.checkStudentNumberLocked(reg); err != nil {
		return err
	}

	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	reg.CreatedAt = now
	reg.UpdatedAt = now

	// Write, recount, undo on overshoot: same shape as the postgres
	// transaction, with the mutex standing in for the row lock.
	r.m.registrations[reg.ID] = *reg
	if al.Capacity != nil && r.countLocked(reg.AccessLevelID) > *al.Capacity {
		delete(r.m.registrations, reg.ID)
		return ErrCapacityExceeded
	}

	r.appendAuditLocked(audit.Diff(nil, reg), ActorFrom(ctx), now)
	return nil
}

func (r *memoryRegistrations) Update(ctx context.Context, reg *model.Registration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	prev, ok := r.m.registrations[reg.ID]
	if !ok {
		return ErrNotFound
	}
	al, ok := r.m.accessLevels[reg.AccessLevelID]
	if !ok {
		return ErrNotFound
	}
	if reg.StudentNumber != prev.StudentNumber {
		if err := r.checkStudentNumberLocked(reg); err != nil {
			return err
		}
	}
	if reg.PaymentCode != prev.PaymentCode {
		for _, existing := range r.m.registrations {
			if existing.ID != reg.ID && existing.PaymentCode == reg.PaymentCode {
				return ErrPaymentCodeCollision
			}
		}
	}

	now := time.Now().UTC()
	reg.CreatedAt = prev.CreatedAt
	reg.UpdatedAt = now

	r.m.registrations[reg.ID] = *reg
	if prev.AccessLevelID != reg.AccessLevelID &&
		al.Capacity != nil && r.countLocked(reg.AccessLevelID) > *al.Capacity {
		r.m.registrations[reg.ID] = prev
		return ErrCapacityExceeded
	}

	r.appendAuditLocked(audit.Diff(&prev, reg), ActorFrom(ctx), now)
	return nil
}

func (r *memoryRegistrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	reg, ok := r.m.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &reg, nil
}

func (r *memoryRegistrations) ListByEvent(_ context.Context, eventID string, paidOnly bool) ([]model.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var regs []model.Registration
	for _, reg := range r.m.registrations {
		if reg.EventID != eventID {
			continue
		}
		if paidOnly && !reg.IsPaid() {
			continue
		}
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		return strings.ToLower(regs[i].Name) < strings.ToLower(regs[j].Name)
	})
	return regs, nil
}

func (r *memoryRegistrations) FindByPaymentCode(_ context.Context, code string) (*model.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, reg := range r.m.registrations {
		if reg.PaymentCode == code {
			found := reg
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRegistrations) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.registrations[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.registrations, id)
	return nil
}

func (r *memoryRegistrations) countLocked(accessLevelID string) int {
	count := 0
	for _, reg := range r.m.registrations {
		if reg.AccessLevelID == accessLevelID {
			count++
		}
	}
	return count
}

func (r *memoryRegistrations) checkStudentNumberLocked(reg *model.Registration) error {
	if reg.StudentNumber == "" || reg.EventID == "" {
		return nil
	}
	for _, existing := range r.m.registrations {
		if existing.ID != reg.ID &&
			existing.EventID == reg.EventID &&
			existing.StudentNumber == reg.StudentNumber {
			return ErrDuplicateStudentNumber
		}
	}
	return nil
}

func (r *memoryRegistrations) appendAuditLocked(entries []audit.Entry, actor string, now time.Time) {
	for _, e := range entries {
		e.ID = uuid.New().String()
		e.Actor = actor
		e.CreatedAt = now
		r.m.auditEntries = append(r.m.auditEntries, e)
	}
}

type memoryAudit struct{ m *Memory }

func (a *memoryAudit) History(_ context.Context, registrationID, field string) ([]audit.Entry, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	var entries []audit.Entry
	// auditEntries is append-only, so slice order is commit order.
	for _, e := range a.m.auditEntries {
		if e.RegistrationID == registrationID && e.Field == field {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
