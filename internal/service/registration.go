package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gandalf-events/ledger/internal/audit"
	"github.com/gandalf-events/ledger/internal/ident"
	"github.com/gandalf-events/ledger/internal/metrics"
	"github.com/gandalf-events/ledger/internal/model"
	"github.com/gandalf-events/ledger/internal/money"
	"github.com/gandalf-events/ledger/internal/repository"
)

// maxPaymentCodeAttempts bounds the generate-insert-retry loop. Collisions
// in a 10^15 space mean the space is effectively saturated (or something is
// badly wrong); either way it must surface, not spin.
const maxPaymentCodeAttempts = 10

// RegistrationService orchestrates the registration ledger: validation,
// money normalization, identifier assignment, and the audit/capacity
// machinery in the store.
type RegistrationService struct {
	registrations repository.RegistrationStore
	accessLevels  repository.AccessLevelStore
	auditLog      repository.AuditStore
	notifier      Notifier
	metrics       *metrics.Metrics
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	registrations repository.RegistrationStore,
	accessLevels repository.AccessLevelStore,
	auditLog repository.AuditStore,
	notifier Notifier,
	m *metrics.Metrics,
) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		accessLevels:  accessLevels,
		auditLog:      auditLog,
		notifier:      notifier,
		metrics:       m,
	}
}

// Register creates a registration against a tier. The payment code is
// assigned before the first persist and never changes afterwards; a
// uniqueness collision on commit triggers a fresh draw, bounded by
// maxPaymentCodeAttempts.
func (s *RegistrationService) Register(ctx context.Context, eventID string, req model.CreateRegistrationRequest) (*model.Registration, error) {
	al, err := s.accessLevels.GetByID(ctx, req.AccessLevelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			var verr model.ValidationError
			verr.Add("access_level_id", "does not exist")
			return nil, &verr
		}
		return nil, fmt.Errorf("get access level: %w", err)
	}
	if eventID != "" && al.EventID != eventID {
		var verr model.ValidationError
		verr.Add("access_level_id", "does not belong to this event")
		return nil, &verr
	}

	var verr model.ValidationError
	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr.Add("name", "is required")
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		verr.Add("email", "is required")
	} else if !isValidEmail(email) {
		verr.Add("email", "has invalid format")
	}
	studentNumber := strings.TrimSpace(req.StudentNumber)
	validateStudentNumber(&verr, studentNumber, al)

	paid := int64(0)
	if req.Paid != "" {
		paid, err = money.ToCents(req.Paid)
		if err != nil {
			verr.Add("paid", "is not a valid amount")
		} else if paid < 0 {
			verr.Add("paid", "must not be negative")
		}
	}
	// Price falls back to the tier's configured price.
	price := al.Price
	if req.Price != "" {
		price, err = money.ToCents(req.Price)
		if err != nil {
			verr.Add("price", "is not a valid amount")
		} else if price < 0 {
			verr.Add("price", "must not be negative")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	reg := &model.Registration{
		EventID:       al.EventID,
		AccessLevelID: al.ID,
		Name:          name,
		Email:         email,
		StudentNumber: studentNumber,
		Comment:       strings.TrimSpace(req.Comment),
		Paid:          paid,
		Price:         price,
	}

	for attempt := 1; ; attempt++ {
		reg.PaymentCode, err = ident.NewPaymentCode()
		if err != nil {
			return nil, fmt.Errorf("generate payment code: %w", err)
		}
		err = s.registrations.Create(ctx, reg)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.metrics.CapacityRejections.Inc()
			return nil, err
		}
		if !errors.Is(err, repository.ErrPaymentCodeCollision) {
			return nil, err
		}
		s.metrics.PaymentCodeRetries.Inc()
		if attempt >= maxPaymentCodeAttempts {
			return nil, repository.ErrPaymentCodeExhausted
		}
	}

	s.metrics.RegistrationsCreated.Inc()
	return reg, nil
}

// UpdateRegistration applies partial changes. Paid can be moved directly or
// through to_pay (the outstanding amount); sending both is rejected. The
// store appends audit entries for any tracked field that moved.
func (s *RegistrationService) UpdateRegistration(ctx context.Context, id string, req model.UpdateRegistrationRequest) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	al, err := s.accessLevels.GetByID(ctx, reg.AccessLevelID)
	if err != nil {
		return nil, fmt.Errorf("get access level: %w", err)
	}

	var verr model.ValidationError
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			verr.Add("name", "is required")
		}
		reg.Name = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email == "" {
			verr.Add("email", "is required")
		} else if !isValidEmail(email) {
			verr.Add("email", "has invalid format")
		}
		reg.Email = email
	}
	if req.StudentNumber != nil {
		studentNumber := strings.TrimSpace(*req.StudentNumber)
		validateStudentNumber(&verr, studentNumber, al)
		reg.StudentNumber = studentNumber
	}
	if req.Comment != nil {
		reg.Comment = strings.TrimSpace(*req.Comment)
	}
	if req.Paid != nil && req.ToPay != nil {
		verr.Add("paid", "cannot be combined with to_pay")
	} else if req.Paid != nil {
		paid, err := money.ToCents(*req.Paid)
		if err != nil {
			verr.Add("paid", "is not a valid amount")
		} else if paid < 0 {
			verr.Add("paid", "must not be negative")
		} else {
			reg.Paid = paid
		}
	} else if req.ToPay != nil {
		toPay, err := money.ToCents(*req.ToPay)
		if err != nil {
			verr.Add("to_pay", "is not a valid amount")
		} else if reg.Price-toPay < 0 {
			verr.Add("to_pay", "would make paid negative")
		} else {
			reg.Paid = reg.Price - toPay
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.registrations.Update(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.metrics.CapacityRejections.Inc()
		}
		return nil, err
	}
	return reg, nil
}

// GetRegistration returns a single registration by ID.
func (s *RegistrationService) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return s.registrations.GetByID(ctx, id)
}

// ListRegistrations returns registrations for an event, optionally only
// the settled ones.
func (s *RegistrationService) ListRegistrations(ctx context.Context, eventID string, paidOnly bool) ([]model.Registration, error) {
	return s.registrations.ListByEvent(ctx, eventID, paidOnly)
}

// DeleteRegistration removes a registration. Terminal; the audit history
// stays behind.
func (s *RegistrationService) DeleteRegistration(ctx context.Context, id string) error {
	return s.registrations.Delete(ctx, id)
}

// GenerateBarcode generates and persists the registration's EAN-13
// barcode. Idempotent: an existing barcode is returned untouched.
func (s *RegistrationService) GenerateBarcode(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.BarcodeData != "" {
		return reg, nil
	}

	data, err := ident.NewBarcodeData()
	if err != nil {
		return nil, fmt.Errorf("generate barcode: %w", err)
	}
	barcode, err := ident.Barcode(data)
	if err != nil {
		return nil, fmt.Errorf("generate barcode: %w", err)
	}
	reg.BarcodeData = data
	reg.Barcode = barcode

	if err := s.registrations.Update(ctx, reg); err != nil {
		return nil, err
	}
	s.metrics.BarcodesGenerated.Inc()
	return reg, nil
}

// CheckIn stamps the registration's check-in time. A second check-in is a
// no-op so door scans can be retried safely.
func (s *RegistrationService) CheckIn(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.CheckedInAt != nil {
		return reg, nil
	}
	now := time.Now().UTC()
	reg.CheckedInAt = &now
	if err := s.registrations.Update(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// MatchPaymentFromText scrapes a payment-code-shaped substring from
// arbitrary text (a bank statement line) and resolves it to a
// registration. Best effort: no code-shaped substring, or no record with
// that code, is ErrNotFound.
func (s *RegistrationService) MatchPaymentFromText(ctx context.Context, text string) (*model.Registration, error) {
	code, ok := ident.FindPaymentCode(text)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.registrations.FindByPaymentCode(ctx, code)
}

// AuditHistory returns the change history of one tracked field, oldest
// first. History survives registration deletion, so no existence check.
func (s *RegistrationService) AuditHistory(ctx context.Context, registrationID, field string) ([]audit.Entry, error) {
	if !audit.IsTracked(field) {
		var verr model.ValidationError
		verr.Add("field", fmt.Sprintf("must be one of: %s", strings.Join(audit.TrackedFields, ", ")))
		return nil, &verr
	}
	return s.auditLog.History(ctx, registrationID, field)
}

func validateStudentNumber(verr *model.ValidationError, studentNumber string, al *model.AccessLevel) {
	if studentNumber == "" {
		if al.RequiresLogin {
			verr.Add("student_number", "is required for this access level")
		}
		return
	}
	if !isDigits(studentNumber) {
		verr.Add("student_number", "has invalid format")
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
