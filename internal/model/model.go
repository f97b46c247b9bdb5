// Package model defines the core domain types for the registration ledger.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Event is the owner of access levels and registrations. The ledger only
// needs it as a parent record; event management itself lives elsewhere.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessLevel is a purchasable class of admission (a tier) with its own
// price and optional capacity ceiling.
type AccessLevel struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	// Capacity is the maximum number of registrations; nil means unlimited.
	Capacity      *int      `json:"capacity"`
	Price         int64     `json:"price"` // minor units
	Public        bool      `json:"public"`
	Hidden        bool      `json:"hidden"`
	RequiresLogin bool      `json:"requires_login"`
	HasComment    bool      `json:"has_comment"`
	CreatedAt     time.Time `json:"created_at"`
}

// Unlimited reports whether the tier has no capacity ceiling.
func (a *AccessLevel) Unlimited() bool {
	return a.Capacity == nil
}

// Registration represents one entrant's commitment to an access level.
// Paid and Price are minor units throughout; no fractional cent ever
// persists.
type Registration struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id,omitempty"`
	AccessLevelID string     `json:"access_level_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	StudentNumber string     `json:"student_number,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	Paid          int64      `json:"paid"`
	Price         int64      `json:"price"`
	PaymentCode   string     `json:"payment_code"`
	Barcode       string     `json:"barcode,omitempty"`
	BarcodeData   string     `json:"barcode_data,omitempty"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AmountOwed returns the outstanding balance in minor units. Negative when
// overpaid.
func (r *Registration) AmountOwed() int64 {
	return r.Price - r.Paid
}

// IsPaid reports whether the registration is settled in full.
func (r *Registration) IsPaid() bool {
	return r.Paid >= r.Price
}

// CheckedIn reports whether the entrant has been scanned in.
func (r *Registration) CheckedIn() bool {
	return r.CheckedInAt != nil
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name string `json:"name"`
}

// CreateAccessLevelRequest is the payload for creating a tier under an event.
// Price is a decimal string ("12.50" or "12,50"); the service converts it
// to minor units.
type CreateAccessLevelRequest struct {
	Name          string `json:"name"`
	Capacity      *int   `json:"capacity"`
	Price         string `json:"price"`
	Public        bool   `json:"public"`
	Hidden        bool   `json:"hidden"`
	RequiresLogin bool   `json:"requires_login"`
	HasComment    bool   `json:"has_comment"`
}

// UpdateAccessLevelRequest carries partial tier updates; nil fields are
// left untouched. ClearCapacity lifts the ceiling entirely.
type UpdateAccessLevelRequest struct {
	Name          *string `json:"name"`
	Capacity      *int    `json:"capacity"`
	ClearCapacity bool    `json:"clear_capacity"`
	Price         *string `json:"price"`
	Public        *bool   `json:"public"`
	Hidden        *bool   `json:"hidden"`
	RequiresLogin *bool   `json:"requires_login"`
	HasComment    *bool   `json:"has_comment"`
}

// CreateRegistrationRequest is the payload for registering an entrant
// against a tier. Monetary fields are decimal strings. Price falls back to
// the tier's price when omitted; Paid defaults to zero.
type CreateRegistrationRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	StudentNumber string `json:"student_number"`
	AccessLevelID string `json:"access_level_id"`
	Paid          string `json:"paid"`
	Price         string `json:"price"`
	Comment       string `json:"comment"`
}

// UpdateRegistrationRequest carries partial registration updates. Paid and
// ToPay are two ways of moving the same balance: ToPay sets the outstanding
// amount, so paid becomes price - to_pay.
type UpdateRegistrationRequest struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	StudentNumber *string `json:"student_number"`
	Comment       *string `json:"comment"`
	Paid          *string `json:"paid"`
	ToPay         *string `json:"to_pay"`
}

// MatchPaymentRequest carries one imported bank statement line to resolve
// against a payment code.
type MatchPaymentRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ValidationError reports per-field validation failures so the caller can
// correct its input.
type ValidationError struct {
	Fields map[string]string
}

// Add records a failure message for a field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil returns the error when any failure was recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
