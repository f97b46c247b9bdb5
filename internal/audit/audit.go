// Package audit records immutable history for the registration fields that
// matter in a payment dispute. Entries are appended in the same transaction
// as the change they describe and are never updated or pruned.
package audit

import (
	"strconv"
	"time"

	"github.com/gandalf-events/ledger/internal/model"
)

// Tracked field names. Only these produce audit entries.
const (
	FieldPaid        = "paid"
	FieldPaymentCode = "payment_code"
	FieldCheckedInAt = "checked_in_at"
)

// TrackedFields lists the audited fields in a stable order.
var TrackedFields = []string{FieldPaid, FieldPaymentCode, FieldCheckedInAt}

// IsTracked reports whether history is kept for the named field.
func IsTracked(field string) bool {
	switch field {
	case FieldPaid, FieldPaymentCode, FieldCheckedInAt:
		return true
	}
	return false
}

// Entry is one immutable snapshot of a tracked field change.
type Entry struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registration_id"`
	Field          string    `json:"field"`
	OldValue       string    `json:"old_value"`
	NewValue       string    `json:"new_value"`
	Actor          string    `json:"actor,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Diff compares the tracked fields of two registration states and returns
// one entry per changed field. prev may be nil for a freshly created
// record, in which case every non-zero tracked field yields an entry.
// IDs and timestamps are filled in by the store at append time.
func Diff(prev, next *model.Registration) []Entry {
	old := values(prev)
	cur := values(next)

	var entries []Entry
	for _, field := range TrackedFields {
		if old[field] == cur[field] {
			continue
		}
		entries = append(entries, Entry{
			RegistrationID: next.ID,
			Field:          field,
			OldValue:       old[field],
			NewValue:       cur[field],
		})
	}
	return entries
}

func values(r *model.Registration) map[string]string {
	if r == nil {
		return map[string]string{
			FieldPaid:        "",
			FieldPaymentCode: "",
			FieldCheckedInAt: "",
		}
	}
	checkedIn := ""
	if r.CheckedInAt != nil {
		checkedIn = r.CheckedInAt.UTC().Format(time.RFC3339Nano)
	}
	return map[string]string{
		FieldPaid:        strconv.FormatInt(r.Paid, 10),
		FieldPaymentCode: r.PaymentCode,
		FieldCheckedInAt: checkedIn,
	}
}
