package model

import (
	"fmt"

	"github.com/gandalf-events/ledger/internal/money"
)

// externalFields maps known external payload keys to assignment functions.
// An explicit table instead of reflection: an unknown key is rejected so
// upstream contract drift surfaces immediately instead of being silently
// dropped.
var externalFields = map[string]func(*Registration, string) error{
	"name": func(r *Registration, v string) error {
		r.Name = v
		return nil
	},
	"email": func(r *Registration, v string) error {
		r.Email = v
		return nil
	},
	"student_number": func(r *Registration, v string) error {
		r.StudentNumber = v
		return nil
	},
	"comment": func(r *Registration, v string) error {
		r.Comment = v
		return nil
	},
	"paid": func(r *Registration, v string) error {
		cents, err := money.ToCents(v)
		if err != nil {
			return err
		}
		r.Paid = cents
		return nil
	},
	"price": func(r *Registration, v string) error {
		cents, err := money.ToCents(v)
		if err != nil {
			return err
		}
		r.Price = cents
		return nil
	},
}

// ApplyExternalFields assigns values from an external key/value payload
// (e.g. an imported attribute set) onto the registration. Unknown keys are
// an error, not a no-op.
func ApplyExternalFields(r *Registration, fields map[string]string) error {
	for key, value := range fields {
		assign, ok := externalFields[key]
		if !ok {
			return fmt.Errorf("unknown external field %q", key)
		}
		if err := assign(r, value); err != nil {
			return fmt.Errorf("external field %q: %w", key, err)
		}
	}
	return nil
}
