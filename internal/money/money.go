// Package money converts between human-entered decimal amounts and the
// integer minor-unit (cent) representation used everywhere else in the
// ledger. All arithmetic and storage happen in cents; decimals exist only
// at the I/O boundary.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned when an input cannot be parsed as a decimal
// amount after separator normalization.
var ErrInvalidAmount = errors.New("invalid amount")

// ToCents parses a decimal amount like "12.50" or "12,50" into cents (1250).
// Either a dot or a comma is accepted as the decimal separator. Fractional
// digits beyond two are truncated toward zero, never rounded; existing
// records were written with truncating conversion and must keep matching.
func ToCents(input string) (int64, error) {
	s := strings.TrimSpace(input)
	// Normalize the separator; only the first comma counts, a second one
	// fails the digit parse below.
	s = strings.Replace(s, ",", ".", 1)

	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}

	var whole int64
	if intPart != "" {
		var err error
		whole, err = strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
		}
	}

	// Keep at most two fractional digits; the rest is dropped.
	frac := int64(0)
	for i := 0; i < 2; i++ {
		frac *= 10
		if i < len(fracPart) {
			frac += int64(fracPart[i] - '0')
		}
	}

	cents := whole*100 + frac
	if neg {
		cents = -cents
	}
	return cents, nil
}

// FromCents converts cents back to a decimal number for display (1250 → 12.5).
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// Format renders cents with exactly two fractional digits: 1250 → "12.50".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// FormatEuro renders cents as a euro amount for human-facing output.
func FormatEuro(cents int64) string {
	return "€" + Format(cents)
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
