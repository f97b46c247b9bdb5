// Package ident generates the two unguessable identifiers a registration
// carries: the payment code used to reconcile bank transfers, and the
// EAN-13 barcode scanned at the door.
package ident

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// PaymentCodePrefix is the fixed literal every payment code starts with.
const PaymentCodePrefix = "GAN"

// paymentCodeSpace is the size of the random draw: 15 decimal digits.
var paymentCodeSpace = big.NewInt(1_000_000_000_000_000)

// paymentCodePattern matches a payment-code-shaped substring in free text.
// Deliberately loose: bank statement lines glue arbitrary text around the
// code, so we scrape the prefix plus any run of digits and let the lookup
// decide whether it resolves.
var paymentCodePattern = regexp.MustCompile(PaymentCodePrefix + `\d+`)

// NewPaymentCode draws a fresh random payment code. Uniqueness is not
// guaranteed here; the storage layer's unique constraint is the arbiter and
// the caller retries on collision.
func NewPaymentCode() (string, error) {
	n, err := rand.Int(rand.Reader, paymentCodeSpace)
	if err != nil {
		return "", fmt.Errorf("draw payment code: %w", err)
	}
	return FormatPaymentCode(n.Int64()), nil
}

// FormatPaymentCode renders a draw as PREFIX + 2-digit mod-97 check value +
// the 15-digit number itself, both zero-padded.
func FormatPaymentCode(n int64) string {
	return fmt.Sprintf("%s%02d%015d", PaymentCodePrefix, n%97, n)
}

// FindPaymentCode extracts the first payment-code-shaped substring from
// arbitrary text, e.g. an imported bank statement line. Returns false when
// the text contains nothing code-shaped.
func FindPaymentCode(text string) (string, bool) {
	code := paymentCodePattern.FindString(text)
	return code, code != ""
}

// NewBarcodeData draws a 12-digit barcode payload, each digit uniform 0–9.
func NewBarcodeData() (string, error) {
	var b strings.Builder
	b.Grow(12)
	for i := 0; i < 12; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("draw barcode digit: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// EAN13CheckDigit computes the standard EAN-13 check digit over a 12-digit
// payload: digits are summed with alternating 1/3 weights from the left,
// and the check digit is the complement of the sum mod 10.
func EAN13CheckDigit(data string) (byte, error) {
	if len(data) != 12 {
		return 0, fmt.Errorf("barcode payload must be 12 digits, got %d", len(data))
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := data[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("barcode payload must be numeric, got %q", data)
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return byte('0' + check), nil
}

// Barcode appends the EAN-13 check digit to a 12-digit payload, yielding
// the 13-digit code that gets printed on tickets.
func Barcode(data string) (string, error) {
	check, err := EAN13CheckDigit(data)
	if err != nil {
		return "", err
	}
	return data + string(check), nil
}
