package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gandalf-events/ledger/internal/model"
)

func TestDiffOnCreate(t *testing.T) {
	reg := &model.Registration{
		ID:          "r1",
		Paid:        0,
		PaymentCode: "GAN01000000000000001",
	}
	entries := Diff(nil, reg)
	require.Len(t, entries, 2)

	require.Equal(t, FieldPaid, entries[0].Field)
	require.Equal(t, "", entries[0].OldValue)
	require.Equal(t, "0", entries[0].NewValue)
	require.Equal(t, "r1", entries[0].RegistrationID)

	require.Equal(t, FieldPaymentCode, entries[1].Field)
	require.Equal(t, "", entries[1].OldValue)
	require.Equal(t, "GAN01000000000000001", entries[1].NewValue)
}

func TestDiffPaidChange(t *testing.T) {
	prev := &model.Registration{ID: "r1", Paid: 0, PaymentCode: "GAN01000000000000001"}
	next := &model.Registration{ID: "r1", Paid: 1250, PaymentCode: "GAN01000000000000001"}

	entries := Diff(prev, next)
	require.Len(t, entries, 1)
	require.Equal(t, FieldPaid, entries[0].Field)
	require.Equal(t, "0", entries[0].OldValue)
	require.Equal(t, "1250", entries[0].NewValue)
}

func TestDiffCheckIn(t *testing.T) {
	checkedIn := time.Date(2026, 2, 14, 20, 30, 0, 0, time.UTC)
	prev := &model.Registration{ID: "r1", PaymentCode: "GAN01000000000000001"}
	next := &model.Registration{ID: "r1", PaymentCode: "GAN01000000000000001", CheckedInAt: &checkedIn}

	entries := Diff(prev, next)
	require.Len(t, entries, 1)
	require.Equal(t, FieldCheckedInAt, entries[0].Field)
	require.Equal(t, "", entries[0].OldValue)
	require.Equal(t, checkedIn.Format(time.RFC3339Nano), entries[0].NewValue)
}

func TestDiffIgnoresUntrackedFields(t *testing.T) {
	prev := &model.Registration{ID: "r1", Name: "Ada", Email: "ada@example.com", PaymentCode: "GAN01000000000000001"}
	next := &model.Registration{ID: "r1", Name: "Grace", Email: "grace@example.com", Comment: "new", Barcode: "4006381333931", PaymentCode: "GAN01000000000000001"}

	require.Empty(t, Diff(prev, next))
}

func TestIsTracked(t *testing.T) {
	require.True(t, IsTracked(FieldPaid))
	require.True(t, IsTracked(FieldPaymentCode))
	require.True(t, IsTracked(FieldCheckedInAt))
	require.False(t, IsTracked("email"))
	require.False(t, IsTracked(""))
}
