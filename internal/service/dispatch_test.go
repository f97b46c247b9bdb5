package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gandalf-events/ledger/internal/model"
)

// recordingNotifier captures the signals Deliver emits, in order.
type recordingNotifier struct {
	signals []string
	fail    string
}

func (n *recordingNotifier) record(signal string) error {
	if n.fail == signal {
		return errors.New("smtp unavailable")
	}
	n.signals = append(n.signals, signal)
	return nil
}

func (n *recordingNotifier) SendTicket(context.Context, *model.Registration) error {
	return n.record("ticket")
}

func (n *recordingNotifier) SendOverpaymentNotice(context.Context, *model.Registration) error {
	return n.record("overpayment_notice")
}

func (n *recordingNotifier) SendPendingConfirmation(context.Context, *model.Registration) error {
	return n.record("pending_confirmation")
}

func (s *RegistrationServiceSuite) TestDeliverUnpaid() {
	reg := s.register("Ada", "ada@example.com")

	delivered, err := s.regs.Deliver(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal([]string{"pending_confirmation"}, s.notifier.signals)
	s.NotEmpty(delivered.Barcode)
}

func (s *RegistrationServiceSuite) TestDeliverPaid() {
	reg := s.register("Ada", "ada@example.com")
	paid := "10.00"
	_, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{Paid: &paid})
	s.Require().NoError(err)

	delivered, err := s.regs.Deliver(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal([]string{"ticket"}, s.notifier.signals)
	s.Len(delivered.Barcode, 13)
}

func (s *RegistrationServiceSuite) TestDeliverOverpaid() {
	reg := s.register("Ada", "ada@example.com")
	paid := "12.00"
	_, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{Paid: &paid})
	s.Require().NoError(err)

	_, err = s.regs.Deliver(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal([]string{"ticket", "overpayment_notice"}, s.notifier.signals)
}

func (s *RegistrationServiceSuite) TestDeliverKeepsExistingBarcode() {
	reg := s.register("Ada", "ada@example.com")
	withBarcode, err := s.regs.GenerateBarcode(s.ctx, reg.ID)
	s.Require().NoError(err)

	delivered, err := s.regs.Deliver(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(withBarcode.Barcode, delivered.Barcode)
}

func (s *RegistrationServiceSuite) TestDeliverNotifierFailure() {
	reg := s.register("Ada", "ada@example.com")
	s.notifier.fail = "pending_confirmation"

	_, err := s.regs.Deliver(s.ctx, reg.ID)
	s.Require().Error(err)
	s.Empty(s.notifier.signals)
}

func TestLogNotifier(t *testing.T) {
	n := &LogNotifier{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	reg := &model.Registration{ID: "r1", Email: "ada@example.com", Price: 1000, Paid: 1200}

	require.NoError(t, n.SendTicket(context.Background(), reg))
	require.NoError(t, n.SendOverpaymentNotice(context.Background(), reg))
	require.NoError(t, n.SendPendingConfirmation(context.Background(), reg))
}
