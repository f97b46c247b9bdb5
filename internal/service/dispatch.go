package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gandalf-events/ledger/internal/model"
	"github.com/gandalf-events/ledger/internal/money"
)

// Notifier is the boundary to the delivery layer. The dispatcher only
// decides which signal to emit; actual message delivery lives behind this
// interface.
type Notifier interface {
	SendTicket(ctx context.Context, reg *model.Registration) error
	SendOverpaymentNotice(ctx context.Context, reg *model.Registration) error
	SendPendingConfirmation(ctx context.Context, reg *model.Registration) error
}

// Deliver decides and emits the downstream notification for a
// registration: a barcode is generated first if missing, then a settled
// registration gets its ticket (plus an overpayment notice when paid
// exceeds price), and an unsettled one gets a pending-payment
// confirmation.
func (s *RegistrationService) Deliver(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := s.GenerateBarcode(ctx, id)
	if err != nil {
		return nil, err
	}

	if !reg.IsPaid() {
		s.metrics.DeliverySignals.WithLabelValues("pending_confirmation").Inc()
		if err := s.notifier.SendPendingConfirmation(ctx, reg); err != nil {
			return nil, fmt.Errorf("send pending confirmation: %w", err)
		}
		return reg, nil
	}

	s.metrics.DeliverySignals.WithLabelValues("ticket").Inc()
	if err := s.notifier.SendTicket(ctx, reg); err != nil {
		return nil, fmt.Errorf("send ticket: %w", err)
	}
	if reg.Paid > reg.Price {
		s.metrics.DeliverySignals.WithLabelValues("overpayment_notice").Inc()
		if err := s.notifier.SendOverpaymentNotice(ctx, reg); err != nil {
			return nil, fmt.Errorf("send overpayment notice: %w", err)
		}
	}
	return reg, nil
}

// LogNotifier is a Notifier that only logs. Used until a real mailer is
// wired in, and handy in development.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) SendTicket(_ context.Context, reg *model.Registration) error {
	n.Logger.Info("send ticket",
		"registration_id", reg.ID, "email", reg.Email, "barcode", reg.Barcode)
	return nil
}

func (n *LogNotifier) SendOverpaymentNotice(_ context.Context, reg *model.Registration) error {
	n.Logger.Info("send overpayment notice",
		"registration_id", reg.ID, "email", reg.Email,
		"overpaid", money.Format(-reg.AmountOwed()))
	return nil
}

func (n *LogNotifier) SendPendingConfirmation(_ context.Context, reg *model.Registration) error {
	n.Logger.Info("send pending confirmation",
		"registration_id", reg.ID, "email", reg.Email,
		"amount_owed", money.Format(reg.AmountOwed()))
	return nil
}
