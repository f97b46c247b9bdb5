package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/gandalf-events/ledger/internal/metrics"
	"github.com/gandalf-events/ledger/internal/model"
	"github.com/gandalf-events/ledger/internal/repository"
)

var paymentCodeFormat = regexp.MustCompile(`^GAN\d{17}$`)

type RegistrationServiceSuite struct {
	suite.Suite
	ctx      context.Context
	mem      *repository.Memory
	events   *EventService
	regs     *RegistrationService
	notifier *recordingNotifier
	event    *model.Event
	tier     *model.AccessLevel
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = repository.NewMemory()
	s.notifier = &recordingNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	s.events = NewEventService(s.mem.Events(), s.mem.AccessLevels())
	s.regs = NewRegistrationService(s.mem.Registrations(), s.mem.AccessLevels(), s.mem.Audit(), s.notifier, m)

	event, err := s.events.CreateEvent(s.ctx, model.CreateEventRequest{Name: "Galabal"})
	s.Require().NoError(err)
	s.event = event

	tier, err := s.events.CreateAccessLevel(s.ctx, event.ID, model.CreateAccessLevelRequest{
		Name:   "Standard",
		Price:  "10.00",
		Public: true,
	})
	s.Require().NoError(err)
	s.tier = tier
}

func (s *RegistrationServiceSuite) register(name, email string) *model.Registration {
	reg, err := s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name:          name,
		Email:         email,
		AccessLevelID: s.tier.ID,
	})
	s.Require().NoError(err)
	return reg
}

func (s *RegistrationServiceSuite) TestRegister() {
	reg := s.register("Ada Lovelace", "Ada@Example.com")

	s.Regexp(paymentCodeFormat, reg.PaymentCode)
	s.Equal("ada@example.com", reg.Email)
	s.Equal(int64(1000), reg.Price) // tier price in cents
	s.Equal(int64(0), reg.Paid)
	s.False(reg.IsPaid())
	s.Equal(int64(1000), reg.AmountOwed())
	s.Empty(reg.Barcode)
}

func (s *RegistrationServiceSuite) TestRegisterExplicitAmounts() {
	reg, err := s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name:          "Grace Hopper",
		Email:         "grace@example.com",
		AccessLevelID: s.tier.ID,
		Paid:          "12,50",
		Price:         "12.50",
	})
	s.Require().NoError(err)
	s.Equal(int64(1250), reg.Paid)
	s.Equal(int64(1250), reg.Price)
	s.True(reg.IsPaid())
}

func (s *RegistrationServiceSuite) TestRegisterValidation() {
	_, err := s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Email:         "not-an-email",
		StudentNumber: "12ab34",
		AccessLevelID: s.tier.ID,
		Paid:          "abc",
	})
	var verr *model.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "name")
	s.Contains(verr.Fields, "email")
	s.Contains(verr.Fields, "student_number")
	s.Contains(verr.Fields, "paid")
}

func (s *RegistrationServiceSuite) TestRegisterUnknownTier() {
	_, err := s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name:          "Ada",
		Email:         "ada@example.com",
		AccessLevelID: "nope",
	})
	var verr *model.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "access_level_id")
}

func (s *RegistrationServiceSuite) TestRegisterRequiresStudentNumber() {
	tier, err := s.events.CreateAccessLevel(s.ctx, s.event.ID, model.CreateAccessLevelRequest{
		Name:          "Members",
		Price:         "5.00",
		RequiresLogin: true,
	})
	s.Require().NoError(err)

	_, err = s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name:          "Ada",
		Email:         "ada@example.com",
		AccessLevelID: tier.ID,
	})
	var verr *model.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "student_number")

	_, err = s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name:          "Ada",
		Email:         "ada@example.com",
		AccessLevelID: tier.ID,
		StudentNumber: "01234567",
	})
	s.NoError(err)
}

func (s *RegistrationServiceSuite) TestRegisterSoldOut() {
	capacity := 1
	tier, err := s.events.CreateAccessLevel(s.ctx, s.event.ID, model.CreateAccessLevelRequest{
		Name:     "VIP",
		Price:    "25.00",
		Capacity: &capacity,
	})
	s.Require().NoError(err)

	_, err = s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name: "Ada", Email: "ada@example.com", AccessLevelID: tier.ID,
	})
	s.Require().NoError(err)

	_, err = s.regs.Register(s.ctx, s.event.ID, model.CreateRegistrationRequest{
		Name: "Grace", Email: "grace@example.com", AccessLevelID: tier.ID,
	})
	s.Require().ErrorIs(err, repository.ErrCapacityExceeded)

	regs, err := s.regs.ListRegistrations(s.ctx, s.event.ID, false)
	s.Require().NoError(err)
	s.Len(regs, 1)
}

func (s *RegistrationServiceSuite) TestUpdatePaid() {
	reg := s.register("Ada", "ada@example.com")

	paid := "10.00"
	updated, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{Paid: &paid})
	s.Require().NoError(err)
	s.Equal(int64(1000), updated.Paid)
	s.True(updated.IsPaid())

	history, err := s.regs.AuditHistory(s.ctx, reg.ID, "paid")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("0", history[1].OldValue)
	s.Equal("1000", history[1].NewValue)
}

func (s *RegistrationServiceSuite) TestUpdateToPay() {
	reg := s.register("Ada", "ada@example.com")

	toPay := "2.50"
	updated, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{ToPay: &toPay})
	s.Require().NoError(err)
	s.Equal(int64(750), updated.Paid)
	s.Equal(int64(250), updated.AmountOwed())
}

func (s *RegistrationServiceSuite) TestUpdatePaidAndToPayRejected() {
	reg := s.register("Ada", "ada@example.com")

	paid, toPay := "5.00", "5.00"
	_, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{Paid: &paid, ToPay: &toPay})
	var verr *model.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "paid")
}

func (s *RegistrationServiceSuite) TestPaymentCodeImmutableAcrossUpdates() {
	reg := s.register("Ada", "ada@example.com")
	code := reg.PaymentCode

	paid := "10.00"
	updated, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{Paid: &paid})
	s.Require().NoError(err)
	s.Equal(code, updated.PaymentCode)

	history, err := s.regs.AuditHistory(s.ctx, reg.ID, "payment_code")
	s.Require().NoError(err)
	s.Len(history, 1) // only the initial assignment
}

func (s *RegistrationServiceSuite) TestGenerateBarcodeIdempotent() {
	reg := s.register("Ada", "ada@example.com")

	first, err := s.regs.GenerateBarcode(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Len(first.BarcodeData, 12)
	s.Len(first.Barcode, 13)
	s.Equal(first.BarcodeData, first.Barcode[:12])

	second, err := s.regs.GenerateBarcode(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(first.Barcode, second.Barcode)
	s.Equal(first.BarcodeData, second.BarcodeData)
}

func (s *RegistrationServiceSuite) TestCheckIn() {
	reg := s.register("Ada", "ada@example.com")

	checked, err := s.regs.CheckIn(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Require().NotNil(checked.CheckedInAt)

	// A second scan is a no-op, not a new audit entry.
	again, err := s.regs.CheckIn(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(checked.CheckedInAt, again.CheckedInAt)

	history, err := s.regs.AuditHistory(s.ctx, reg.ID, "checked_in_at")
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *RegistrationServiceSuite) TestMatchPaymentFromText() {
	reg := s.register("Ada", "ada@example.com")

	found, err := s.regs.MatchPaymentFromText(s.ctx, "ref "+reg.PaymentCode+" settled")
	s.Require().NoError(err)
	s.Equal(reg.ID, found.ID)

	_, err = s.regs.MatchPaymentFromText(s.ctx, "no code in this line")
	s.Require().ErrorIs(err, repository.ErrNotFound)

	_, err = s.regs.MatchPaymentFromText(s.ctx, "ref GAN99999999999999999 settled")
	s.Require().ErrorIs(err, repository.ErrNotFound)
}

func (s *RegistrationServiceSuite) TestAuditHistoryRejectsUntrackedField() {
	reg := s.register("Ada", "ada@example.com")

	_, err := s.regs.AuditHistory(s.ctx, reg.ID, "email")
	var verr *model.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "field")
}

func (s *RegistrationServiceSuite) TestListPaidOnly() {
	s.register("Ada", "ada@example.com")
	reg := s.register("Grace", "grace@example.com")

	paid := "10.00"
	_, err := s.regs.UpdateRegistration(s.ctx, reg.ID, model.UpdateRegistrationRequest{Paid: &paid})
	s.Require().NoError(err)

	all, err := s.regs.ListRegistrations(s.ctx, s.event.ID, false)
	s.Require().NoError(err)
	s.Len(all, 2)

	settled, err := s.regs.ListRegistrations(s.ctx, s.event.ID, true)
	s.Require().NoError(err)
	s.Require().Len(settled, 1)
	s.Equal("Grace", settled[0].Name)
}

func (s *RegistrationServiceSuite) TestDeleteRegistrationKeepsHistory() {
	reg := s.register("Ada", "ada@example.com")
	s.Require().NoError(s.regs.DeleteRegistration(s.ctx, reg.ID))

	_, err := s.regs.GetRegistration(s.ctx, reg.ID)
	s.Require().ErrorIs(err, repository.ErrNotFound)

	history, err := s.regs.AuditHistory(s.ctx, reg.ID, "payment_code")
	s.Require().NoError(err)
	s.Len(history, 1)
}
