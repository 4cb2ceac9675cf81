package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/caresync-health/booking-platform/internal/branch"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/observability/metrics"
	"github.com/caresync-health/booking-platform/internal/payments"
	"github.com/caresync-health/booking-platform/internal/schedule"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("caresync.internal.booking")

// ScheduleDirectory resolves templates and blocked dates.
type ScheduleDirectory interface {
	GetTemplate(ctx context.Context, doctorID, branchID string, weekday time.Weekday) (*schedule.Template, error)
	IsBlocked(ctx context.Context, doctorID, branchID string, date time.Time) (bool, error)
}

// SettingsStore resolves branch booking policy.
type SettingsStore interface {
	Get(ctx context.Context, branchID string) (*branch.Settings, error)
}

// AvailabilityInvalidator drops cached availability after a mutation.
// Implementations must tolerate being called on a nil receiver.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, doctorID, branchID string, date time.Time)
}

// Notifier sends patient-facing messages after a mutation commits. The
// service swallows notifier errors; a failed email never fails a booking.
type Notifier interface {
	BookingCreated(ctx context.Context, b *Booking) error
	PaymentConfirmed(ctx context.Context, b *Booking) error
	BookingCancelled(ctx context.Context, b *Booking, refundDue bool) error
	BookingRescheduled(ctx context.Context, old, updated *Booking) error
}

// ServiceConfig wires the service's collaborators. Ledger, Schedules and
// Settings are required; everything else degrades to a no-op when nil.
type ServiceConfig struct {
	Ledger    *Ledger
	Schedules ScheduleDirectory
	Settings  SettingsStore
	Cache     AvailabilityInvalidator
	Notifier  Notifier
	Gateway   payments.Gateway
	Metrics   *metrics.BookingMetrics
	Logger    *logging.Logger
}

// Service coordinates the booking ledger with branch policy, schedules,
// payments and notifications. Handlers talk to the service, never to the
// ledger directly.
type Service struct {
	ledger    *Ledger
	schedules ScheduleDirectory
	settings  SettingsStore
	cache     AvailabilityInvalidator
	notifier  Notifier
	gateway   payments.Gateway
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewService constructs a booking service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Ledger == nil {
		panic("booking: ledger required")
	}
	if cfg.Schedules == nil {
		panic("booking: schedule directory required")
	}
	if cfg.Settings == nil {
		panic("booking: settings store required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		ledger:    cfg.Ledger,
		schedules: cfg.Schedules,
		settings:  cfg.Settings,
		cache:     cfg.Cache,
		notifier:  cfg.Notifier,
		gateway:   cfg.Gateway,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// BookRequest asks for one or more slots of the same doctor, branch and date.
type BookRequest struct {
	PatientID string
	DoctorID  string
	BranchID  string
	Date      time.Time
	Slots     []int
	Type      Type
	Actor     identity.Actor

	// RebookOf names an admin-cancelled booking being booked again, so the
	// new booking inherits that chain's elevated reschedule allowance.
	RebookOf uuid.UUID
}

// BookResult is the created bookings plus, when payment is required to
// confirm, the prepared payment intent.
type BookResult struct {
	Bookings []Booking        `json:"bookings"`
	Payment  *payments.Intent `json:"payment,omitempty"`
}

// Book validates branch policy and schedule, then books the slots through
// the ledger. Online bookings at branches that require payment are created
// as pending_payment with a prepared payment intent; everything else is
// confirmed immediately.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("caresync.doctor_id", req.DoctorID),
		attribute.String("caresync.branch_id", req.BranchID),
		attribute.String("caresync.date", req.Date.Format(time.DateOnly)),
	)

	if err := s.authorizeBooking(req); err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx, req.BranchID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if req.Type == TypeWalkIn && !settings.AllowWalkIn {
		err := NewPolicyError(RuleWalkInDisabled, "branch %s does not accept walk-ins", req.BranchID)
		s.metrics.ObservePolicyRejection(RuleWalkInDisabled)
		return nil, err
	}
	if err := CheckWindow(req.Date, settings, time.Now()); err != nil {
		s.observePolicy(err)
		return nil, err
	}

	tmpl, err := s.template(ctx, req.DoctorID, req.BranchID, req.Date)
	if err != nil {
		s.observePolicy(err)
		return nil, err
	}

	params := CreateParams{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		BranchID:      req.BranchID,
		Template:      tmpl,
		Date:          req.Date,
		Slots:         req.Slots,
		Type:          req.Type,
		Actor:         req.Actor,
		InitialStatus: StatusConfirmed,
		PaymentStatus: PaymentPending,
	}
	if req.Type == TypeOnline && settings.RequirePaymentForOnline {
		params.InitialStatus = StatusPendingPayment
	}
	if req.RebookOf != uuid.Nil {
		if err := s.applyRebookChain(ctx, &params, req); err != nil {
			return nil, err
		}
	}

	created, err := s.ledger.CreateBatch(ctx, params)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveSlotConflict()
		}
		s.observePolicy(err)
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx, req.DoctorID, req.BranchID, req.Date)
	for i := range created {
		s.metrics.ObserveBookingCreated(req.BranchID, string(req.Type), string(created[i].Status))
		s.notify(ctx, "created", func() error { return s.notifier.BookingCreated(ctx, &created[i]) })
	}

	result := &BookResult{Bookings: created}
	if params.InitialStatus == StatusPendingPayment && s.gateway != nil {
		intent, err := s.prepareIntent(ctx, settings, created, req)
		if err != nil {
			// The hold stands; the patient can retry payment until the
			// window lapses.
			s.logger.Error("payment intent preparation failed", "error", err, "booking_id", created[0].ID)
		} else {
			result.Payment = intent
		}
	}

	s.logger.Info("bookings created",
		"count", len(created), "doctor_id", req.DoctorID, "branch_id", req.BranchID,
		"date", req.Date.Format(time.DateOnly), "status", params.InitialStatus)
	return result, nil
}

func (s *Service) authorizeBooking(req BookRequest) error {
	if !req.Type.Valid() {
		return fmt.Errorf("booking: invalid booking type %q: %w", req.Type, ErrPolicyViolation)
	}
	switch req.Actor.Role {
	case identity.RolePatient:
		if req.Type != TypeOnline {
			return fmt.Errorf("booking: patients may only book online: %w", ErrForbidden)
		}
		if req.Actor.ID != req.PatientID {
			return fmt.Errorf("booking: patient may only book for themselves: %w", ErrForbidden)
		}
	default:
		if !req.Actor.Role.Staff() {
			return fmt.Errorf("booking: unknown actor role %q: %w", req.Actor.Role, ErrForbidden)
		}
	}
	return nil
}

// applyRebookChain loads an admin-cancelled booking and carries its
// reschedule chain into the new booking.
func (s *Service) applyRebookChain(ctx context.Context, params *CreateParams, req BookRequest) error {
	old, err := s.ledger.GetByID(ctx, req.RebookOf)
	if err != nil {
		return err
	}
	if old.PatientID != req.PatientID {
		return fmt.Errorf("booking: rebook of another patient's booking: %w", ErrForbidden)
	}
	if old.Status != StatusCancelled || !old.CancelledByAdminForDoctor {
		return fmt.Errorf("booking: rebook requires an admin-cancelled booking: %w", ErrNotEligible)
	}
	root := old.ChainRoot()
	params.OriginalAppointmentID = &root
	params.RescheduleCount = old.RescheduleCount
	params.PatientRescheduleCount = old.PatientRescheduleCount
	params.AdminGrantedRescheduleCount = old.AdminGrantedRescheduleCount
	params.CancelledByAdminForDoctor = true
	return nil
}

func (s *Service) prepareIntent(ctx context.Context, settings *branch.Settings, created []Booking, req BookRequest) (*payments.Intent, error) {
	fee := settings.DefaultBookingFeeCents
	if req.Type == TypeWalkIn {
		fee = settings.WalkInFeeCents
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("booking: parse patient id: %w", err)
	}
	return s.gateway.Prepare(ctx, payments.PrepareParams{
		BookingID:   created[0].ID,
		PatientID:   patientID,
		AmountCents: fee * len(created),
		Description: fmt.Sprintf("appointment on %s", req.Date.Format(time.DateOnly)),
	})
}

// Cancel cancels a booking through the ledger and, when branch policy owes
// the patient a refund, attempts it against the gateway after commit.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, actor identity.Actor, reason string, confirmed, forDoctor bool) (*Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("caresync.booking_id", bookingID.String()))

	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx, b.BranchID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res, err := s.ledger.Cancel(ctx, CancelParams{
		BookingID:        bookingID,
		Actor:            actor,
		Reason:           reason,
		Confirmed:        confirmed,
		ForDoctorRequest: forDoctor,
		Settings:         settings,
	})
	if err != nil {
		s.observePolicy(err)
		span.RecordError(err)
		return nil, err
	}
	cancelled := res.Booking

	s.metrics.ObserveTransition(string(StatusCancelled))
	s.invalidate(ctx, cancelled.DoctorID, cancelled.BranchID, cancelled.AppointmentDate)

	if res.RefundDue {
		s.refund(ctx, cancelled, actor, settings)
	}
	s.notify(ctx, "cancelled", func() error {
		return s.notifier.BookingCancelled(ctx, cancelled, res.RefundDue)
	})
	return cancelled, nil
}

// refund is best-effort: a gateway failure leaves payment_status paid and
// an audit trail for manual follow-up.
func (s *Service) refund(ctx context.Context, b *Booking, actor identity.Actor, settings *branch.Settings) {
	if s.gateway == nil {
		return
	}
	fee := settings.DefaultBookingFeeCents
	if b.BookingType == TypeWalkIn {
		fee = settings.WalkInFeeCents
	}
	refundRef, err := s.gateway.Refund(ctx, b.ID, fee)
	if err != nil {
		s.logger.Error("refund failed", "error", err, "booking_id", b.ID)
		if auditErr := s.ledger.RecordRefundFailure(ctx, b.ID, actor, err.Error()); auditErr != nil {
			s.logger.Error("refund failure audit write failed", "error", auditErr, "booking_id", b.ID)
		}
		return
	}
	if err := s.ledger.MarkRefunded(ctx, b.ID, actor, refundRef); err != nil {
		s.logger.Error("refund bookkeeping failed", "error", err, "booking_id", b.ID)
		return
	}
	b.PaymentStatus = PaymentRefunded
}

// Eligibility evaluates the reschedule policy for a booking. Patients may
// only inspect their own bookings.
func (s *Service) Eligibility(ctx context.Context, bookingID uuid.UUID, actor identity.Actor) (*Eligibility, error) {
	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role == identity.RolePatient && actor.ID != b.PatientID {
		return nil, ErrForbidden
	}
	settings, err := s.settings.Get(ctx, b.BranchID)
	if err != nil {
		return nil, err
	}
	e := RescheduleEligibility(b, time.Now(), settings.Location())
	return &e, nil
}

// Reschedule moves a booking to a new date and slot.
func (s *Service) Reschedule(ctx context.Context, bookingID uuid.UUID, newDate time.Time, newSlot int, actor identity.Actor) (*Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("caresync.booking_id", bookingID.String()),
		attribute.String("caresync.new_date", newDate.Format(time.DateOnly)),
	)

	old, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx, old.BranchID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := CheckWindow(newDate, settings, time.Now()); err != nil {
		s.observePolicy(err)
		return nil, err
	}
	tmpl, err := s.template(ctx, old.DoctorID, old.BranchID, newDate)
	if err != nil {
		s.observePolicy(err)
		return nil, err
	}

	updated, err := s.ledger.Reschedule(ctx, RescheduleParams{
		BookingID:   bookingID,
		NewDate:     newDate,
		NewSlot:     newSlot,
		NewTemplate: tmpl,
		Actor:       actor,
		Settings:    settings,
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.metrics.ObserveSlotConflict()
		}
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTransition(string(StatusRescheduled))
	s.invalidate(ctx, old.DoctorID, old.BranchID, old.AppointmentDate)
	s.invalidate(ctx, updated.DoctorID, updated.BranchID, updated.AppointmentDate)
	s.notify(ctx, "rescheduled", func() error {
		return s.notifier.BookingRescheduled(ctx, old, updated)
	})
	return updated, nil
}

// Transition applies a staff-driven lifecycle step (check-in, session
// start, completion, no-show, payment confirmation).
func (s *Service) Transition(ctx context.Context, bookingID uuid.UUID, target Status, actor identity.Actor, reason string) (*Booking, error) {
	if !actor.Role.Staff() {
		return nil, fmt.Errorf("booking: transitions are staff-only: %w", ErrForbidden)
	}
	b, err := s.ledger.Transition(ctx, bookingID, target, actor, reason)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(target))
	if target == StatusConfirmed {
		s.notify(ctx, "payment confirmed", func() error {
			return s.notifier.PaymentConfirmed(ctx, b)
		})
	}
	return b, nil
}

// Get returns one booking. Patients may only read their own.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID, actor identity.Actor) (*Booking, error) {
	b, err := s.ledger.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role == identity.RolePatient && actor.ID != b.PatientID {
		return nil, ErrForbidden
	}
	return b, nil
}

// History lists a patient's bookings, newest first.
func (s *Service) History(ctx context.Context, patientID string, actor identity.Actor, limit int) ([]Booking, error) {
	if actor.Role == identity.RolePatient && actor.ID != patientID {
		return nil, ErrForbidden
	}
	return s.ledger.ListByPatient(ctx, patientID, limit)
}

// PreparePayment builds a payment intent for a pending booking.
func (s *Service) PreparePayment(ctx context.Context, bookingID uuid.UUID, actor identity.Actor) (*payments.Intent, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("booking: no payment gateway configured")
	}
	b, err := s.Get(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPendingPayment {
		return nil, fmt.Errorf("booking: %s is not awaiting payment: %w", b.Status, ErrInvalidTransition)
	}
	settings, err := s.settings.Get(ctx, b.BranchID)
	if err != nil {
		return nil, err
	}
	patientID, err := uuid.Parse(b.PatientID)
	if err != nil {
		return nil, fmt.Errorf("booking: parse patient id: %w", err)
	}
	return s.gateway.Prepare(ctx, payments.PrepareParams{
		BookingID:   bookingID,
		PatientID:   patientID,
		AmountCents: settings.DefaultBookingFeeCents,
		Description: fmt.Sprintf("appointment on %s", b.AppointmentDate.Format(time.DateOnly)),
	})
}

// ConfirmPayment verifies the gateway reference and confirms the booking.
func (s *Service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, reference string, actor identity.Actor) (*Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.confirm_payment")
	defer span.End()
	span.SetAttributes(attribute.String("caresync.booking_id", bookingID.String()))

	if s.gateway == nil {
		return nil, fmt.Errorf("booking: no payment gateway configured")
	}
	if err := s.gateway.Confirm(ctx, reference); err != nil {
		span.RecordError(err)
		return nil, err
	}
	b, err := s.ledger.Transition(ctx, bookingID, StatusConfirmed, actor, "payment "+reference)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveTransition(string(StatusConfirmed))
	s.notify(ctx, "payment confirmed", func() error {
		return s.notifier.PaymentConfirmed(ctx, b)
	})
	return b, nil
}

func (s *Service) template(ctx context.Context, doctorID, branchID string, date time.Time) (*schedule.Template, error) {
	tmpl, err := s.schedules.GetTemplate(ctx, doctorID, branchID, date.Weekday())
	if err != nil {
		if errors.Is(err, schedule.ErrTemplateNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	blocked, err := s.schedules.IsBlocked(ctx, doctorID, branchID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, NewPolicyError(RuleDateBlocked,
			"the doctor's schedule is blocked on %s", date.Format(time.DateOnly))
	}
	return tmpl, nil
}

func (s *Service) invalidate(ctx context.Context, doctorID, branchID string, date time.Time) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, doctorID, branchID, date)
}

func (s *Service) notify(ctx context.Context, event string, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		s.logger.Error("notification failed", "event", event, "error", err)
	}
}

func (s *Service) observePolicy(err error) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		s.metrics.ObservePolicyRejection(pe.Rule)
	}
}
