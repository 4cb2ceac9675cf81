package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/patients"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// PatientDirectory resolves patient contact details.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// Service sends booking lifecycle emails to patients. Every method is
// best-effort: callers fire these after their transaction commits and a
// failed email never rolls a booking back.
type Service struct {
	email  EmailSender
	dir    PatientDirectory
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, dir PatientDirectory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, dir: dir, logger: logger}
}

func (s *Service) send(ctx context.Context, b *booking.Booking, subject, body string) error {
	if s.email == nil || s.dir == nil {
		s.logger.Debug("notify: email not configured, skipping", "appointment_id", b.ID)
		return nil
	}
	patientID, err := uuid.Parse(b.PatientID)
	if err != nil {
		s.logger.Warn("notify: booking has non-uuid patient id", "patient_id", b.PatientID)
		return nil
	}
	patient, err := s.dir.GetByID(ctx, patientID)
	if err != nil {
		s.logger.Error("notify: patient lookup failed", "error", err, "patient_id", b.PatientID)
		return fmt.Errorf("notify: patient lookup: %w", err)
	}
	if patient.Email == "" {
		s.logger.Debug("notify: patient has no email", "patient_id", b.PatientID)
		return nil
	}
	if err := s.email.Send(ctx, EmailMessage{
		To:      patient.Email,
		ToName:  patient.FullName,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return err
	}
	return nil
}

func appointmentLine(b *booking.Booking) string {
	return fmt.Sprintf("%s at %s (token %d)",
		b.AppointmentDate.Format("Monday, January 2, 2006"), b.AppointmentTime, b.TokenNumber)
}

// BookingCreated is sent when a booking row is first created. Pending
// online bookings get payment instructions instead of a confirmation.
func (s *Service) BookingCreated(ctx context.Context, b *booking.Booking) error {
	if b.Status == booking.StatusPendingPayment {
		return s.send(ctx, b, "Complete payment to confirm your appointment",
			fmt.Sprintf(`Your appointment request for %s is being held.

Please complete payment within the hold window or the slot will be released.
`, appointmentLine(b)))
	}
	return s.send(ctx, b, "Your appointment is confirmed",
		fmt.Sprintf(`Your appointment is confirmed for %s.

Please arrive 10 minutes early and bring your patient card.
`, appointmentLine(b)))
}

// PaymentConfirmed is sent when a pending booking becomes confirmed.
func (s *Service) PaymentConfirmed(ctx context.Context, b *booking.Booking) error {
	return s.send(ctx, b, "Payment received - appointment confirmed",
		fmt.Sprintf(`We received your payment. Your appointment is confirmed for %s.
`, appointmentLine(b)))
}

// BookingCancelled is sent after a cancellation commits.
func (s *Service) BookingCancelled(ctx context.Context, b *booking.Booking, refundDue bool) error {
	body := fmt.Sprintf("Your appointment for %s has been cancelled.\n", appointmentLine(b))
	if refundDue {
		body += "\nA refund has been initiated and should reach you within a few business days.\n"
	} else if b.PaymentStatus == booking.PaymentPaid {
		body += "\nPer hospital policy the booking fee is non-refundable for patient cancellations.\n"
	}
	return s.send(ctx, b, "Appointment cancelled", body)
}

// BookingRescheduled is sent to the patient with the new slot details.
func (s *Service) BookingRescheduled(ctx context.Context, old, updated *booking.Booking) error {
	return s.send(ctx, updated, "Appointment rescheduled",
		fmt.Sprintf(`Your appointment originally set for %s has been moved.

New appointment: %s
`, appointmentLine(old), appointmentLine(updated)))
}

// BookingExpired is sent by the sweeper when a payment hold lapses.
func (s *Service) BookingExpired(ctx context.Context, b *booking.Booking) error {
	return s.send(ctx, b, "Appointment hold expired",
		fmt.Sprintf(`Your hold for %s expired because payment was not completed in time.

The slot has been released. You are welcome to book again.
`, appointmentLine(b)))
}
