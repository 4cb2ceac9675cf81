package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/branch"
	"github.com/caresync-health/booking-platform/internal/identity"
)

// CancelParams describes a cancellation request.
type CancelParams struct {
	BookingID uuid.UUID
	Actor     identity.Actor
	Reason    string

	// Confirmed must be true; cancellation is never implicit.
	Confirmed bool

	// ForDoctorRequest marks a staff cancellation made on the doctor's
	// behalf, which grants the patient elevated reschedule allowance.
	ForDoctorRequest bool

	Settings *branch.Settings
}

// CancelResult carries the cancelled booking and whether branch policy
// calls for a refund attempt.
type CancelResult struct {
	Booking   *Booking
	RefundDue bool
}

func lockBooking(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	b, err := scanBooking(tx.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: lock row: %w", err)
	}
	return b, nil
}

// Cancel transitions a booking to cancelled, frees its slot and records the
// audit trail, all in one transaction. Patient cancellations never touch
// payment state; staff cancellations on the doctor's behalf may owe a refund
// per branch policy (issued by the caller after commit).
func (l *Ledger) Cancel(ctx context.Context, p CancelParams) (*CancelResult, error) {
	if !p.Confirmed {
		return nil, policyErr(RuleConfirmationFlag, "cancellation requires explicit confirmation")
	}
	if p.Settings == nil {
		return nil, fmt.Errorf("booking: cancel: branch settings required")
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := lockBooking(ctx, tx, p.BookingID)
	if err != nil {
		return nil, err
	}

	if p.Actor.Role == identity.RolePatient && b.PatientID != p.Actor.ID {
		return nil, ErrForbidden
	}
	if !b.Status.Cancellable() {
		return nil, fmt.Errorf("status %s: %w", b.Status, ErrNotCancellable)
	}

	loc := p.Settings.Location()
	if p.Actor.Role == identity.RolePatient && p.Settings.CancellationAdvanceHours > 0 {
		apptAt, err := b.AppointmentAt(loc)
		if err != nil {
			return nil, err
		}
		cutoff := time.Duration(p.Settings.CancellationAdvanceHours) * time.Hour
		if time.Now().In(loc).Add(cutoff).After(apptAt) {
			return nil, policyErr(RuleCancellationCutoff,
				"cancellation requires at least %d hours notice", p.Settings.CancellationAdvanceHours)
		}
	}

	prev := b.Status
	now := time.Now().UTC()
	forDoctor := p.ForDoctorRequest && p.Actor.Role.Staff()

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1, cancelled_at = $2, cancellation_reason = $3,
		    cancelled_by = $4, cancelled_by_admin_for_doctor = cancelled_by_admin_for_doctor OR $5
		WHERE id = $6`,
		StatusCancelled, now, p.Reason, p.Actor.ID, forDoctor, b.ID)
	if err != nil {
		return nil, fmt.Errorf("booking: update cancel: %w", err)
	}

	entry := audit.Entry{
		AppointmentID:   b.ID,
		Action:          audit.ActionCancelled,
		PerformedBy:     p.Actor.ID,
		PerformedByRole: string(p.Actor.Role),
		PreviousStatus:  string(prev),
		NewStatus:       string(StatusCancelled),
		Reason:          p.Reason,
	}
	if forDoctor {
		entry.Metadata = map[string]string{"for_doctor_request": "true"}
	}
	if err := l.recorder.Record(ctx, tx, entry); err != nil {
		return nil, err
	}

	// Patient cancellations keep the payment; make that explicit in the log.
	if p.Actor.Role == identity.RolePatient && b.PaymentStatus == PaymentPaid {
		if err := l.recorder.Record(ctx, tx, audit.Entry{
			AppointmentID:   b.ID,
			Action:          audit.ActionPaymentRetained,
			PerformedBy:     p.Actor.ID,
			PerformedByRole: string(p.Actor.Role),
			Reason:          "payment retained, non-refundable",
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("booking: commit cancel: %w", err)
	}

	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = p.Reason
	b.CancelledBy = p.Actor.ID
	b.CancelledByAdminForDoctor = b.CancelledByAdminForDoctor || forDoctor

	refundDue := forDoctor && p.Settings.RefundOnCancellation && b.PaymentStatus == PaymentPaid
	return &CancelResult{Booking: b, RefundDue: refundDue}, nil
}

// MarkRefunded flips payment status to refunded after the gateway confirms,
// with its own audit entry.
func (l *Ledger) MarkRefunded(ctx context.Context, bookingID uuid.UUID, actor identity.Actor, paymentRef string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin refund: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `UPDATE bookings SET payment_status = $1 WHERE id = $2`,
		PaymentRefunded, bookingID)
	if err != nil {
		return fmt.Errorf("booking: mark refunded: %w", err)
	}

	if err := l.recorder.Record(ctx, tx, audit.Entry{
		AppointmentID:   bookingID,
		Action:          audit.ActionRefundIssued,
		PerformedBy:     actor.ID,
		PerformedByRole: string(actor.Role),
		Metadata:        map[string]string{"payment_ref": paymentRef},
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit refund: %w", err)
	}
	return nil
}

// RecordRefundFailure appends an audit entry when the gateway rejects a
// refund the branch policy owed. Payment status stays paid so the failure
// can be retried by hand.
func (l *Ledger) RecordRefundFailure(ctx context.Context, bookingID uuid.UUID, actor identity.Actor, cause string) error {
	return l.recorder.Record(ctx, l.pool, audit.Entry{
		AppointmentID:   bookingID,
		Action:          audit.ActionRefundFailed,
		PerformedBy:     actor.ID,
		PerformedByRole: string(actor.Role),
		Reason:          cause,
	})
}
