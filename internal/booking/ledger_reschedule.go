package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/branch"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/schedule"
)

// RescheduleParams moves a confirmed booking to a new date and slot.
type RescheduleParams struct {
	BookingID   uuid.UUID
	NewDate     time.Time
	NewSlot     int
	NewTemplate *schedule.Template
	Actor       identity.Actor
	Settings    *branch.Settings
}

// Reschedule terminates the old booking as rescheduled and creates the
// replacement through the same atomic slot-check-and-insert as CreateBatch,
// in one transaction. Payment fields carry forward; attempt counters
// accumulate along the chain via the root back-reference. Patients are
// gated by the policy engine; staff bypass the attempt cap but not the
// 24-hour notice or the slot check.
func (l *Ledger) Reschedule(ctx context.Context, p RescheduleParams) (*Booking, error) {
	if p.Settings == nil {
		return nil, fmt.Errorf("booking: reschedule: branch settings required")
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := lockBooking(ctx, tx, p.BookingID)
	if err != nil {
		return nil, err
	}

	if p.Actor.Role == identity.RolePatient && old.PatientID != p.Actor.ID {
		return nil, ErrForbidden
	}
	if !CanTransition(old.Status, StatusRescheduled) {
		return nil, fmt.Errorf("%s -> %s: %w", old.Status, StatusRescheduled, ErrInvalidTransition)
	}

	loc := p.Settings.Location()
	patientInitiated := p.Actor.Role == identity.RolePatient
	if patientInitiated {
		elig := RescheduleEligibility(old, time.Now(), loc)
		if !elig.CanReschedule {
			return nil, fmt.Errorf("%s: %w", elig.Reason, ErrNotEligible)
		}
	} else if err := CheckRescheduleNotice(old, time.Now(), loc); err != nil {
		return nil, err
	}

	root := old.ChainRoot()
	np := CreateParams{
		PatientID: old.PatientID,
		DoctorID:  old.DoctorID,
		BranchID:  old.BranchID,
		Template:  p.NewTemplate,
		Date:      p.NewDate,
		Slots:     []int{p.NewSlot},
		Type:      old.BookingType,
		Actor:     p.Actor,

		InitialStatus: StatusConfirmed,
		PaymentStatus: old.PaymentStatus,

		OriginalAppointmentID:       &root,
		RescheduleCount:             old.RescheduleCount + 1,
		PatientRescheduleCount:      old.PatientRescheduleCount,
		AdminGrantedRescheduleCount: old.AdminGrantedRescheduleCount,
		CancelledByAdminForDoctor:   old.CancelledByAdminForDoctor,
	}
	if patientInitiated {
		if old.CancelledByAdminForDoctor {
			np.AdminGrantedRescheduleCount++
		} else {
			np.PatientRescheduleCount++
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE bookings SET status = $1 WHERE id = $2`,
		StatusRescheduled, old.ID); err != nil {
		return nil, fmt.Errorf("booking: mark rescheduled: %w", err)
	}

	if err := l.recorder.Record(ctx, tx, audit.Entry{
		AppointmentID:   old.ID,
		Action:          audit.ActionRescheduled,
		PerformedBy:     p.Actor.ID,
		PerformedByRole: string(p.Actor.Role),
		PreviousStatus:  string(old.Status),
		NewStatus:       string(StatusRescheduled),
		Metadata: map[string]string{
			"new_date": p.NewDate.Format(time.DateOnly),
			"new_slot": fmt.Sprintf("%d", p.NewSlot),
		},
	}); err != nil {
		return nil, err
	}

	created, err := l.createInTx(ctx, tx, np)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if uniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("booking: commit reschedule: %w", err)
	}

	nb := created[0]
	l.logger.Info("booking rescheduled",
		"old_booking_id", old.ID, "new_booking_id", nb.ID,
		"new_date", p.NewDate.Format(time.DateOnly), "new_slot", p.NewSlot,
		"actor", p.Actor.ID, "role", p.Actor.Role)
	return &nb, nil
}
