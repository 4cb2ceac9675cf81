package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/caresync-health/booking-platform/internal/branch"
)

// Reschedule allowances. Patients whose appointment was cancelled by staff
// on the doctor's behalf get the elevated admin-granted allowance.
const (
	MaxPatientReschedules      = 1
	MaxAdminGrantedReschedules = 2

	// RescheduleCutoff is how close to the appointment a reschedule may
	// still be requested.
	RescheduleCutoff = 24 * time.Hour
)

// CheckWindow validates an appointment date against the branch's
// advance-booking window, evaluated in the branch's zone.
func CheckWindow(date time.Time, settings *branch.Settings, now time.Time) error {
	loc := settings.Location()
	localNow := now.In(loc)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	if day.Before(today) {
		return NewPolicyError(RuleAdvanceWindow, "appointment date is in the past")
	}
	max := today.AddDate(0, 0, settings.MaxAdvanceBookingDays)
	if day.After(max) {
		return NewPolicyError(RuleAdvanceWindow,
			"bookings may be made at most %d days in advance", settings.MaxAdvanceBookingDays)
	}
	return nil
}

// Eligibility is the reschedule policy verdict for one booking.
type Eligibility struct {
	CanReschedule     bool   `json:"can_reschedule"`
	Reason            string `json:"reason,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts"`
	MaxAttempts       int    `json:"max_attempts"`
	IsAdminCancelled  bool   `json:"is_admin_cancelled"`
}

// CheckRescheduleNotice enforces the 24-hour notice rule in the branch's
// zone. It binds staff and patients alike; only the attempt cap is waived
// for staff.
func CheckRescheduleNotice(b *Booking, now time.Time, loc *time.Location) error {
	apptAt, err := b.AppointmentAt(loc)
	if err != nil {
		return err
	}
	if now.In(loc).Add(RescheduleCutoff).After(apptAt) {
		return fmt.Errorf("reschedule requires at least 24 hours notice: %w", ErrNotEligible)
	}
	return nil
}

// RescheduleEligibility evaluates the policy for a patient-initiated
// reschedule at the given time, in the branch's zone. Counters carry
// forward along the reschedule chain, so the booking's own counters are
// the cumulative chain totals.
func RescheduleEligibility(b *Booking, now time.Time, loc *time.Location) Eligibility {
	e := Eligibility{
		IsAdminCancelled: b.CancelledByAdminForDoctor,
		MaxAttempts:      MaxPatientReschedules,
	}
	counter := b.PatientRescheduleCount
	if b.CancelledByAdminForDoctor {
		e.MaxAttempts = MaxAdminGrantedReschedules
		counter = b.AdminGrantedRescheduleCount
	}
	e.RemainingAttempts = e.MaxAttempts - counter
	if e.RemainingAttempts < 0 {
		e.RemainingAttempts = 0
	}

	if b.Status != StatusConfirmed {
		e.Reason = "only confirmed bookings can be rescheduled"
		return e
	}

	if err := CheckRescheduleNotice(b, now, loc); err != nil {
		if errors.Is(err, ErrNotEligible) {
			e.Reason = "reschedule requires at least 24 hours notice"
		} else {
			e.Reason = "appointment time could not be determined"
		}
		return e
	}

	if e.RemainingAttempts == 0 {
		e.Reason = "reschedule limit reached"
		return e
	}

	e.CanReschedule = true
	return e
}
