package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/internal/identity"
)

// PaymentStatus tracks the money side of a booking independently of its lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentWaived   PaymentStatus = "waived"
	PaymentRefunded PaymentStatus = "refunded"
)

// Type records how the booking entered the system.
type Type string

const (
	TypeOnline Type = "online"
	TypeWalkIn Type = "walk_in"
	TypePhone  Type = "phone"
)

// Valid reports whether t is a known booking type.
func (t Type) Valid() bool {
	return t == TypeOnline || t == TypeWalkIn || t == TypePhone
}

// Booking is one appointment slot held by a patient with a doctor at a branch.
// The ledger guarantees at most one slot-holding booking exists per
// (doctor, branch, date, slot_number).
type Booking struct {
	ID         uuid.UUID `json:"id"`
	PatientID  string    `json:"patient_id"`
	DoctorID   string    `json:"doctor_id"`
	BranchID   string    `json:"branch_id"`
	ScheduleID uuid.UUID `json:"schedule_id"`

	AppointmentDate time.Time `json:"appointment_date"`
	SlotNumber      int       `json:"slot_number"`
	TokenNumber     int       `json:"token_number"`
	AppointmentTime string    `json:"appointment_time"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	BookingType   Type          `json:"booking_type"`

	BookedBy     string        `json:"booked_by"`
	BookedByRole identity.Role `json:"booked_by_role"`

	RescheduleCount             int        `json:"reschedule_count"`
	PatientRescheduleCount      int        `json:"patient_reschedule_count"`
	AdminGrantedRescheduleCount int        `json:"admin_granted_reschedule_count"`
	CancelledByAdminForDoctor   bool       `json:"cancelled_by_admin_for_doctor"`
	OriginalAppointmentID       *uuid.UUID `json:"original_appointment_id,omitempty"`

	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	SessionStartedAt   *time.Time `json:"session_started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ChainRoot returns the first booking id of a reschedule chain. For an
// unrescheduled booking that is the booking itself.
func (b *Booking) ChainRoot() uuid.UUID {
	if b.OriginalAppointmentID != nil {
		return *b.OriginalAppointmentID
	}
	return b.ID
}

// AppointmentAt combines the appointment date and derived time in the given zone.
func (b *Booking) AppointmentAt(loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", b.AppointmentTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking: parse appointment time %q: %w", b.AppointmentTime, err)
	}
	d := b.AppointmentDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// SlotTime derives the wall-clock time for slot number k from a session
// starting at startTime with minutesPerSlot-sized slots.
func SlotTime(startTime string, minutesPerSlot, slotNumber int) (string, error) {
	t, err := time.Parse("15:04", startTime)
	if err != nil {
		return "", fmt.Errorf("booking: parse session start %q: %w", startTime, err)
	}
	t = t.Add(time.Duration(slotNumber-1) * time.Duration(minutesPerSlot) * time.Minute)
	return t.Format("15:04"), nil
}
