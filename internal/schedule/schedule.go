// Package schedule is the read-only catalog of recurring weekly session
// templates and the date overrides that block them.
package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Template defines one doctor's recurring weekly session at a branch:
// a start time, a number of numbered slots and a per-slot duration.
// At most one active template exists per (doctor, branch, weekday).
type Template struct {
	ID             uuid.UUID    `json:"id"`
	DoctorID       string       `json:"doctor_id"`
	BranchID       string       `json:"branch_id"`
	Weekday        time.Weekday `json:"weekday"`
	StartTime      string       `json:"start_time"`
	SlotCount      int          `json:"slot_count"`
	MinutesPerSlot int          `json:"minutes_per_slot"`
	Active         bool         `json:"active"`
}

// OverrideKind distinguishes a single blocked date from a blocked schedule.
type OverrideKind string

const (
	OverrideBlockDate     OverrideKind = "block_date"
	OverrideBlockSchedule OverrideKind = "block_schedule"
)

// Override blocks bookings for a doctor at a branch over a date range.
// Produced by the schedule-modification workflow; only approved overrides count.
type Override struct {
	ID        uuid.UUID    `json:"id"`
	DoctorID  string       `json:"doctor_id"`
	BranchID  string       `json:"branch_id"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Kind      OverrideKind `json:"kind"`
	Approved  bool         `json:"approved"`
}
