package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the booking core. Handlers map these onto
// HTTP statuses; everything else is a 500.
var (
	ErrNotFound          = errors.New("booking not found")
	ErrScheduleNotFound  = errors.New("no schedule for doctor on that day")
	ErrSlotTaken         = errors.New("slot is already booked")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrForbidden         = errors.New("actor may not act on this booking")
	ErrNotCancellable    = errors.New("booking can no longer be cancelled")
	ErrNotEligible       = errors.New("booking is not eligible for reschedule")
	ErrPolicyViolation   = errors.New("booking policy violation")
)

// PolicyError attaches the violated rule and a caller-facing reason to
// ErrPolicyViolation so the UI can explain the exact constraint.
type PolicyError struct {
	Rule   string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy %s: %s", e.Rule, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicyViolation
}

// Policy rule identifiers carried on PolicyError.
const (
	RuleAdvanceWindow      = "advance_booking_window"
	RuleDailyCap           = "daily_booking_cap"
	RuleCancellationCutoff = "cancellation_cutoff"
	RuleDateBlocked        = "date_blocked"
	RuleConfirmationFlag   = "explicit_confirmation"
	RuleWalkInDisabled     = "walk_in_disabled"
)

// NewPolicyError builds a PolicyError with a formatted reason.
func NewPolicyError(rule, format string, args ...any) error {
	return &PolicyError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

func policyErr(rule, format string, args ...any) error {
	return NewPolicyError(rule, format, args...)
}
