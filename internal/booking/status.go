package booking

// Status is the lifecycle state of a booking. All legality questions go
// through the transition table below; call sites never compare ad hoc.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCheckedIn      Status = "checked_in"
	StatusInSession      Status = "in_session"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
	StatusRescheduled    Status = "rescheduled"
	StatusExpired        Status = "expired"
)

// transitions is the single authority on legal status changes.
var transitions = map[Status]map[Status]bool{
	StatusPendingPayment: {
		StatusConfirmed: true,
		StatusExpired:   true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCheckedIn:   true,
		StatusInSession:   true, // skip check-in allowed
		StatusCompleted:   true, // walk-through completion
		StatusNoShow:      true,
		StatusCancelled:   true,
		StatusRescheduled: true,
	},
	StatusCheckedIn: {
		StatusInSession: true,
		StatusCompleted: true,
	},
	StatusInSession: {
		StatusCompleted: true,
	},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusCheckedIn, StatusInSession,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled, StatusExpired:
		return true
	}
	return false
}

// HoldsSlot reports whether a booking in this status still occupies its slot.
// Cancelled, rescheduled and expired rows free the slot for reuse.
func (s Status) HoldsSlot() bool {
	switch s {
	case StatusCancelled, StatusRescheduled, StatusExpired:
		return false
	}
	return true
}

// Cancellable reports whether a booking in this status may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPendingPayment || s == StatusConfirmed
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	edges, ok := transitions[from]
	return ok && edges[to]
}

// ActiveStatuses returns the non-terminal statuses, in stable order for
// SQL parameter binding. Used for the per-patient daily cap.
func ActiveStatuses() []string {
	return []string{
		string(StatusPendingPayment),
		string(StatusConfirmed),
		string(StatusCheckedIn),
		string(StatusInSession),
	}
}

// slotFreeingStatuses is reused by SQL builders that need the NOT IN set.
var slotFreeingStatuses = []Status{StatusCancelled, StatusRescheduled, StatusExpired}

// SlotFreeingStatuses returns the statuses excluded from slot occupancy,
// in stable order for SQL parameter binding.
func SlotFreeingStatuses() []string {
	out := make([]string, len(slotFreeingStatuses))
	for i, s := range slotFreeingStatuses {
		out[i] = string(s)
	}
	return out
}
