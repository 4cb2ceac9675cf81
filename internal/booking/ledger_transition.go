package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/identity"
)

var transitionActions = map[Status]audit.Action{
	StatusConfirmed: audit.ActionPaymentConfirmed,
	StatusCheckedIn: audit.ActionCheckedIn,
	StatusInSession: audit.ActionSessionStarted,
	StatusCompleted: audit.ActionCompleted,
	StatusNoShow:    audit.ActionNoShow,
	StatusExpired:   audit.ActionExpired,
}

// Transition moves a booking along a legal state-machine edge, applying the
// edge's side effects and audit entry in one transaction. Cancellation and
// reschedule have dedicated entry points; requesting them here is rejected.
func (l *Ledger) Transition(ctx context.Context, bookingID uuid.UUID, target Status, actor identity.Actor, reason string) (*Booking, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", target, ErrInvalidTransition)
	}
	if target == StatusCancelled || target == StatusRescheduled {
		return nil, fmt.Errorf("%s has a dedicated operation: %w", target, ErrInvalidTransition)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(b.Status, target) {
		return nil, fmt.Errorf("%s -> %s: %w", b.Status, target, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	query := `UPDATE bookings SET status = $1`
	args := []any{target}
	idx := 2

	switch target {
	case StatusConfirmed:
		query += fmt.Sprintf(", payment_status = $%d", idx)
		args = append(args, PaymentPaid)
		idx++
	case StatusCheckedIn:
		query += fmt.Sprintf(", checked_in_at = $%d", idx)
		args = append(args, now)
		idx++
	case StatusInSession:
		query += fmt.Sprintf(", session_started_at = $%d", idx)
		args = append(args, now)
		idx++
	case StatusCompleted:
		query += fmt.Sprintf(", completed_at = $%d", idx)
		args = append(args, now)
		idx++
	}

	query += fmt.Sprintf(" WHERE id = $%d", idx)
	args = append(args, b.ID)

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("booking: update transition: %w", err)
	}

	action, ok := transitionActions[target]
	if !ok {
		action = audit.Action(fmt.Sprintf("booking.%s", target))
	}
	if err := l.recorder.Record(ctx, tx, audit.Entry{
		AppointmentID:   b.ID,
		Action:          action,
		PerformedBy:     actor.ID,
		PerformedByRole: string(actor.Role),
		PreviousStatus:  string(b.Status),
		NewStatus:       string(target),
		Reason:          reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("booking: commit transition: %w", err)
	}

	prev := b.Status
	b.Status = target
	switch target {
	case StatusConfirmed:
		b.PaymentStatus = PaymentPaid
	case StatusCheckedIn:
		b.CheckedInAt = &now
	case StatusInSession:
		b.SessionStartedAt = &now
	case StatusCompleted:
		b.CompletedAt = &now
	}
	l.logger.Info("booking transitioned",
		"booking_id", b.ID, "from", prev, "to", target,
		"actor", actor.ID, "role", actor.Role)
	return b, nil
}
