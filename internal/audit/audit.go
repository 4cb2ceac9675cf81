// Package audit is the append-only record of every mutating action
// against a booking. Entries are written inside the same database
// transaction as the mutation they describe, so ledger and log can
// never disagree.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Action identifies what was done to a booking.
type Action string

const (
	ActionCreated          Action = "booking.created"
	ActionPaymentConfirmed Action = "booking.payment_confirmed"
	ActionCheckedIn        Action = "booking.checked_in"
	ActionSessionStarted   Action = "booking.session_started"
	ActionCompleted        Action = "booking.completed"
	ActionCancelled        Action = "booking.cancelled"
	ActionNoShow           Action = "booking.no_show"
	ActionRescheduled      Action = "booking.rescheduled"
	ActionExpired          Action = "booking.expired"
	ActionPaymentRetained  Action = "booking.payment_retained"
	ActionRefundIssued     Action = "booking.refund_issued"
	ActionRefundFailed     Action = "booking.refund_failed"
)

// Entry is one immutable audit record.
type Entry struct {
	ID              uuid.UUID         `json:"id"`
	AppointmentID   uuid.UUID         `json:"appointment_id"`
	Action          Action            `json:"action"`
	PerformedBy     string            `json:"performed_by"`
	PerformedByRole string            `json:"performed_by_role"`
	PreviousStatus  string            `json:"previous_status,omitempty"`
	NewStatus       string            `json:"new_status,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Execer is the slice of pgx needed to append an entry. Both pgxpool.Pool
// and pgx.Tx satisfy it, which is how entries join the ledger transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder appends audit entries.
type Recorder struct{}

// NewRecorder creates an audit recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one entry using the given executor. Call it with the
// mutating transaction so the entry commits atomically with the change.
func (r *Recorder) Record(ctx context.Context, exec Execer, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var metadata []byte
	if len(entry.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit: marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO booking_audit_log (
			id, appointment_id, action, performed_by, performed_by_role,
			previous_status, new_status, reason, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := exec.Exec(ctx, query,
		entry.ID,
		entry.AppointmentID,
		entry.Action,
		entry.PerformedBy,
		entry.PerformedByRole,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.Reason,
		metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record entry: %w", err)
	}
	return nil
}
