package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Filter specifies criteria for querying audit entries.
type Filter struct {
	AppointmentID string
	PerformedBy   string
	Actions       []Action
	BranchID      string
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
	Offset        int
}

// Reader serves dashboard queries over the audit log.
type Reader struct {
	db *sql.DB
}

// NewReader creates an audit reader.
func NewReader(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Query retrieves audit entries matching the filter, newest first.
// Branch filtering joins through the booking the entry refers to.
func (r *Reader) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT a.id, a.appointment_id, a.action, a.performed_by, a.performed_by_role,
		       a.previous_status, a.new_status, a.reason, a.metadata, a.created_at
		FROM booking_audit_log a
		WHERE 1=1
	`
	var args []interface{}
	argIdx := 1

	if filter.BranchID != "" {
		query += fmt.Sprintf(" AND a.appointment_id IN (SELECT id FROM bookings WHERE branch_id = $%d)", argIdx)
		args = append(args, filter.BranchID)
		argIdx++
	}
	if filter.AppointmentID != "" {
		query += fmt.Sprintf(" AND a.appointment_id = $%d", argIdx)
		args = append(args, filter.AppointmentID)
		argIdx++
	}
	if filter.PerformedBy != "" {
		query += fmt.Sprintf(" AND a.performed_by = $%d", argIdx)
		args = append(args, filter.PerformedBy)
		argIdx++
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		query += fmt.Sprintf(" AND a.action = ANY($%d)", argIdx)
		args = append(args, pq.Array(actions))
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND a.created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND a.created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY a.created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var prevStatus, newStatus, reason sql.NullString
		var metadata []byte
		if err := rows.Scan(
			&e.ID, &e.AppointmentID, &e.Action, &e.PerformedBy, &e.PerformedByRole,
			&prevStatus, &newStatus, &reason, &metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.PreviousStatus = prevStatus.String
		e.NewStatus = newStatus.String
		e.Reason = reason.String
		if len(metadata) > 0 {
			md := map[string]string{}
			if err := json.Unmarshal(metadata, &md); err != nil {
				return nil, fmt.Errorf("audit: unmarshal metadata: %w", err)
			}
			e.Metadata = md
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
