package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// AuditSource queries the audit log.
type AuditSource interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// AuditHandler serves the staff-facing audit trail.
type AuditHandler struct {
	reader AuditSource
	logger *logging.Logger
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(reader AuditSource, logger *logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{reader: reader, logger: logger}
}

// Query handles GET /api/v1/audit with optional filters:
// appointment_id, performed_by, branch_id, actions (comma separated),
// start_time, end_time (RFC 3339), limit, offset.
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		AppointmentID: q.Get("appointment_id"),
		PerformedBy:   q.Get("performed_by"),
		BranchID:      q.Get("branch_id"),
		Limit:         100,
	}

	if v := q.Get("actions"); v != "" {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, audit.Action(a))
			}
		}
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "start_time must be RFC 3339"})
			return
		}
		filter.StartTime = t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end_time must be RFC 3339"})
			return
		}
		filter.EndTime = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "offset must be a positive integer"})
			return
		}
		filter.Offset = n
	}

	entries, err := h.reader.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
