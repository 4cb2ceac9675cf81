package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/caresync-health/booking-platform/internal/availability"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// AvailabilityCalculator computes slot availability for a doctor's day.
type AvailabilityCalculator interface {
	ForDay(ctx context.Context, doctorID, branchID string, date time.Time) (*availability.SlotAvailability, error)
}

// AvailabilityHandler serves read-only slot availability.
type AvailabilityHandler struct {
	calc   AvailabilityCalculator
	logger *logging.Logger
}

// NewAvailabilityHandler creates an availability handler.
func NewAvailabilityHandler(calc AvailabilityCalculator, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{calc: calc, logger: logger}
}

// Get handles GET /api/v1/availability?doctor_id=&branch_id=&date=.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doctorID := q.Get("doctor_id")
	branchID := q.Get("branch_id")
	if doctorID == "" || branchID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "doctor_id and branch_id are required"})
		return
	}
	date, err := time.Parse(time.DateOnly, q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	avail, err := h.calc.ForDay(r.Context(), doctorID, branchID, date)
	if err != nil {
		h.logger.Error("availability lookup failed", "error", err, "doctor_id", doctorID, "date", q.Get("date"))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}
