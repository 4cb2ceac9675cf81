package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/payments"
	"github.com/caresync-health/booking-platform/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Rule  string `json:"rule,omitempty"`
}

// writeError maps booking core errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var pe *booking.PolicyError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: pe.Reason, Rule: pe.Rule})
		return
	}

	var status int
	switch {
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrScheduleNotFound),
		errors.Is(err, schedule.ErrTemplateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrSlotTaken),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrNotCancellable):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrPolicyViolation),
		errors.Is(err, booking.ErrNotEligible),
		errors.Is(err, payments.ErrUnknownReference):
		status = http.StatusUnprocessableEntity
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}

// requireActor fetches the caller's identity or rejects with 401.
func requireActor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "caller identity required"})
		return identity.Actor{}, false
	}
	return actor, true
}
