package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/payments"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// PaymentFlow is the slice of the booking service driving payment holds.
type PaymentFlow interface {
	PreparePayment(ctx context.Context, bookingID uuid.UUID, actor identity.Actor) (*payments.Intent, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, reference string, actor identity.Actor) (*booking.Booking, error)
}

// PaymentsHandler drives the pending_payment leg of online bookings.
type PaymentsHandler struct {
	flow   PaymentFlow
	logger *logging.Logger
}

// NewPaymentsHandler creates a payments handler.
func NewPaymentsHandler(flow PaymentFlow, logger *logging.Logger) *PaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentsHandler{flow: flow, logger: logger}
}

// Prepare handles POST /api/v1/payments/{bookingID}/prepare.
func (h *PaymentsHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	intent, err := h.flow.PreparePayment(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

type confirmPaymentRequest struct {
	Reference string `json:"reference"`
}

// Confirm handles POST /api/v1/payments/{bookingID}/confirm.
func (h *PaymentsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reference is required"})
		return
	}
	b, err := h.flow.ConfirmPayment(r.Context(), id, req.Reference, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
