package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// BookingService is the slice of the booking service the HTTP layer uses.
type BookingService interface {
	Book(ctx context.Context, req booking.BookRequest) (*booking.BookResult, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, actor identity.Actor, reason string, confirmed, forDoctor bool) (*booking.Booking, error)
	Eligibility(ctx context.Context, bookingID uuid.UUID, actor identity.Actor) (*booking.Eligibility, error)
	Reschedule(ctx context.Context, bookingID uuid.UUID, newDate time.Time, newSlot int, actor identity.Actor) (*booking.Booking, error)
	Transition(ctx context.Context, bookingID uuid.UUID, target booking.Status, actor identity.Actor, reason string) (*booking.Booking, error)
	Get(ctx context.Context, bookingID uuid.UUID, actor identity.Actor) (*booking.Booking, error)
	History(ctx context.Context, patientID string, actor identity.Actor, limit int) ([]booking.Booking, error)
}

// BookingsHandler exposes the booking lifecycle over HTTP.
type BookingsHandler struct {
	svc    BookingService
	logger *logging.Logger
}

// NewBookingsHandler creates a bookings handler.
func NewBookingsHandler(svc BookingService, logger *logging.Logger) *BookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	BranchID  string `json:"branch_id"`
	Date      string `json:"date"`
	Slots     []int  `json:"slots"`
	Type      string `json:"type"`
	RebookOf  string `json:"rebook_of,omitempty"`
}

// Create handles POST /api/v1/bookings.
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.PatientID == "" || req.DoctorID == "" || req.BranchID == "" || len(req.Slots) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "patient_id, doctor_id, branch_id and slots are required"})
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}
	bookingType := booking.Type(req.Type)
	if req.Type == "" {
		bookingType = booking.TypeOnline
	}
	if !bookingType.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "type must be online, walk_in or phone"})
		return
	}
	var rebookOf uuid.UUID
	if req.RebookOf != "" {
		rebookOf, err = uuid.Parse(req.RebookOf)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "rebook_of must be a booking id"})
			return
		}
	}

	res, err := h.svc.Book(r.Context(), booking.BookRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		BranchID:  req.BranchID,
		Date:      date,
		Slots:     req.Slots,
		Type:      bookingType,
		Actor:     actor,
		RebookOf:  rebookOf,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Get handles GET /api/v1/bookings/{bookingID}.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	b, err := h.svc.Get(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type cancelRequest struct {
	Reason    string `json:"reason"`
	Confirmed bool   `json:"confirmed"`
	ForDoctor bool   `json:"for_doctor_request,omitempty"`
}

// Cancel handles POST /api/v1/bookings/{bookingID}/cancel.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	b, err := h.svc.Cancel(r.Context(), id, actor, req.Reason, req.Confirmed, req.ForDoctor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Eligibility handles GET /api/v1/bookings/{bookingID}/reschedule-eligibility.
func (h *BookingsHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	e, err := h.svc.Eligibility(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type rescheduleRequest struct {
	NewDate string `json:"new_date"`
	NewSlot int    `json:"new_slot"`
}

// Reschedule handles POST /api/v1/bookings/{bookingID}/reschedule.
func (h *BookingsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	newDate, err := time.Parse(time.DateOnly, req.NewDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "new_date must be YYYY-MM-DD"})
		return
	}
	if req.NewSlot < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "new_slot must be a positive slot number"})
		return
	}
	b, err := h.svc.Reschedule(r.Context(), id, newDate, req.NewSlot, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

// Transition handles POST /api/v1/bookings/{bookingID}/transition.
func (h *BookingsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	target := booking.Status(req.Target)
	if !target.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown target status"})
		return
	}
	b, err := h.svc.Transition(r.Context(), id, target, actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// History handles GET /api/v1/patients/{patientID}/bookings.
func (h *BookingsHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	patientID := chi.URLParam(r, "patientID")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	bookings, err := h.svc.History(r.Context(), patientID, actor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}
