package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/caresync-health/booking-platform/internal/patients"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// PatientFinder resolves patients by contact details.
type PatientFinder interface {
	FindByPhone(ctx context.Context, phone string) (*patients.Patient, error)
}

// PatientsHandler serves the staff-facing patient directory.
type PatientsHandler struct {
	dir    PatientFinder
	logger *logging.Logger
}

// NewPatientsHandler creates a patients handler.
func NewPatientsHandler(dir PatientFinder, logger *logging.Logger) *PatientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{dir: dir, logger: logger}
}

// Lookup handles GET /api/v1/patients/lookup?phone=... for the reception
// desk booking walk-ins and phone appointments.
func (h *PatientsHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "phone is required"})
		return
	}

	patient, err := h.dir.FindByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no patient with that phone number"})
			return
		}
		h.logger.Error("patient lookup failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}
