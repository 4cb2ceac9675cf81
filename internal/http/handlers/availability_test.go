package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caresync-health/booking-platform/internal/availability"
	"github.com/caresync-health/booking-platform/internal/schedule"
)

type stubCalculator struct {
	result *availability.SlotAvailability
	err    error
}

func (s *stubCalculator) ForDay(ctx context.Context, doctorID, branchID string, date time.Time) (*availability.SlotAvailability, error) {
	return s.result, s.err
}

func TestAvailabilityGet(t *testing.T) {
	calc := &stubCalculator{result: &availability.SlotAvailability{
		DoctorID:  "doc-1",
		BranchID:  "br-1",
		Date:      "2026-09-14",
		Available: []int{1, 2, 4},
		Status:    availability.StatusOpen,
	}}
	h := NewAvailabilityHandler(calc, nil)

	req := httptest.NewRequest(http.MethodGet, "/availability?doctor_id=doc-1&branch_id=br-1&date=2026-09-14", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res availability.SlotAvailability
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Equal(t, []int{1, 2, 4}, res.Available)
	require.Equal(t, availability.StatusOpen, res.Status)
}

func TestAvailabilityGetValidation(t *testing.T) {
	h := NewAvailabilityHandler(&stubCalculator{}, nil)
	for _, target := range []string{
		"/availability?branch_id=br-1&date=2026-09-14",
		"/availability?doctor_id=doc-1&date=2026-09-14",
		"/availability?doctor_id=doc-1&branch_id=br-1&date=Sept+14",
	} {
		rec := httptest.NewRecorder()
		h.Get(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestAvailabilityGetNoTemplate(t *testing.T) {
	h := NewAvailabilityHandler(&stubCalculator{err: schedule.ErrTemplateNotFound}, nil)
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/availability?doctor_id=doc-1&branch_id=br-1&date=2026-09-14", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
