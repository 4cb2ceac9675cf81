package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/caresync-health/booking-platform/internal/audit"
	"github.com/caresync-health/booking-platform/internal/availability"
	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/http/handlers"
	httpmiddleware "github.com/caresync-health/booking-platform/internal/http/middleware"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/patients"
)

type fixedService struct{}

func (fixedService) Book(context.Context, booking.BookRequest) (*booking.BookResult, error) {
	return &booking.BookResult{}, nil
}

func (fixedService) Cancel(context.Context, uuid.UUID, identity.Actor, string, bool, bool) (*booking.Booking, error) {
	return &booking.Booking{}, nil
}

func (fixedService) Eligibility(context.Context, uuid.UUID, identity.Actor) (*booking.Eligibility, error) {
	return &booking.Eligibility{}, nil
}

func (fixedService) Reschedule(context.Context, uuid.UUID, time.Time, int, identity.Actor) (*booking.Booking, error) {
	return &booking.Booking{}, nil
}

func (fixedService) Transition(context.Context, uuid.UUID, booking.Status, identity.Actor, string) (*booking.Booking, error) {
	return &booking.Booking{}, nil
}

func (fixedService) Get(context.Context, uuid.UUID, identity.Actor) (*booking.Booking, error) {
	return &booking.Booking{}, nil
}

func (fixedService) History(context.Context, string, identity.Actor, int) ([]booking.Booking, error) {
	return nil, nil
}

type fixedCalculator struct{}

func (fixedCalculator) ForDay(context.Context, string, string, time.Time) (*availability.SlotAvailability, error) {
	return &availability.SlotAvailability{}, nil
}

type fixedPatients struct{}

func (fixedPatients) FindByPhone(context.Context, string) (*patients.Patient, error) {
	return &patients.Patient{}, nil
}

type fixedAudit struct{}

func (fixedAudit) Query(context.Context, audit.Filter) ([]audit.Entry, error) {
	return nil, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return New(&Config{
		Availability:    handlers.NewAvailabilityHandler(fixedCalculator{}, nil),
		Bookings:        handlers.NewBookingsHandler(fixedService{}, nil),
		Audit:           handlers.NewAuditHandler(fixedAudit{}, nil),
		Patients:        handlers.NewPatientsHandler(fixedPatients{}, nil),
		StaffAuthSecret: "router-secret",
	})
}

func staffBearer(t *testing.T, role string) string {
	t.Helper()
	claims := httpmiddleware.StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("router-secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterPatientRoutes(t *testing.T) {
	r := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?doctor_id=d&branch_id=b&date=2026-09-14", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), nil)
	req.Header.Set("X-Actor-Id", "pt-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterStaffOnlyRoutes(t *testing.T) {
	r := testRouter(t)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+id+"/transition", nil)
	req.Header.Set("X-Actor-Id", "pt-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("X-Actor-Id", "pt-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", staffBearer(t, "receptionist"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients/lookup?phone=%2B8801700000000", nil)
	req.Header.Set("X-Actor-Id", "pt-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients/lookup?phone=%2B8801700000000", nil)
	req.Header.Set("Authorization", staffBearer(t, "receptionist"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
