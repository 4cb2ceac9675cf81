package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/caresync-health/booking-platform/internal/booking"
	"github.com/caresync-health/booking-platform/internal/identity"
	"github.com/caresync-health/booking-platform/internal/payments"
)

type stubPaymentFlow struct {
	prepareFn func(id uuid.UUID) (*payments.Intent, error)
	confirmFn func(id uuid.UUID, reference string) (*booking.Booking, error)
}

func (s *stubPaymentFlow) PreparePayment(ctx context.Context, id uuid.UUID, actor identity.Actor) (*payments.Intent, error) {
	return s.prepareFn(id)
}

func (s *stubPaymentFlow) ConfirmPayment(ctx context.Context, id uuid.UUID, reference string, actor identity.Actor) (*booking.Booking, error) {
	return s.confirmFn(id, reference)
}

func paymentsRouter(flow PaymentFlow) http.Handler {
	h := NewPaymentsHandler(flow, nil)
	r := chi.NewRouter()
	r.Post("/payments/{bookingID}/prepare", h.Prepare)
	r.Post("/payments/{bookingID}/confirm", h.Confirm)
	return r
}

func TestPreparePayment(t *testing.T) {
	id := uuid.New()
	flow := &stubPaymentFlow{
		prepareFn: func(got uuid.UUID) (*payments.Intent, error) {
			require.Equal(t, id, got)
			return &payments.Intent{Reference: "fake:" + id.String(), AmountCents: 50000}, nil
		},
	}
	req := asPatient(httptest.NewRequest(http.MethodPost, "/payments/"+id.String()+"/prepare", nil), "pt-1")
	rec := httptest.NewRecorder()
	paymentsRouter(flow).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var intent payments.Intent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&intent))
	require.Equal(t, 50000, intent.AmountCents)
}

func TestPreparePaymentWrongState(t *testing.T) {
	flow := &stubPaymentFlow{
		prepareFn: func(uuid.UUID) (*payments.Intent, error) {
			return nil, booking.ErrInvalidTransition
		},
	}
	req := asPatient(httptest.NewRequest(http.MethodPost, "/payments/"+uuid.NewString()+"/prepare", nil), "pt-1")
	rec := httptest.NewRecorder()
	paymentsRouter(flow).ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmPayment(t *testing.T) {
	id := uuid.New()
	flow := &stubPaymentFlow{
		confirmFn: func(got uuid.UUID, reference string) (*booking.Booking, error) {
			require.Equal(t, "fake:"+id.String(), reference)
			return &booking.Booking{ID: got, Status: booking.StatusConfirmed, PaymentStatus: booking.PaymentPaid}, nil
		},
	}
	body, _ := json.Marshal(map[string]string{"reference": "fake:" + id.String()})
	req := asPatient(httptest.NewRequest(http.MethodPost, "/payments/"+id.String()+"/confirm", bytes.NewReader(body)), "pt-1")
	rec := httptest.NewRecorder()
	paymentsRouter(flow).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var b booking.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	require.Equal(t, booking.StatusConfirmed, b.Status)
}

func TestConfirmPaymentRequiresReference(t *testing.T) {
	flow := &stubPaymentFlow{}
	req := asPatient(httptest.NewRequest(http.MethodPost, "/payments/"+uuid.NewString()+"/confirm", bytes.NewReader([]byte(`{}`))), "pt-1")
	rec := httptest.NewRecorder()
	paymentsRouter(flow).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmPaymentUnknownReference(t *testing.T) {
	flow := &stubPaymentFlow{
		confirmFn: func(uuid.UUID, string) (*booking.Booking, error) {
			return nil, payments.ErrUnknownReference
		},
	}
	body := []byte(`{"reference":"fake:bogus"}`)
	req := asPatient(httptest.NewRequest(http.MethodPost, "/payments/"+uuid.NewString()+"/confirm", bytes.NewReader(body)), "pt-1")
	rec := httptest.NewRecorder()
	paymentsRouter(flow).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
