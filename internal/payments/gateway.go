package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnknownReference is returned when a confirm or refund names a
// reference the gateway never issued.
var ErrUnknownReference = errors.New("payments: unknown payment reference")

// PrepareParams describes a payment to be collected for a booking hold.
type PrepareParams struct {
	BookingID   uuid.UUID
	PatientID   uuid.UUID
	AmountCents int
	Description string
}

// Intent is a prepared payment awaiting completion by the patient.
type Intent struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
	AmountCents int    `json:"amount_cents"`
}

// Gateway abstracts the payment provider. The booking flow only needs
// three verbs: prepare a charge for a hold, confirm it was paid, and
// refund it when an admin-side cancellation warrants one.
type Gateway interface {
	Prepare(ctx context.Context, params PrepareParams) (*Intent, error)
	Confirm(ctx context.Context, reference string) error
	Refund(ctx context.Context, bookingID uuid.UUID, amountCents int) (string, error)
}
