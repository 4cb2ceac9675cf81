package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/caresync-health/booking-platform/pkg/logging"
)

// FakeGateway is a dev/demo provider that issues internal checkout URLs
// and accepts any confirm for a reference it issued.
//
// This MUST be gated by configuration and should never be enabled in
// production.
type FakeGateway struct {
	publicBaseURL string
	logger        *logging.Logger

	mu       sync.Mutex
	prepared map[string]PrepareParams
	refunds  int
}

func NewFakeGateway(publicBaseURL string, logger *logging.Logger) *FakeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeGateway{
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
		prepared:      make(map[string]PrepareParams),
	}
}

func (g *FakeGateway) Prepare(ctx context.Context, params PrepareParams) (*Intent, error) {
	_ = ctx
	if params.BookingID == uuid.Nil {
		return nil, fmt.Errorf("payments: fake gateway requires booking id")
	}
	if g.publicBaseURL == "" {
		return nil, fmt.Errorf("payments: fake gateway requires PUBLIC_BASE_URL")
	}
	if !isValidBaseURL(g.publicBaseURL) {
		return nil, fmt.Errorf("payments: fake gateway PUBLIC_BASE_URL must be an absolute http(s) URL")
	}

	ref := "fake:" + params.BookingID.String()
	g.mu.Lock()
	g.prepared[ref] = params
	g.mu.Unlock()

	return &Intent{
		Reference:   ref,
		CheckoutURL: fmt.Sprintf("%s/payments/fake/%s", g.publicBaseURL, params.BookingID),
		AmountCents: params.AmountCents,
	}, nil
}

func (g *FakeGateway) Confirm(ctx context.Context, reference string) error {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.prepared[reference]; !ok {
		return ErrUnknownReference
	}
	g.logger.Info("fake gateway: payment confirmed", "reference", reference)
	return nil
}

func (g *FakeGateway) Refund(ctx context.Context, bookingID uuid.UUID, amountCents int) (string, error) {
	_ = ctx
	reference := "fake:" + bookingID.String()
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.prepared[reference]; !ok {
		return "", ErrUnknownReference
	}
	g.refunds++
	refundRef := fmt.Sprintf("%s:refund:%d", reference, g.refunds)
	g.logger.Info("fake gateway: refund issued", "reference", reference, "refund_reference", refundRef, "amount_cents", amountCents)
	return refundRef, nil
}

func isValidBaseURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}

var _ Gateway = (*FakeGateway)(nil)
