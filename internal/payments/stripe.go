package payments

import (
	"context"
	"os"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeSettler binds a PaymentIntent hold to a ride and settles it on the
// ride's terminal transition: capture when completed, release when
// cancelled. A ride without a registered hold settles as a no-op.
type StripeSettler struct {
	mu    sync.Mutex
	holds map[string]string // ride id -> payment intent id
}

// NewStripeSettler initializes the stripe client with the STRIPE_API_KEY
// env var.
func NewStripeSettler() *StripeSettler {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeSettler{holds: make(map[string]string)}
}

// RegisterHold creates a manual-capture PaymentIntent for the ride and
// remembers it for settlement.
func (s *StripeSettler) RegisterHold(ctx context.Context, rideID string, amountMinor int64, currency, customerID string) error {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.holds[rideID] = pi.ID
	s.mu.Unlock()
	return nil
}

// Capture finalizes the hold for a completed ride.
func (s *StripeSettler) Capture(ctx context.Context, rideID string) error {
	id, ok := s.take(rideID)
	if !ok {
		return nil
	}
	_, err := paymentintent.Capture(id, nil)
	return err
}

// Release frees the hold for a cancelled ride.
func (s *StripeSettler) Release(ctx context.Context, rideID string) error {
	id, ok := s.take(rideID)
	if !ok {
		return nil
	}
	_, err := paymentintent.Cancel(id, nil)
	return err
}

func (s *StripeSettler) take(rideID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.holds[rideID]
	if ok {
		delete(s.holds, rideID)
	}
	return id, ok
}
