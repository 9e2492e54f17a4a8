package stripe

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process stand-in for Stripe Checkout used when no live
// credentials are configured. Created sessions show up as complete and paid on
// retrieval, so client-driven capture always succeeds.
type Sandbox struct {
	mu       sync.Mutex
	sessions map[string]SessionParams
}

func NewSandbox() *Sandbox {
	return &Sandbox{sessions: make(map[string]SessionParams)}
}

func (s *Sandbox) CreateCheckoutSession(ctx context.Context, params SessionParams) (Session, error) {
	_ = ctx

	id := "cs_test_" + uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = params
	s.mu.Unlock()

	return Session{
		ID:     id,
		URL:    "https://checkout.stripe.example/pay/" + id,
		Status: "open",
	}, nil
}

func (s *Sandbox) RetrieveSession(ctx context.Context, sessionID string) (Session, error) {
	_ = ctx

	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return Session{}, fmt.Errorf("session %s not found", sessionID)
	}

	return Session{
		ID:            sessionID,
		Status:        sessionComplete,
		PaymentStatus: paymentPaid,
	}, nil
}
