package paypal

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is an in-process stand-in for the PayPal Orders API used when no
// live credentials are configured. Every created order is immediately
// approvable and captures complete.
type Sandbox struct {
	mu     sync.Mutex
	orders map[string]CreateOrderRequest
}

func NewSandbox() *Sandbox {
	return &Sandbox{orders: make(map[string]CreateOrderRequest)}
}

func (s *Sandbox) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResponse, error) {
	_ = ctx

	id := "PAYPAL-" + uuid.NewString()

	s.mu.Lock()
	s.orders[id] = req
	s.mu.Unlock()

	return OrderResponse{
		ID:     id,
		Status: "CREATED",
		Links: []Link{
			{Rel: relApprove, Href: "https://sandbox.paypal.example/checkoutnow?token=" + id},
		},
	}, nil
}

func (s *Sandbox) CaptureOrder(ctx context.Context, orderID string) (OrderResponse, error) {
	_ = ctx

	s.mu.Lock()
	_, ok := s.orders[orderID]
	s.mu.Unlock()
	if !ok {
		return OrderResponse{}, fmt.Errorf("order %s not found", orderID)
	}

	return OrderResponse{ID: orderID, Status: statusCompleted}, nil
}
