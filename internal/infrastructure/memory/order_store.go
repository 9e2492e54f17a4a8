package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/heroeats/marketplace/internal/domain/order"
)

// OrderStore is an in-memory order.Store used by tests and the demo binary.
// All status-guarded updates hold the write lock, which gives the same
// compare-and-set semantics the postgres store gets from conditional updates.
type OrderStore struct {
	mu          sync.RWMutex
	orders      map[string]*domain.Order
	byReference map[string]string
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:      make(map[string]*domain.Order),
		byReference: make(map[string]string),
	}
}

func (s *OrderStore) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order store: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrConflict
	}

	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (s *OrderStore) FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	_ = ctx
	if ref == "" {
		return nil, domain.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReference[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			result = append(result, order.Clone())
		}
	}
	return result, nil
}

func (s *OrderStore) SetPaymentSession(ctx context.Context, orderID, provider, ref string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	if order.Status != domain.StatusPending {
		return domain.ErrNotPending
	}

	// A fresh session supersedes any previous one.
	if order.PaymentReference != "" {
		delete(s.byReference, order.PaymentReference)
	}

	order.PaymentProvider = provider
	order.PaymentReference = ref
	order.PaymentStatus = domain.PaymentPending
	order.UpdatedAt = time.Now().UTC()
	s.byReference[ref] = orderID
	return nil
}

func (s *OrderStore) ApplyPaymentOutcome(ctx context.Context, orderID string, ps domain.PaymentStatus, os domain.Status) (bool, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if order.PaymentStatus.Terminal() {
		return false, nil
	}
	// Outcomes only land on orders still awaiting one. A cancelled order keeps
	// its non-terminal payment status, so the payment guard alone would let a
	// late success resurrect it.
	if order.Status != domain.StatusPending {
		return false, nil
	}

	order.PaymentStatus = ps
	order.Status = os
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *OrderStore) CancelPending(ctx context.Context, orderID string) (bool, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if order.Status != domain.StatusPending {
		return false, nil
	}

	order.Status = domain.StatusCancelled
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *OrderStore) AdvanceStatus(ctx context.Context, orderID string, from, to domain.Status) (bool, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if order.Status != from {
		return false, nil
	}

	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	return true, nil
}
