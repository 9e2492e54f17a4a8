package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/heroeats/marketplace/internal/domain/inventory"
)

// InventoryLedger is an in-memory inventory.Ledger. Reserve checks and
// decrements under one lock so concurrent reservations of the same product
// serialize, matching the conditional-update semantics of the postgres ledger.
type InventoryLedger struct {
	mu      sync.Mutex
	records map[string]*domain.Record
}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{
		records: make(map[string]*domain.Record),
	}
}

// Seed sets the portions remaining for a product.
func (l *InventoryLedger) Seed(productID string, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[productID] = &domain.Record{
		ProductID: productID,
		Remaining: remaining,
		UpdatedAt: time.Now().UTC(),
	}
}

func (l *InventoryLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[productID]
	if !ok {
		return domain.ErrNotFound
	}
	if record.Remaining < quantity {
		return domain.ErrInsufficientStock
	}

	record.Remaining -= quantity
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (l *InventoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[productID]
	if !ok {
		return domain.ErrNotFound
	}

	record.Remaining += quantity
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (l *InventoryLedger) Remaining(ctx context.Context, productID string) (int, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return record.Remaining, nil
}
