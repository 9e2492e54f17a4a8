package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Record holds the portions remaining for one product. Never negative.
type Record struct {
	ProductID string
	Remaining int
	UpdatedAt time.Time
}

// Ledger owns portion counts per product. Reserve must be atomic relative to
// any other concurrent Reserve/Release on the same product: either the full
// quantity is decremented or nothing changes. Release is the compensating
// action for a reservation; callers guarantee at most one release per
// reservation.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	Remaining(ctx context.Context, productID string) (int, error)
}
