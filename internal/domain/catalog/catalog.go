package catalog

import (
	"context"
	"errors"

	"github.com/heroeats/marketplace/internal/domain/money"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrUserNotFound    = errors.New("catalog: user not found")
)

// Product is the catalog snapshot the engine reads at order-creation time.
type Product struct {
	ID    string
	Name  string
	Price money.Money
}

// Catalog is the external product lookup. The engine only reads it to snapshot
// unit prices; catalog ownership and CRUD live elsewhere.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// Identity is the external user lookup, used to validate order ownership.
type Identity interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}
