package memory

import (
	"context"
	"sync"

	domain "github.com/heroeats/marketplace/internal/domain/catalog"
)

// Catalog is an in-memory stand-in for the external catalog and identity
// collaborators.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	users    map[string]struct{}
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]domain.Product),
		users:    make(map[string]struct{}),
	}
}

func (c *Catalog) AddProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) AddUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[userID] = struct{}{}
}

func (c *Catalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (c *Catalog) UserExists(ctx context.Context, userID string) (bool, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.users[userID]
	return ok, nil
}
