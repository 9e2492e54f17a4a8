package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/heroeats/marketplace/internal/domain/inventory"
)

// InventoryLedger owns portion counts in Postgres. Reserve is one conditional
// update, `portions_remaining = portions_remaining - n WHERE portions_remaining >= n`,
// so two simultaneous reservations of the same product serialize on the row
// without a long-held lock and the count can never go negative.
type InventoryLedger struct {
	pool *pgxpool.Pool
}

func NewInventoryLedger(pool *pgxpool.Pool) *InventoryLedger {
	return &InventoryLedger{pool: pool}
}

func (l *InventoryLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE inventory
		SET portions_remaining = portions_remaining - $2
		WHERE product_id = $1 AND portions_remaining >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := l.Remaining(ctx, productID); err != nil {
			return err
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

func (l *InventoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE inventory
		SET portions_remaining = portions_remaining + $2
		WHERE product_id = $1`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (l *InventoryLedger) Remaining(ctx context.Context, productID string) (int, error) {
	var remaining int
	err := l.pool.QueryRow(ctx,
		`SELECT portions_remaining FROM inventory WHERE product_id = $1`,
		productID,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("remaining %s: %w", productID, err)
	}
	return remaining, nil
}

// Seed upserts the portions remaining for a product, used by tooling and tests.
func (l *InventoryLedger) Seed(ctx context.Context, productID string, remaining int) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO inventory (product_id, portions_remaining)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET portions_remaining = EXCLUDED.portions_remaining`,
		productID, remaining,
	)
	if err != nil {
		return fmt.Errorf("seed %s: %w", productID, err)
	}
	return nil
}
