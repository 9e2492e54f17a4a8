package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/heroeats/marketplace/internal/domain/money"
	domain "github.com/heroeats/marketplace/internal/domain/order"
)

// OrderStore persists orders and their lines in Postgres. The status-guarded
// mutations are single conditional UPDATE statements, which is what makes the
// orchestrator's compare-and-set transitions race-free without external locks.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

func (s *OrderStore) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order store: id is required")
	}

	_, err := withTx(ctx, s.pool, func(tx pgx.Tx) (struct{}, error) {
		tag, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, total_amount, currency, status, pickup_time, created_at, updated_at)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			order.ID,
			order.UserID,
			order.Total.Amount.StringFixed(2),
			order.Total.Currency.String(),
			string(order.Status),
			nullableTime(order.PickupTime),
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("insert order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, domain.ErrConflict
		}

		// TODO: batch line inserts once pgx CopyFrom is worth the switch here.
		for _, line := range order.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_lines (order_id, product_id, product_name, quantity, unit_price)
				VALUES ($1, $2, $3, $4, $5::numeric)`,
				order.ID,
				line.ProductID,
				line.ProductName,
				line.Quantity,
				line.UnitPrice.Amount.StringFixed(2),
			); err != nil {
				return struct{}{}, fmt.Errorf("insert order line %s: %w", line.ProductID, err)
			}
		}

		return struct{}{}, nil
	})
	return err
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *OrderStore) FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	return s.getWhere(ctx, "payment_reference = $1", ref)
}

func (s *OrderStore) getWhere(ctx context.Context, where string, arg any) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, total_amount::text, currency, status,
		       payment_status, payment_provider, payment_reference,
		       pickup_time, created_at, updated_at
		FROM orders WHERE `+where, arg)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanOrder: %w", err)
	}

	lines, err := s.linesFor(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return order, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, total_amount::text, currency, status,
		       payment_status, payment_provider, payment_reference,
		       pickup_time, created_at, updated_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanOrder: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	for _, order := range orders {
		lines, err := s.linesFor(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Lines = lines
	}

	return orders, nil
}

func (s *OrderStore) SetPaymentSession(ctx context.Context, orderID, provider, ref string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_provider = $2, payment_reference = $3, payment_status = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		orderID, provider, ref, string(domain.PaymentPending), string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update payment session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, orderID); gerr != nil {
			return gerr
		}
		return domain.ErrNotPending
	}
	return nil
}

func (s *OrderStore) ApplyPaymentOutcome(ctx context.Context, orderID string, ps domain.PaymentStatus, os domain.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2, status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $4 AND status = $5`,
		orderID, string(ps), string(os), string(domain.PaymentPending), string(domain.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("apply payment outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, orderID); gerr != nil {
			return false, gerr
		}
		return false, nil
	}
	return true, nil
}

func (s *OrderStore) CancelPending(ctx context.Context, orderID string) (bool, error) {
	return s.guardedStatusUpdate(ctx, orderID, domain.StatusPending, domain.StatusCancelled)
}

func (s *OrderStore) AdvanceStatus(ctx context.Context, orderID string, from, to domain.Status) (bool, error) {
	return s.guardedStatusUpdate(ctx, orderID, from, to)
}

func (s *OrderStore) guardedStatusUpdate(ctx context.Context, orderID string, from, to domain.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		orderID, string(from), string(to),
	)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, orderID); gerr != nil {
			return false, gerr
		}
		return false, nil
	}
	return true, nil
}

func (s *OrderStore) linesFor(ctx context.Context, orderID string) ([]domain.Line, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ol.product_id, ol.product_name, ol.quantity, ol.unit_price::text, o.currency
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE ol.order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.Line
	for rows.Next() {
		var (
			line         domain.Line
			priceText    string
			currencyCode string
		)
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &priceText, &currencyCode); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}

		price, err := parseMoney(priceText, currencyCode)
		if err != nil {
			return nil, err
		}
		line.UnitPrice = price
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o            domain.Order
		totalText    string
		currencyCode string
		status       string
		ps, pp, ref  *string
		pickup       *time.Time
	)

	if err := row.Scan(
		&o.ID, &o.UserID, &totalText, &currencyCode, &status,
		&ps, &pp, &ref, &pickup, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsedStatus, err := domain.ToStatus(status)
	if err != nil {
		return nil, err
	}
	o.Status = parsedStatus

	total, err := parseMoney(totalText, currencyCode)
	if err != nil {
		return nil, err
	}
	o.Total = total

	o.PaymentStatus = domain.PaymentStatus(lo.FromPtr(ps))
	o.PaymentProvider = lo.FromPtr(pp)
	o.PaymentReference = lo.FromPtr(ref)
	o.PickupTime = lo.FromPtr(pickup)

	return &o, nil
}

func parseMoney(amountText, currencyCode string) (money.Money, error) {
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return money.Money{}, fmt.Errorf("amount[%s] is not valid: %w", amountText, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return money.Money{}, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}
	return money.New(amount, unit), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return lo.ToPtr(t)
}
