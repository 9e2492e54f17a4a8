package order

import "context"

// Store is the source of truth for order state. Mutating operations that guard
// on the current status are compare-and-set: they report whether the update was
// applied so concurrent callers serialize on the store rather than on external
// locks.
type Store interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentReference(ctx context.Context, ref string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)

	// SetPaymentSession records the provider and its session reference with
	// paymentStatus=PENDING. Applies only while the order status is PENDING.
	SetPaymentSession(ctx context.Context, orderID, provider, ref string) error

	// ApplyPaymentOutcome sets the payment status and order status in one
	// atomic update, applied only while the current payment status is
	// non-terminal. Returns false when the payment was already finalized.
	ApplyPaymentOutcome(ctx context.Context, orderID string, ps PaymentStatus, os Status) (bool, error)

	// CancelPending moves PENDING to CANCELLED atomically. Returns false when
	// the order is no longer pending.
	CancelPending(ctx context.Context, orderID string) (bool, error)

	// AdvanceStatus moves from one status to the next atomically. Returns
	// false when the order is not in the expected from status.
	AdvanceStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
}
