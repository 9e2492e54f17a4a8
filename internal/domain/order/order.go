package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/heroeats/marketplace/internal/domain/money"
)

var (
	ErrNotFound         = errors.New("order: not found")
	ErrConflict         = errors.New("order: already exists")
	ErrNotOwner         = errors.New("order: does not belong to user")
	ErrNotPending       = errors.New("order: not in pending status")
	ErrInvalidState     = errors.New("order: invalid state for transition")
	ErrInvalidQuantity  = errors.New("order: quantity must be greater than zero")
	ErrNoLines          = errors.New("order: at least one line is required")
	ErrUnknownReference = errors.New("order: unknown payment reference")
	ErrPaymentFinal     = errors.New("order: payment already finalized")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var validStatuses = map[Status]struct{}{
	StatusPending:   {},
	StatusConfirmed: {},
	StatusReady:     {},
	StatusCompleted: {},
	StatusCancelled: {},
}

func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}
	return "", fmt.Errorf("order: invalid status %q", s)
}

// PaymentStatus is the payment sub-state travelling alongside the order status.
// The zero value means no payment has been initiated yet.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = ""
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Terminal reports whether no further payment transition is permitted.
func (p PaymentStatus) Terminal() bool {
	switch p {
	case PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

// Line is one product/quantity/price entry within an order. The unit price is a
// snapshot taken at order time, independent of later catalog price changes.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   money.Money
}

func (l Line) Subtotal() money.Money {
	return l.UnitPrice.MulQuantity(l.Quantity)
}

type Order struct {
	ID               string
	UserID           string
	Lines            []Line
	Total            money.Money
	Status           Status
	PaymentStatus    PaymentStatus
	PaymentProvider  string
	PaymentReference string
	PickupTime       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds a PENDING order and computes the total from its lines. This is the
// only place the total is computed; it is never recomputed from catalog data.
func New(id, userID string, lines []Line, pickupTime time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	total := money.Zero(lines[0].UnitPrice.Currency)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, line.ProductID)
		}
		var err error
		total, err = total.Add(line.Subtotal())
		if err != nil {
			return nil, fmt.Errorf("order: total: %w", err)
		}
	}

	now := time.Now().UTC()
	return &Order{
		ID:         id,
		UserID:     userID,
		Lines:      lines,
		Total:      total,
		Status:     StatusPending,
		PickupTime: pickupTime,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// StatusForOutcome returns the (payment status, order status) pair the payment
// lifecycle prescribes for a terminal payment status. A completed payment
// confirms the order; failed and cancelled payments return it to PENDING with
// its reservation retained so the buyer may retry.
func StatusForOutcome(ps PaymentStatus) (PaymentStatus, Status, error) {
	switch ps {
	case PaymentCompleted:
		return PaymentCompleted, StatusConfirmed, nil
	case PaymentFailed:
		return PaymentFailed, StatusPending, nil
	case PaymentCancelled:
		return PaymentCancelled, StatusPending, nil
	}
	return "", "", fmt.Errorf("order: %q is not a terminal payment status", ps)
}

// CanAdvanceTo reports whether the administrative, forward-only path permits
// moving from the current status to target. Moves into or out of CANCELLED are
// reserved for cancellation and payment-outcome application.
func (o *Order) CanAdvanceTo(target Status) bool {
	switch {
	case o.Status == StatusConfirmed && target == StatusReady:
		return true
	case o.Status == StatusReady && target == StatusCompleted:
		return true
	}
	return false
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = make([]Line, len(o.Lines))
	copy(clone.Lines, o.Lines)
	return &clone
}
