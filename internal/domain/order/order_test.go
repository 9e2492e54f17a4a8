package order_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/heroeats/marketplace/internal/domain/money"
	"github.com/heroeats/marketplace/internal/domain/order"
)

func usd(s string) money.Money {
	return money.New(decimal.RequireFromString(s), currency.USD)
}

func TestNew(t *testing.T) {
	pickup := time.Now().Add(2 * time.Hour)

	tests := []struct {
		name      string
		lines     []order.Line
		wantTotal string
		wantError error
	}{
		{
			name: "two lines: total is sum of quantity times snapshot price",
			lines: []order.Line{
				{ProductID: "p1", ProductName: "Bakery Surprise Bag", Quantity: 2, UnitPrice: usd("5.00")},
				{ProductID: "p2", ProductName: "Deli Surprise Bag", Quantity: 1, UnitPrice: usd("3.50")},
			},
			wantTotal: "13.50",
		},
		{
			name:      "no lines: error",
			lines:     nil,
			wantError: order.ErrNoLines,
		},
		{
			name: "zero quantity: error",
			lines: []order.Line{
				{ProductID: "p1", Quantity: 0, UnitPrice: usd("5.00")},
			},
			wantError: order.ErrInvalidQuantity,
		},
		{
			name: "negative quantity: error",
			lines: []order.Line{
				{ProductID: "p1", Quantity: -1, UnitPrice: usd("5.00")},
			},
			wantError: order.ErrInvalidQuantity,
		},
		{
			name: "mixed currencies: error",
			lines: []order.Line{
				{ProductID: "p1", Quantity: 1, UnitPrice: usd("5.00")},
				{ProductID: "p2", Quantity: 1, UnitPrice: money.New(decimal.RequireFromString("3.50"), currency.EUR)},
			},
			wantError: money.ErrCurrencyMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := order.New("order-1", "user-1", tt.lines, pickup)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, order.StatusPending, o.Status)
			assert.Equal(t, order.PaymentNone, o.PaymentStatus)
			assert.Equal(t, tt.wantTotal, o.Total.Amount.StringFixed(2))
			assert.Equal(t, pickup, o.PickupTime)
			assert.False(t, o.CreatedAt.IsZero())
		})
	}
}

func TestStatusForOutcome(t *testing.T) {
	tests := []struct {
		name        string
		ps          order.PaymentStatus
		wantStatus  order.Status
		wantInvalid bool
	}{
		{name: "completed confirms", ps: order.PaymentCompleted, wantStatus: order.StatusConfirmed},
		{name: "failed returns to pending", ps: order.PaymentFailed, wantStatus: order.StatusPending},
		{name: "cancelled returns to pending", ps: order.PaymentCancelled, wantStatus: order.StatusPending},
		{name: "pending is not terminal", ps: order.PaymentPending, wantInvalid: true},
		{name: "none is not terminal", ps: order.PaymentNone, wantInvalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, status, err := order.StatusForOutcome(tt.ps)
			if tt.wantInvalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ps, ps)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to order.Status
		want     bool
	}{
		{order.StatusConfirmed, order.StatusReady, true},
		{order.StatusReady, order.StatusCompleted, true},
		{order.StatusPending, order.StatusReady, false},
		{order.StatusPending, order.StatusConfirmed, false},
		{order.StatusConfirmed, order.StatusCompleted, false},
		{order.StatusCompleted, order.StatusReady, false},
		{order.StatusConfirmed, order.StatusCancelled, false},
		{order.StatusCancelled, order.StatusReady, false},
	}

	for _, tt := range tests {
		o := &order.Order{Status: tt.from}
		assert.Equal(t, tt.want, o.CanAdvanceTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, order.PaymentNone.Terminal())
	assert.False(t, order.PaymentPending.Terminal())
	assert.True(t, order.PaymentCompleted.Terminal())
	assert.True(t, order.PaymentFailed.Terminal())
	assert.True(t, order.PaymentCancelled.Terminal())
}

func TestToStatus(t *testing.T) {
	s, err := order.ToStatus("READY")
	require.NoError(t, err)
	assert.Equal(t, order.StatusReady, s)

	_, err = order.ToStatus("SHIPPED")
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	o, err := order.New("order-1", "user-1", []order.Line{
		{ProductID: "p1", Quantity: 1, UnitPrice: usd("5.00")},
	}, time.Time{})
	require.NoError(t, err)

	clone := o.Clone()
	clone.Lines[0].Quantity = 99
	clone.Status = order.StatusCancelled

	assert.Equal(t, 1, o.Lines[0].Quantity)
	assert.Equal(t, order.StatusPending, o.Status)
}
