package paypal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/heroeats/marketplace/internal/domain/money"
	"github.com/heroeats/marketplace/internal/domain/payment"
	"github.com/heroeats/marketplace/internal/infrastructure/paypal"
)

type fakeAPI struct {
	createResp  paypal.OrderResponse
	createErr   error
	lastCreate  paypal.CreateOrderRequest
	captureResp paypal.OrderResponse
	captureErr  error
	lastCapture string
}

func (f *fakeAPI) CreateOrder(_ context.Context, req paypal.CreateOrderRequest) (paypal.OrderResponse, error) {
	f.lastCreate = req
	return f.createResp, f.createErr
}

func (f *fakeAPI) CaptureOrder(_ context.Context, orderID string) (paypal.OrderResponse, error) {
	f.lastCapture = orderID
	return f.captureResp, f.captureErr
}

func usd(s string) money.Money {
	return money.New(decimal.RequireFromString(s), currency.USD)
}

func testIntent() payment.Intent {
	return payment.Intent{
		OrderID:     "order-1",
		Amount:      usd("13.50"),
		Description: "Order #order-1",
		Lines: []payment.LineItem{
			{Name: "Bakery Surprise Bag", Quantity: 2, UnitPrice: usd("5.00")},
			{Name: "Deli Surprise Bag", Quantity: 1, UnitPrice: usd("3.50")},
		},
	}
}

func TestCreatePayment(t *testing.T) {
	api := &fakeAPI{
		createResp: paypal.OrderResponse{
			ID:     "PAYPAL-1",
			Status: "CREATED",
			Links: []paypal.Link{
				{Rel: "self", Href: "https://api.paypal.example/orders/PAYPAL-1"},
				{Rel: "approve", Href: "https://paypal.example/approve/PAYPAL-1"},
			},
		},
	}
	adapter := paypal.New(api, paypal.Config{
		ReturnURL: "https://shop.example/return",
		CancelURL: "https://shop.example/cancel",
	})

	session, err := adapter.CreatePayment(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "PAYPAL-1", session.Reference)
	assert.Equal(t, "https://paypal.example/approve/PAYPAL-1", session.RedirectURL)

	req := api.lastCreate
	assert.Equal(t, "CAPTURE", req.Intent)
	assert.Equal(t, "order-1", req.ReferenceID)
	assert.Equal(t, "USD", req.CurrencyCode)
	assert.Equal(t, "13.50", req.Value)
	assert.Equal(t, "https://shop.example/return", req.ReturnURL)
	require.Len(t, req.Items, 2)
	assert.Equal(t, paypal.Item{Name: "Bakery Surprise Bag", UnitValue: "5.00", Quantity: 2}, req.Items[0])
}

func TestCreatePayment_Errors(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		api := &fakeAPI{createErr: errors.New("401 unauthorized")}
		adapter := paypal.New(api, paypal.Config{})

		_, err := adapter.CreatePayment(context.Background(), testIntent())
		require.ErrorIs(t, err, payment.ErrProvider)
	})

	t.Run("no approval link", func(t *testing.T) {
		api := &fakeAPI{
			createResp: paypal.OrderResponse{
				ID:    "PAYPAL-1",
				Links: []paypal.Link{{Rel: "self", Href: "https://api.paypal.example/orders/PAYPAL-1"}},
			},
		}
		adapter := paypal.New(api, paypal.Config{})

		_, err := adapter.CreatePayment(context.Background(), testIntent())
		require.ErrorIs(t, err, payment.ErrProvider)
	})
}

func TestCapture(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		captureErr error
		wantKind   payment.OutcomeKind
		wantError  bool
	}{
		{name: "completed capture succeeds", status: "COMPLETED", wantKind: payment.OutcomeSucceeded},
		{name: "declined capture fails", status: "DECLINED", wantKind: payment.OutcomeFailed},
		{name: "client error propagates", captureErr: errors.New("timeout"), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{
				captureResp: paypal.OrderResponse{ID: "PAYPAL-1", Status: tt.status},
				captureErr:  tt.captureErr,
			}
			adapter := paypal.New(api, paypal.Config{})

			outcome, err := adapter.Capture(context.Background(), "PAYPAL-1", "approver")
			if tt.wantError {
				require.ErrorIs(t, err, payment.ErrProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, outcome.Kind)
			assert.Equal(t, "PAYPAL-1", outcome.Reference)
			assert.Equal(t, "PAYPAL-1", api.lastCapture)
		})
	}
}

func TestCancel(t *testing.T) {
	adapter := paypal.New(&fakeAPI{}, paypal.Config{})

	outcome, err := adapter.Cancel(context.Background(), "PAYPAL-1")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCancelled, outcome.Kind)
	assert.Equal(t, "PAYPAL-1", outcome.Reference)
}

func TestSandboxRoundTrip(t *testing.T) {
	adapter := paypal.New(paypal.NewSandbox(), paypal.Config{
		ReturnURL: "https://shop.example/return",
		CancelURL: "https://shop.example/cancel",
	})

	session, err := adapter.CreatePayment(context.Background(), testIntent())
	require.NoError(t, err)
	require.NotEmpty(t, session.Reference)

	outcome, err := adapter.Capture(context.Background(), session.Reference, "approver")
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeSucceeded, outcome.Kind)

	_, err = adapter.Capture(context.Background(), "never-created", "approver")
	require.ErrorIs(t, err, payment.ErrProvider)
}
