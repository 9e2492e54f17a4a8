package payment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heroeats/marketplace/internal/domain/payment"
)

type namedProvider struct {
	name string
}

func (p namedProvider) Name() string { return p.name }

func (p namedProvider) CreatePayment(context.Context, payment.Intent) (payment.Session, error) {
	return payment.Session{}, nil
}

func (p namedProvider) Capture(context.Context, string, string) (payment.Outcome, error) {
	return payment.Outcome{}, nil
}

func (p namedProvider) Cancel(context.Context, string) (payment.Outcome, error) {
	return payment.Outcome{}, nil
}

func TestNewRegistry(t *testing.T) {
	_, err := payment.NewRegistry("paypal", namedProvider{name: "stripe"})
	require.ErrorIs(t, err, payment.ErrUnknownProvider)

	registry, err := payment.NewRegistry("PayPal", namedProvider{name: "paypal"})
	require.NoError(t, err)
	assert.Equal(t, "paypal", registry.DefaultName())
}

func TestResolve(t *testing.T) {
	registry, err := payment.NewRegistry("paypal",
		namedProvider{name: "paypal"},
		namedProvider{name: "stripe"},
	)
	require.NoError(t, err)

	tests := []struct {
		name      string
		lookup    string
		want      string
		wantError bool
	}{
		{name: "empty resolves to default", lookup: "", want: "paypal"},
		{name: "exact name", lookup: "stripe", want: "stripe"},
		{name: "case insensitive", lookup: "STRIPE", want: "stripe"},
		{name: "unknown name", lookup: "square", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.Resolve(tt.lookup)
			if tt.wantError {
				require.ErrorIs(t, err, payment.ErrUnknownProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}
