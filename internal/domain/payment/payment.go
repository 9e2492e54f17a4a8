package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/heroeats/marketplace/internal/domain/money"
)

var (
	ErrProvider        = errors.New("payment: provider error")
	ErrUnknownProvider = errors.New("payment: unknown provider")
)

// ProviderErr wraps a provider-specific failure so the orchestrator can leave
// order state untouched and let the caller retry.
func ProviderErr(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProvider, provider, err)
}

// Intent is the provider-agnostic description of a payment to initiate. It is
// transient: its outcome is folded into the order's payment fields.
type Intent struct {
	OrderID     string
	Amount      money.Money
	Description string
	Lines       []LineItem
}

// LineItem carries per-line detail for providers that itemize the session.
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice money.Money
}

// Session is the provider's handle for an initiated payment: the reference used
// for all later correlation and the URL the buyer is redirected to.
type Session struct {
	Reference   string
	RedirectURL string
}

type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the tagged terminal result of a payment, produced by an adapter or
// the webhook reconciler and consumed exactly once per provider reference.
type Outcome struct {
	Kind      OutcomeKind
	Reference string
	Reason    string
}

func Succeeded(ref string) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Reference: ref}
}

func Failed(ref, reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reference: ref, Reason: reason}
}

func Cancelled(ref string) Outcome {
	return Outcome{Kind: OutcomeCancelled, Reference: ref}
}

// Provider is the capability set a payment provider adapter exposes. No
// provider-specific type leaks past this boundary.
type Provider interface {
	Name() string

	// CreatePayment asks the provider to create a session for the intent.
	CreatePayment(ctx context.Context, intent Intent) (Session, error)

	// Capture drives the payment identified by ref to a terminal outcome.
	// PayPal-style providers use the approver token; Stripe-style providers
	// ignore it and re-query session state instead.
	Capture(ctx context.Context, ref, approverToken string) (Outcome, error)

	// Cancel marks the session as abandoned by the buyer.
	Cancel(ctx context.Context, ref string) (Outcome, error)
}
