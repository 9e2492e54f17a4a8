// Package stripe adapts the provider-agnostic payment capability onto the
// Stripe Checkout shape: session creation yields a checkout URL and capture is
// determined by re-querying session state rather than by an approver token.
package stripe

import (
	"context"
	"fmt"

	"github.com/heroeats/marketplace/internal/domain/payment"
)

const Name = "stripe"

const (
	sessionComplete = "complete"
	sessionExpired  = "expired"
	paymentPaid     = "paid"

	// sessionIDPlaceholder is substituted by Stripe when redirecting back.
	sessionIDPlaceholder = "?session_id={CHECKOUT_SESSION_ID}"
)

// API is the slice of the Stripe Checkout API the adapter depends on. The real
// HTTP client lives outside the engine; tests inject fakes.
type API interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (Session, error)
}

type SessionParams struct {
	Mode       string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
	LineItems  []LineItem
}

type LineItem struct {
	Name        string
	Description string
	Currency    string
	UnitAmount  int64
	Quantity    int64
}

type Session struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
}

type Config struct {
	SuccessURL string
	CancelURL  string
}

type Adapter struct {
	client API
	cfg    Config
}

func New(client API, cfg Config) *Adapter {
	return &Adapter{client: client, cfg: cfg}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) CreatePayment(ctx context.Context, intent payment.Intent) (payment.Session, error) {
	params := SessionParams{
		Mode:       "payment",
		SuccessURL: a.cfg.SuccessURL + sessionIDPlaceholder,
		CancelURL:  a.cfg.CancelURL + sessionIDPlaceholder,
		Metadata:   map[string]string{"orderId": intent.OrderID},
	}
	for _, line := range intent.Lines {
		params.LineItems = append(params.LineItems, LineItem{
			Name:        line.Name,
			Description: fmt.Sprintf("%s - %s", intent.Description, line.Name),
			Currency:    line.UnitPrice.Currency.String(),
			UnitAmount:  line.UnitPrice.MinorUnits(),
			Quantity:    int64(line.Quantity),
		})
	}

	session, err := a.client.CreateCheckoutSession(ctx, params)
	if err != nil {
		return payment.Session{}, payment.ProviderErr(Name, err)
	}

	return payment.Session{Reference: session.ID, RedirectURL: session.URL}, nil
}

// Capture ignores the approver token and re-queries the session: complete and
// paid means succeeded, expired means the buyer walked away, anything else is
// reported as failed with the session status as reason.
func (a *Adapter) Capture(ctx context.Context, ref, approverToken string) (payment.Outcome, error) {
	_ = approverToken

	session, err := a.client.RetrieveSession(ctx, ref)
	if err != nil {
		return payment.Outcome{}, payment.ProviderErr(Name, err)
	}

	switch {
	case session.Status == sessionComplete && session.PaymentStatus == paymentPaid:
		return payment.Succeeded(ref), nil
	case session.Status == sessionExpired:
		return payment.Cancelled(ref), nil
	default:
		return payment.Failed(ref, fmt.Sprintf("session status %s", session.Status)), nil
	}
}

// Cancel marks the session as abandoned. Checkout sessions cannot be revoked
// server-side; they expire on their own, so the session is only read to make
// sure the reference is real.
func (a *Adapter) Cancel(ctx context.Context, ref string) (payment.Outcome, error) {
	if _, err := a.client.RetrieveSession(ctx, ref); err != nil {
		return payment.Outcome{}, payment.ProviderErr(Name, err)
	}
	return payment.Cancelled(ref), nil
}
