// Package paypal adapts the provider-agnostic payment capability onto the
// PayPal Orders API shape: session creation yields an approval URL and capture
// is client-driven, keyed by the approving payer.
package paypal

import (
	"context"
	"errors"
	"fmt"

	"github.com/heroeats/marketplace/internal/domain/payment"
)

const Name = "paypal"

const (
	statusCompleted = "COMPLETED"
	relApprove      = "approve"
)

// API is the slice of the PayPal Orders API the adapter depends on. The real
// HTTP client lives outside the engine; tests inject fakes.
type API interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (OrderResponse, error)
}

type CreateOrderRequest struct {
	Intent       string
	ReferenceID  string
	Description  string
	CurrencyCode string
	Value        string
	Items        []Item
	ReturnURL    string
	CancelURL    string
}

type Item struct {
	Name      string
	UnitValue string
	Quantity  int
}

type Link struct {
	Rel  string
	Href string
}

type OrderResponse struct {
	ID     string
	Status string
	Links  []Link
}

type Config struct {
	ReturnURL string
	CancelURL string
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
	req := CreateOrderRequest{
		Intent:       "CAPTURE",
		ReferenceID:  intent.OrderID,
		Description:  intent.Description,
		CurrencyCode: intent.Amount.Currency.String(),
		Value:        intent.Amount.Amount.StringFixed(2),
		ReturnURL:    a.cfg.ReturnURL,
		CancelURL:    a.cfg.CancelURL,
	}
	for _, line := range intent.Lines {
		req.Items = append(req.Items, Item{
			Name:      line.Name,
			UnitValue: line.UnitPrice.Amount.StringFixed(2),
			Quantity:  line.Quantity,
		})
	}

	resp, err := a.client.CreateOrder(ctx, req)
	if err != nil {
		return payment.Session{}, payment.ProviderErr(Name, err)
	}

	approveURL := ""
	for _, link := range resp.Links {
		if link.Rel == relApprove {
			approveURL = link.Href
			break
		}
	}
	if approveURL == "" {
		return payment.Session{}, payment.ProviderErr(Name, errors.New("no approval link in response"))
	}

	return payment.Session{Reference: resp.ID, RedirectURL: approveURL}, nil
}

// Capture executes the capture after the buyer approved the order. The
// approver token identifies the payer; PayPal correlates it server-side, so it
// is not forwarded with the capture call itself.
func (a *Adapter) Capture(ctx context.Context, ref, approverToken string) (payment.Outcome, error) {
	_ = approverToken

	resp, err := a.client.CaptureOrder(ctx, ref)
	if err != nil {
		return payment.Outcome{}, payment.ProviderErr(Name, err)
	}

	if resp.Status == statusCompleted {
		return payment.Succeeded(ref), nil
	}
	return payment.Failed(ref, fmt.Sprintf("capture status %s", resp.Status)), nil
}

// Cancel records buyer abandonment. PayPal needs no API call: an unapproved
// order simply expires, so only the outcome is produced.
func (a *Adapter) Cancel(ctx context.Context, ref string) (payment.Outcome, error) {
	_ = ctx
	return payment.Cancelled(ref), nil
}
