package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/heroeats/marketplace/internal/domain/order"
	"github.com/heroeats/marketplace/internal/domain/payment"
	"github.com/heroeats/marketplace/internal/observability"
	"github.com/heroeats/marketplace/internal/pkg/logging"

	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("webhook: invalid signature")
	ErrUnknownProvider  = errors.New("webhook: unknown provider")
	ErrMalformedEvent   = errors.New("webhook: malformed event")
)

const (
	ProviderPayPal = "paypal"
	ProviderStripe = "stripe"

	// defaultTolerance bounds how old a signed Stripe timestamp may be.
	defaultTolerance = 5 * time.Minute
)

// OutcomeApplier is the slice of the orchestrator the reconciler needs.
type OutcomeApplier interface {
	ApplyOutcome(ctx context.Context, outcome payment.Outcome) error
}

// Reconciler verifies inbound provider events and replays them as idempotent
// state transitions through the orchestrator. Signature verification fails
// closed and always happens before any payload parsing.
type Reconciler struct {
	applier   OutcomeApplier
	secrets   map[string][]byte
	tolerance time.Duration
	now       func() time.Time

	events observability.Counter // webhook_events_total{provider,result}
}

func NewReconciler(applier OutcomeApplier, secrets map[string][]byte, opts ...ReconcilerOption) *Reconciler {
	normalized := make(map[string][]byte, len(secrets))
	for name, secret := range secrets {
		normalized[strings.ToLower(name)] = secret
	}
	r := &Reconciler{
		applier:   applier,
		secrets:   normalized,
		tolerance: defaultTolerance,
		now:       time.Now,
		events:    observability.NopCounter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type ReconcilerOption func(*Reconciler)

func WithEventCounter(c observability.Counter) ReconcilerOption {
	return func(r *Reconciler) {
		if c != nil {
			r.events = c
		}
	}
}

func WithTolerance(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.tolerance = d }
}

func withClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// Handle verifies and applies one delivery. A nil return means acknowledge
// (2xx): that includes unrecognized-but-valid event types and references
// belonging to other systems or already-processed events, since providers
// retry on non-2xx responses.
func (r *Reconciler) Handle(ctx context.Context, provider string, payload []byte, signature string) error {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "webhook_reconciler"),
		zap.String("provider", provider),
	)

	provider = strings.ToLower(provider)
	secret, ok := r.secrets[provider]
	if !ok {
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "unknown_provider"))
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	var verifyErr error
	switch provider {
	case ProviderStripe:
		verifyErr = verifyStripeSignature(payload, signature, secret, r.tolerance, r.now())
	default:
		verifyErr = verifyPlainSignature(payload, signature, secret)
	}
	if verifyErr != nil {
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "invalid_signature"))
		logger.Warn("webhook_signature_rejected", zap.Error(verifyErr))
		return verifyErr
	}

	outcome, recognized, err := parseEvent(provider, payload)
	if err != nil {
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "malformed"))
		return err
	}
	if !recognized {
		// Valid but uninteresting event type; acknowledge so the provider
		// stops redelivering.
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "ignored"))
		logger.Info("webhook_event_ignored")
		return nil
	}

	err = r.applier.ApplyOutcome(ctx, outcome)
	switch {
	case err == nil:
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "applied"))
		return nil
	case errors.Is(err, domain.ErrUnknownReference):
		// Expected traffic: refs of other systems or sessions already purged.
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "unknown_reference"))
		logger.Info("webhook_unknown_reference", zap.String("provider_reference", outcome.Reference))
		return nil
	case errors.Is(err, domain.ErrPaymentFinal):
		// Conflicting terminal outcome; redelivery cannot fix it, so ack.
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "conflict"))
		logger.Warn("webhook_outcome_conflict",
			zap.String("provider_reference", outcome.Reference),
			zap.Error(err),
		)
		return nil
	default:
		r.events.Add(1, observability.L("provider", provider), observability.L("result", "error"))
		return err
	}
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

type paypalEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID string `json:"id"`
	} `json:"resource"`
}

func parseEvent(provider string, payload []byte) (payment.Outcome, bool, error) {
	switch provider {
	case ProviderStripe:
		var evt stripeEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return payment.Outcome{}, false, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		switch evt.Type {
		case "checkout.session.completed", "payment_intent.succeeded":
			return outcomeWithRef(payment.Succeeded(evt.Data.Object.ID))
		case "payment_intent.payment_failed":
			return outcomeWithRef(payment.Failed(evt.Data.Object.ID, evt.Type))
		case "checkout.session.expired":
			return outcomeWithRef(payment.Cancelled(evt.Data.Object.ID))
		}
		return payment.Outcome{}, false, nil

	case ProviderPayPal:
		var evt paypalEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return payment.Outcome{}, false, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		switch evt.EventType {
		case "PAYMENT.CAPTURE.COMPLETED":
			return outcomeWithRef(payment.Succeeded(evt.Resource.ID))
		case "PAYMENT.CAPTURE.DENIED":
			return outcomeWithRef(payment.Failed(evt.Resource.ID, evt.EventType))
		}
		return payment.Outcome{}, false, nil
	}

	return payment.Outcome{}, false, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}

func outcomeWithRef(o payment.Outcome) (payment.Outcome, bool, error) {
	if o.Reference == "" {
		return payment.Outcome{}, false, fmt.Errorf("%w: missing reference", ErrMalformedEvent)
	}
	return o, true, nil
}
