package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcatalog "github.com/heroeats/marketplace/internal/domain/catalog"
	dominv "github.com/heroeats/marketplace/internal/domain/inventory"
	domain "github.com/heroeats/marketplace/internal/domain/order"
	"github.com/heroeats/marketplace/internal/domain/payment"
	"github.com/heroeats/marketplace/internal/observability"
	"github.com/heroeats/marketplace/internal/pkg/logging"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrCreationFailed wraps the reason an order could not be created after the
// compensating releases have completed. The failing product id is attached.
var ErrCreationFailed = errors.New("order: creation failed")

// Service is the order-payment orchestrator: it creates orders against the
// inventory ledger, initiates payments against a resolved provider, and is the
// single funnel through which every terminal payment outcome is applied.
type Service struct {
	store    domain.Store
	ledger   dominv.Ledger
	catalog  domcatalog.Catalog
	identity domcatalog.Identity
	registry *payment.Registry
	idGen    IDGenerator

	tracer          observability.Tracer
	ordersCreated   observability.Counter   // orders_created_total{outcome}
	outcomesApplied observability.Counter   // payment_outcomes_total{provider,kind,result}
	durations       observability.Histogram // usecase_duration_seconds{use_case}
}

// Option tunes optional service collaborators.
type Option func(*Service)

func WithTracer(t observability.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithMetrics(ordersCreated, outcomesApplied observability.Counter) Option {
	return func(s *Service) {
		if ordersCreated != nil {
			s.ordersCreated = ordersCreated
		}
		if outcomesApplied != nil {
			s.outcomesApplied = outcomesApplied
		}
	}
}

func WithDurations(h observability.Histogram) Option {
	return func(s *Service) {
		if h != nil {
			s.durations = h
		}
	}
}

func NewService(
	store domain.Store,
	ledger dominv.Ledger,
	cat domcatalog.Catalog,
	identity domcatalog.Identity,
	registry *payment.Registry,
	idGen IDGenerator,
	opts ...Option,
) *Service {
	s := &Service{
		store:           store,
		ledger:          ledger,
		catalog:         cat,
		identity:        identity,
		registry:        registry,
		idGen:           idGen,
		tracer:          observability.NopTracer(),
		ordersCreated:   observability.NopCounter(),
		outcomesApplied: observability.NopCounter(),
		durations:       observability.NopHistogram(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	UserID     string
	Lines      []LineInput
	PickupTime time.Time
}

// CreateOrder reserves inventory for every line, then persists the order with
// status PENDING. Reservation is saga-style: on the first failure all prior
// reservations of this call are released before the error returns, so callers
// never observe a leaked reservation.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (_ *domain.Order, err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"))
	ctx, span := s.tracer.Start(ctx, "UC.CreateOrder",
		attribute.String("order.user_id", input.UserID),
		attribute.Int("order.line_count", len(input.Lines)),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			s.ordersCreated.Add(1, observability.L("outcome", "error"))
		} else {
			s.ordersCreated.Add(1, observability.L("outcome", "success"))
		}
		s.durations.Observe(time.Since(start).Seconds(), observability.L("use_case", "CreateOrder"))
		span.End()
	}()

	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCreationFailed)
	}
	if len(input.Lines) == 0 {
		return nil, domain.ErrNoLines
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, line.ProductID)
		}
	}

	exists, err := s.identity.UserExists(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("identity.UserExists: %w", err)
	}
	if !exists {
		return nil, domcatalog.ErrUserNotFound
	}

	logger.Info("create_order_start",
		zap.String("user_id", input.UserID),
		zap.Int("lines", len(input.Lines)),
	)

	// Reserve per product sequentially; remember what to compensate.
	reserved := make([]domain.Line, 0, len(input.Lines))
	release := func() {
		for i := len(reserved) - 1; i >= 0; i-- {
			line := reserved[i]
			if rerr := s.ledger.Release(ctx, line.ProductID, line.Quantity); rerr != nil {
				logger.Error("reservation_release_failed",
					zap.String("product_id", line.ProductID),
					zap.Int("quantity", line.Quantity),
					zap.Error(rerr),
				)
			}
		}
	}

	for _, line := range input.Lines {
		product, perr := s.catalog.GetProduct(ctx, line.ProductID)
		if perr != nil {
			release()
			return nil, fmt.Errorf("%w: product %s: %w", ErrCreationFailed, line.ProductID, perr)
		}

		if rerr := s.ledger.Reserve(ctx, line.ProductID, line.Quantity); rerr != nil {
			release()
			return nil, fmt.Errorf("%w: product %s: %w", ErrCreationFailed, line.ProductID, rerr)
		}

		reserved = append(reserved, domain.Line{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		})
	}

	entity, err := domain.New(s.idGen.NewID(), input.UserID, reserved, input.PickupTime)
	if err != nil {
		release()
		return nil, fmt.Errorf("order: construct: %w", err)
	}

	if err := s.store.Insert(ctx, entity); err != nil {
		release()
		logger.Error("order_insert_failed", zap.String("order_id", entity.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}

	span.SetAttributes(attribute.String("order.id", entity.ID))
	logger.Info("create_order_success",
		zap.String("order_id", entity.ID),
		zap.String("total", entity.Total.String()),
	)
	return entity, nil
}

// InitiatePayment resolves the provider (default when name is empty), asks it
// to create a session for the order's total, and records the pending reference.
// Provider failures leave the order untouched; the call is safe to retry.
func (s *Service) InitiatePayment(ctx context.Context, orderID, providerName string) (_ payment.Session, err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"))
	ctx, span := s.tracer.Start(ctx, "UC.InitiatePayment",
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.durations.Observe(time.Since(start).Seconds(), observability.L("use_case", "InitiatePayment"))
		span.End()
	}()

	entity, err := s.store.Get(ctx, orderID)
	if err != nil {
		return payment.Session{}, err
	}
	if entity.Status != domain.StatusPending {
		return payment.Session{}, domain.ErrNotPending
	}

	provider, err := s.registry.Resolve(providerName)
	if err != nil {
		return payment.Session{}, err
	}

	intent := payment.Intent{
		OrderID:     entity.ID,
		Amount:      entity.Total,
		Description: fmt.Sprintf("Order #%s", entity.ID),
		Lines:       intentLines(entity),
	}

	session, err := provider.CreatePayment(ctx, intent)
	if err != nil {
		logger.Error("payment_session_failed",
			zap.String("order_id", entity.ID),
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
		return payment.Session{}, err
	}

	if err := s.store.SetPaymentSession(ctx, entity.ID, provider.Name(), session.Reference); err != nil {
		// The order raced out of PENDING between the load and the update; the
		// session is orphaned on the provider side and will never be captured.
		logger.Warn("payment_session_orphaned",
			zap.String("order_id", entity.ID),
			zap.String("provider_reference", session.Reference),
			zap.Error(err),
		)
		return payment.Session{}, err
	}

	logger.Info("payment_session_created",
		zap.String("order_id", entity.ID),
		zap.String("provider", provider.Name()),
		zap.String("provider_reference", session.Reference),
	)
	return session, nil
}

// CompletePayment is the client-driven capture path: it asks the provider for
// the terminal outcome of the referenced session and funnels it through
// ApplyOutcome.
func (s *Service) CompletePayment(ctx context.Context, ref, approverToken string) (*domain.Order, error) {
	entity, err := s.store.FindByPaymentReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.Resolve(entity.PaymentProvider)
	if err != nil {
		return nil, err
	}

	outcome, err := provider.Capture(ctx, ref, approverToken)
	if err != nil {
		// Provider errors are never treated as a terminal outcome: payment
		// status stays unchanged and the caller may retry the capture.
		return nil, err
	}

	if err := s.ApplyOutcome(ctx, outcome); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, entity.ID)
}

// CancelPayment records buyer abandonment of the referenced session. The
// provider is told to cancel, then the cancelled outcome goes through the same
// ApplyOutcome funnel as every other terminal result.
func (s *Service) CancelPayment(ctx context.Context, ref string) (*domain.Order, error) {
	entity, err := s.store.FindByPaymentReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.Resolve(entity.PaymentProvider)
	if err != nil {
		return nil, err
	}

	outcome, err := provider.Cancel(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := s.ApplyOutcome(ctx, outcome); err != nil {
		return nil, err
	}

	return s.store.Get(ctx, entity.ID)
}

// ApplyOutcome is the single funnel for every terminal payment result, used
// identically by client-driven completion and by webhook reconciliation.
// Duplicate deliveries of the same terminal kind are a no-op success; the
// store's status-guarded update makes concurrent racers serialize.
func (s *Service) ApplyOutcome(ctx context.Context, outcome payment.Outcome) (err error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"))
	ctx, span := s.tracer.Start(ctx, "UC.ApplyOutcome",
		attribute.String("payment.reference", outcome.Reference),
		attribute.String("payment.outcome", string(outcome.Kind)),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		s.durations.Observe(time.Since(start).Seconds(), observability.L("use_case", "ApplyOutcome"))
		span.End()
	}()

	entity, err := s.store.FindByPaymentReference(ctx, outcome.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownReference, outcome.Reference)
		}
		return err
	}

	targetPS := paymentStatusFor(outcome.Kind)
	ps, os, err := domain.StatusForOutcome(targetPS)
	if err != nil {
		return err
	}

	result := "applied"
	defer func() {
		if err != nil {
			result = "error"
		}
		s.outcomesApplied.Add(1,
			observability.L("provider", entity.PaymentProvider),
			observability.L("kind", string(outcome.Kind)),
			observability.L("result", result),
		)
	}()

	if entity.PaymentStatus.Terminal() {
		if entity.PaymentStatus == targetPS {
			// Duplicate delivery of an already-processed event.
			result = "duplicate"
			logger.Info("payment_outcome_duplicate",
				zap.String("order_id", entity.ID),
				zap.String("provider_reference", outcome.Reference),
				zap.String("payment_status", string(entity.PaymentStatus)),
			)
			return nil
		}
		return fmt.Errorf("%w: %s is already %s", domain.ErrPaymentFinal, entity.ID, entity.PaymentStatus)
	}

	applied, err := s.store.ApplyPaymentOutcome(ctx, entity.ID, ps, os)
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race against a concurrent ApplyOutcome or a cancellation
		// for the same order; re-read to distinguish duplicate from conflict.
		current, gerr := s.store.Get(ctx, entity.ID)
		if gerr != nil {
			return gerr
		}
		if current.PaymentStatus == targetPS {
			result = "duplicate"
			return nil
		}
		if current.Status != domain.StatusPending && !current.PaymentStatus.Terminal() {
			return fmt.Errorf("%w: %s is already %s", domain.ErrPaymentFinal, entity.ID, current.Status)
		}
		return fmt.Errorf("%w: %s is already %s", domain.ErrPaymentFinal, entity.ID, current.PaymentStatus)
	}

	logger.Info("payment_outcome_applied",
		zap.String("order_id", entity.ID),
		zap.String("provider", entity.PaymentProvider),
		zap.String("provider_reference", outcome.Reference),
		zap.String("payment_status", string(ps)),
		zap.String("order_status", string(os)),
		zap.String("reason", outcome.Reason),
	)
	return nil
}

// CancelOrder cancels a PENDING order owned by userID and releases its
// reserved inventory. The PENDING->CANCELLED move happens first, atomically,
// so a concurrent successful payment wins the race and cancellation fails with
// ErrInvalidState instead of releasing a confirmed order's portions.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) error {
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"))

	entity, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if entity.UserID != userID {
		return domain.ErrNotOwner
	}

	applied, err := s.store.CancelPending(ctx, orderID)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: can only cancel pending orders", domain.ErrInvalidState)
	}

	// The CAS above guarantees this runs at most once per order.
	var releaseErrs []error
	for _, line := range entity.Lines {
		if rerr := s.ledger.Release(ctx, line.ProductID, line.Quantity); rerr != nil {
			releaseErrs = append(releaseErrs, fmt.Errorf("release %s: %w", line.ProductID, rerr))
		}
	}
	if len(releaseErrs) > 0 {
		logger.Error("cancel_release_failed",
			zap.String("order_id", orderID),
			zap.Error(errors.Join(releaseErrs...)),
		)
		return errors.Join(releaseErrs...)
	}

	logger.Info("order_cancelled", zap.String("order_id", orderID))
	return nil
}

// UpdateOrderStatus performs the administrative forward transitions
// CONFIRMED->READY->COMPLETED. The cancellation path is rejected here.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, target domain.Status) (*domain.Order, error) {
	if _, err := domain.ToStatus(string(target)); err != nil {
		return nil, err
	}

	entity, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !entity.CanAdvanceTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, entity.Status, target)
	}

	applied, err := s.store.AdvanceStatus(ctx, orderID, entity.Status, target)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, entity.Status, target)
	}

	return s.store.Get(ctx, orderID)
}

// GetOrder returns the order snapshot, enforcing ownership.
func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	entity, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entity.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	return entity, nil
}

func (s *Service) ListOrdersForUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.store.ListByUser(ctx, userID)
}

func paymentStatusFor(kind payment.OutcomeKind) domain.PaymentStatus {
	switch kind {
	case payment.OutcomeSucceeded:
		return domain.PaymentCompleted
	case payment.OutcomeCancelled:
		return domain.PaymentCancelled
	default:
		return domain.PaymentFailed
	}
}

func intentLines(o *domain.Order) []payment.LineItem {
	items := make([]payment.LineItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, payment.LineItem{
			Name:      line.ProductName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return items
}
