package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	appOrder "github.com/heroeats/marketplace/internal/application/order"
	"github.com/heroeats/marketplace/internal/application/webhook"
	domainCatalog "github.com/heroeats/marketplace/internal/domain/catalog"
	domainInventory "github.com/heroeats/marketplace/internal/domain/inventory"
	domainMoney "github.com/heroeats/marketplace/internal/domain/money"
	domainOrder "github.com/heroeats/marketplace/internal/domain/order"
	domainPayment "github.com/heroeats/marketplace/internal/domain/payment"
	httptransport "github.com/heroeats/marketplace/internal/infrastructure/http"
	"github.com/heroeats/marketplace/internal/infrastructure/id"
	"github.com/heroeats/marketplace/internal/infrastructure/memory"
	"github.com/heroeats/marketplace/internal/infrastructure/oteltrace"
	"github.com/heroeats/marketplace/internal/infrastructure/paypal"
	"github.com/heroeats/marketplace/internal/infrastructure/postgres"
	"github.com/heroeats/marketplace/internal/infrastructure/prometrics"
	"github.com/heroeats/marketplace/internal/infrastructure/stripe"
	"github.com/heroeats/marketplace/internal/pkg/logging"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "heroeats")
	env := getenvDefault("ENV", "dev")
	baseLogger := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store  domainOrder.Store
		ledger domainInventory.Ledger
	)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			systemLogger.Fatal("postgres_connect_error", zap.Error(err))
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			systemLogger.Fatal("postgres_migrate_error", zap.Error(err))
		}
		store = postgres.NewOrderStore(pool)
		pgLedger := postgres.NewInventoryLedger(pool)
		for _, p := range demoProducts() {
			if err := pgLedger.Seed(ctx, p.ID, demoPortions); err != nil {
				systemLogger.Fatal("inventory_seed_error", zap.Error(err))
			}
		}
		ledger = pgLedger
		systemLogger.Info("storage_postgres")
	} else {
		memLedger := memory.NewInventoryLedger()
		for _, p := range demoProducts() {
			memLedger.Seed(p.ID, demoPortions)
		}
		store = memory.NewOrderStore()
		ledger = memLedger
		systemLogger.Info("storage_memory")
	}

	catalog := memory.NewCatalog()
	for _, p := range demoProducts() {
		catalog.AddProduct(p)
	}
	for _, u := range demoUsers {
		catalog.AddUser(u)
	}

	paypalAdapter := paypal.New(paypal.NewSandbox(), paypal.Config{
		ReturnURL: getenvDefault("PAYPAL_RETURN_URL", "http://localhost:8080/payments/return"),
		CancelURL: getenvDefault("PAYPAL_CANCEL_URL", "http://localhost:8080/payments/cancel"),
	})
	stripeAdapter := stripe.New(stripe.NewSandbox(), stripe.Config{
		SuccessURL: getenvDefault("STRIPE_SUCCESS_URL", "http://localhost:8080/payments/success"),
		CancelURL:  getenvDefault("STRIPE_CANCEL_URL", "http://localhost:8080/payments/cancel"),
	})

	registry, err := domainPayment.NewRegistry(
		getenvDefault("DEFAULT_PROVIDER", paypal.Name),
		paypalAdapter, stripeAdapter,
	)
	if err != nil {
		systemLogger.Fatal("payment_registry_error", zap.Error(err))
	}

	metrics := prometrics.New(serviceName, "")
	orderService := appOrder.NewService(
		store, ledger, catalog, catalog, registry, id.NewUUIDGenerator(),
		appOrder.WithTracer(oteltrace.New(serviceName)),
		appOrder.WithMetrics(
			metrics.Counter("orders_created_total", "Total order creation attempts.", "outcome"),
			metrics.Counter("payment_outcomes_total", "Total payment outcomes applied to orders.", "provider", "kind", "result"),
		),
		appOrder.WithDurations(
			metrics.Histogram("usecase_duration_seconds", "Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		),
	)

	reconciler := webhook.NewReconciler(orderService, map[string][]byte{
		paypal.Name: []byte(getenvDefault("PAYPAL_WEBHOOK_SECRET", "paypal-dev-secret")),
		stripe.Name: []byte(getenvDefault("STRIPE_WEBHOOK_SECRET", "stripe-dev-secret")),
	},
		webhook.WithEventCounter(
			metrics.Counter("webhook_events_total", "Total webhook deliveries by result.", "provider", "result"),
		),
	)

	handler := httptransport.NewHandler(orderService, reconciler)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("ADDR", ":8080"),
		Handler: mux,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

const demoPortions = 10

var demoUsers = []string{"user-1", "user-2"}

func demoProducts() []domainCatalog.Product {
	usd := func(s string) domainMoney.Money {
		return domainMoney.New(decimal.RequireFromString(s), currency.USD)
	}
	return []domainCatalog.Product{
		{ID: "surprise-bag-bakery", Name: "Bakery Surprise Bag", Price: usd("5.00")},
		{ID: "surprise-bag-sushi", Name: "Sushi Surprise Bag", Price: usd("8.50")},
		{ID: "surprise-bag-deli", Name: "Deli Surprise Bag", Price: usd("3.50")},
	}
}
