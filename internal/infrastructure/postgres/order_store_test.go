package postgres_test

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"

	"github.com/heroeats/marketplace/internal/domain/money"
	"github.com/heroeats/marketplace/internal/domain/order"
	"github.com/heroeats/marketplace/internal/infrastructure/postgres"
)

type orderStoreSuite struct {
	suite.Suite

	store     *postgres.OrderStore
	pool      *pgxpool.Pool
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestOrderStoreSuite(t *testing.T) {
	// Verifies no leaks after all tests in the suite run.
	defer goleak.VerifyNone(t)

	suite.Run(t, new(orderStoreSuite))
}

// before all tests in the suite
func (suite *orderStoreSuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = connect(ctx, connStr)
	suite.NoError(err)

	suite.store = postgres.NewOrderStore(suite.pool)
}

// after all tests in the suite
func (suite *orderStoreSuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *orderStoreSuite) deleteAll() {
	_, err := suite.pool.Exec(suite.T().Context(), "TRUNCATE TABLE orders, order_lines CASCADE")
	suite.NoError(err)
}

func randomOrder() *order.Order {
	unit := currency.USD

	var lines []order.Line
	for i := 0; i < gofakeit.Number(1, 4); i++ {
		lines = append(lines, order.Line{
			ProductID:   gofakeit.UUID(),
			ProductName: gofakeit.ProductName(),
			Quantity:    gofakeit.Number(1, 5),
			UnitPrice:   money.New(decimal.NewFromFloat(gofakeit.Price(1, 50)), unit),
		})
	}

	o, err := order.New(uuid.NewString(), gofakeit.UUID(), lines, time.Now().Add(2*time.Hour).UTC())
	if err != nil {
		panic(err)
	}
	return o
}

func assertOrder(t *testing.T, expected, actual *order.Order) {
	t.Helper()

	currencyComparer := cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	})
	decimalComparer := cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})

	opts := cmp.Options{
		cmpopts.IgnoreFields(order.Order{}, "CreatedAt", "UpdatedAt", "PickupTime"),
		currencyComparer,
		decimalComparer,
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.CreatedAt.IsZero())
	assert.False(t, actual.UpdatedAt.IsZero())
	assert.WithinDuration(t, expected.PickupTime, actual.PickupTime, time.Second)
}

func (suite *orderStoreSuite) TestInsertAndGet() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o := randomOrder()
	require.NoError(t, suite.store.Insert(ctx, o))

	actual, err := suite.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assertOrder(t, o, actual)

	// Second insert of the same ID is a conflict.
	require.ErrorIs(t, suite.store.Insert(ctx, o), order.ErrConflict)

	_, err = suite.store.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, order.ErrNotFound)
}

func (suite *orderStoreSuite) TestSetPaymentSession() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o := randomOrder()
	require.NoError(t, suite.store.Insert(ctx, o))

	ref := "PAYPAL-" + uuid.NewString()
	require.NoError(t, suite.store.SetPaymentSession(ctx, o.ID, "paypal", ref))

	actual, err := suite.store.FindByPaymentReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, o.ID, actual.ID)
	assert.Equal(t, order.PaymentPending, actual.PaymentStatus)
	assert.Equal(t, "paypal", actual.PaymentProvider)

	// Unknown order and non-pending order are distinguishable failures.
	require.ErrorIs(t, suite.store.SetPaymentSession(ctx, uuid.NewString(), "paypal", "x"), order.ErrNotFound)

	applied, err := suite.store.CancelPending(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, applied)
	require.ErrorIs(t, suite.store.SetPaymentSession(ctx, o.ID, "paypal", "y"), order.ErrNotPending)
}

func (suite *orderStoreSuite) TestApplyPaymentOutcome() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o := randomOrder()
	require.NoError(t, suite.store.Insert(ctx, o))
	require.NoError(t, suite.store.SetPaymentSession(ctx, o.ID, "stripe", "cs_"+uuid.NewString()))

	applied, err := suite.store.ApplyPaymentOutcome(ctx, o.ID, order.PaymentCompleted, order.StatusConfirmed)
	require.NoError(t, err)
	assert.True(t, applied)

	// The guard refuses a second terminal transition.
	applied, err = suite.store.ApplyPaymentOutcome(ctx, o.ID, order.PaymentFailed, order.StatusPending)
	require.NoError(t, err)
	assert.False(t, applied)

	actual, err := suite.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentCompleted, actual.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, actual.Status)
}

func (suite *orderStoreSuite) TestApplyPaymentOutcome_WithoutSession() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o := randomOrder()
	require.NoError(t, suite.store.Insert(ctx, o))

	// No payment session yet, so the guarded update cannot match.
	applied, err := suite.store.ApplyPaymentOutcome(ctx, o.ID, order.PaymentCompleted, order.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, applied)
}

func (suite *orderStoreSuite) TestApplyPaymentOutcome_CancelledOrder() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o := randomOrder()
	require.NoError(t, suite.store.Insert(ctx, o))
	require.NoError(t, suite.store.SetPaymentSession(ctx, o.ID, "stripe", "cs_"+uuid.NewString()))

	applied, err := suite.store.CancelPending(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, applied)

	// Cancellation leaves payment_status PENDING; the order-status guard
	// still keeps a late success from reviving the row.
	applied, err = suite.store.ApplyPaymentOutcome(ctx, o.ID, order.PaymentCompleted, order.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, applied)

	actual, err := suite.store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, actual.Status)
	assert.Equal(t, order.PaymentPending, actual.PaymentStatus)
}

func (suite *orderStoreSuite) TestGuardedStatusTransitions() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o := randomOrder()
	require.NoError(t, suite.store.Insert(ctx, o))

	applied, err := suite.store.CancelPending(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, applied)

	// Already cancelled; the compare-and-set misses.
	applied, err = suite.store.CancelPending(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = suite.store.AdvanceStatus(ctx, o.ID, order.StatusConfirmed, order.StatusReady)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = suite.store.CancelPending(ctx, uuid.NewString())
	require.ErrorIs(t, err, order.ErrNotFound)
}

func (suite *orderStoreSuite) TestListByUser() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	o1 := randomOrder()
	o2 := randomOrder()
	o2.UserID = o1.UserID
	require.NoError(t, suite.store.Insert(ctx, o1))
	require.NoError(t, suite.store.Insert(ctx, o2))
	require.NoError(t, suite.store.Insert(ctx, randomOrder()))

	orders, err := suite.store.ListByUser(ctx, o1.UserID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, actual := range orders {
		assert.Equal(t, o1.UserID, actual.UserID)
	}

	orders, err = suite.store.ListByUser(ctx, gofakeit.UUID())
	require.NoError(t, err)
	assert.Empty(t, orders)
}
