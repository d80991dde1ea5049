package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/billing"
	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/events"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

// mockQuerier wraps a real Querier and lets a test replace single methods.
type mockQuerier struct {
	repository.Querier

	CreateOrderLineFunc func(ctx context.Context, arg repository.CreateOrderLineParams) (repository.OrderLine, error)
	DeleteCartLinesFunc func(ctx context.Context, cartID int64) (int64, error)
	EnqueueJobFunc      func(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

func (m *mockQuerier) CreateOrderLine(ctx context.Context, arg repository.CreateOrderLineParams) (repository.OrderLine, error) {
	if m.CreateOrderLineFunc != nil {
		return m.CreateOrderLineFunc(ctx, arg)
	}
	return m.Querier.CreateOrderLine(ctx, arg)
}

func (m *mockQuerier) DeleteCartLines(ctx context.Context, cartID int64) (int64, error) {
	if m.DeleteCartLinesFunc != nil {
		return m.DeleteCartLinesFunc(ctx, cartID)
	}
	return m.Querier.DeleteCartLines(ctx, cartID)
}

func (m *mockQuerier) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	if m.EnqueueJobFunc != nil {
		return m.EnqueueJobFunc(ctx, arg)
	}
	return m.Querier.EnqueueJob(ctx, arg)
}

// mockStore runs every transaction on a MemoryStore with the mockQuerier's
// overrides layered on top.
type mockStore struct {
	inner   *repository.MemoryStore
	querier mockQuerier
}

func (s *mockStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	return s.inner.ExecTx(ctx, func(q repository.Querier) error {
		m := s.querier
		m.Querier = q
		return fn(&m)
	})
}

type testEnv struct {
	store     *repository.MemoryStore
	txStore   repository.Store
	provider  *billing.MockProvider
	publisher *events.Recorder
	metrics   *telemetry.BusinessMetrics

	stock    domain.StockService
	cart     domain.CartService
	checkout domain.CheckoutService
	payment  domain.PaymentService
	orders   domain.OrderService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore builds every service. When mock is non-nil the services
// run on it, and its inner MemoryStore is used for seeding.
func newTestEnvWithStore(t *testing.T, mock *mockStore) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     repository.NewMemoryStore(2 * time.Second),
		provider:  billing.NewMockProvider(),
		publisher: &events.Recorder{},
		metrics:   telemetry.NewBusinessMetrics("test", prometheus.NewRegistry()),
	}
	env.txStore = env.store
	if mock != nil {
		mock.inner = env.store
		env.txStore = mock
	}

	logger := testLogger()
	var err error

	env.stock, err = NewStockService(env.txStore, logger)
	require.NoError(t, err)
	env.cart, err = NewCartService(env.txStore, env.metrics, logger)
	require.NoError(t, err)
	env.checkout, err = NewCheckoutService(env.txStore, env.provider, env.publisher, env.metrics, logger, CheckoutConfig{
		BaseURL:  "https://books.example.com/",
		Currency: "usd",
	})
	require.NoError(t, err)
	env.payment, err = NewPaymentService(env.txStore, env.provider, env.publisher, env.metrics, logger, PaymentConfig{Currency: "usd"})
	require.NoError(t, err)
	env.orders, err = NewOrderService(env.txStore, logger)
	require.NoError(t, err)

	return env
}

// addBook seeds a book with a price and a stock level.
func (e *testEnv) addBook(t *testing.T, title, price string, stock int) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := e.store.AddBook(ctx, title, "Author of "+title, "Fiction", decimal.RequireFromString(price))
	require.NoError(t, err)
	if stock >= 0 {
		_, err = e.stock.SetQuantity(ctx, id, stock)
		require.NoError(t, err)
	}
	return id
}

func (e *testEnv) quantityOf(t *testing.T, bookID int64) int {
	t.Helper()
	qty, err := e.stock.QuantityOf(context.Background(), bookID)
	require.NoError(t, err)
	return qty
}

func (e *testEnv) orderCount(t *testing.T) int {
	t.Helper()
	n, err := e.store.CountOrders(context.Background())
	require.NoError(t, err)
	return n
}

func validShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		MobileNumber: "+44 20 7946 0000",
		Address:      "12 St James's Square, London",
	}
}

func codParams() domain.CheckoutParams {
	return domain.CheckoutParams{PaymentMethod: domain.PaymentMethodCOD, Shipping: validShipping()}
}

func onlineParams() domain.CheckoutParams {
	return domain.CheckoutParams{PaymentMethod: domain.PaymentMethodOnline, Shipping: validShipping()}
}
