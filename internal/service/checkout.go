package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal/billing"
	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/events"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

// CheckoutConfig holds the settings checkout needs for online payment.
type CheckoutConfig struct {
	// BaseURL is the public storefront URL the payment page returns to.
	BaseURL string

	// Currency is the ISO currency code sent to the payment provider.
	Currency string

	// SessionTimeout bounds the payment session call, which runs inside the
	// checkout transaction. Keep it below the store's lock timeout.
	SessionTimeout time.Duration
}

const defaultSessionTimeout = 4 * time.Second

type checkoutService struct {
	store     repository.Store
	billing   billing.Provider
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	config    CheckoutConfig
}

// NewCheckoutService creates the checkout engine.
func NewCheckoutService(
	store repository.Store,
	billingProvider billing.Provider,
	publisher events.Publisher,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
	config CheckoutConfig,
) (domain.CheckoutService, error) {
	if store == nil {
		return nil, errors.New("checkout service: store is required")
	}
	if billingProvider == nil {
		return nil, errors.New("checkout service: billing provider is required")
	}
	if metrics == nil {
		return nil, errors.New("checkout service: metrics are required")
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = defaultSessionTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &checkoutService{
		store:     store,
		billing:   billingProvider,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}, nil
}

// placedOrder is what checkout knows about the order after commit.
type placedOrder struct {
	id     int64
	userID string
	total  decimal.Decimal
}

// Checkout converts the user's cart into an order in one transaction.
//
// COD reserves every line, persists the order and clears the cart. Online
// persists the order and opens a payment session; stock and the cart are
// settled when the payment is confirmed.
func (s *checkoutService) Checkout(ctx context.Context, userID string, params domain.CheckoutParams) (*domain.CheckoutResult, error) {
	const op = "checkout.checkout"
	start := time.Now()
	method := string(params.PaymentMethod)

	result, placed, err := s.checkout(ctx, op, userID, params)
	if err != nil {
		s.recordFailure(op, userID, method, err)
		return nil, err
	}

	s.metrics.Checkouts.WithLabelValues(method, "success").Inc()
	s.metrics.CheckoutDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	s.metrics.OrderValue.WithLabelValues(method).Observe(placed.total.InexactFloat64())

	s.logger.Info("order placed",
		"order_id", placed.id,
		"user_id", userID,
		"payment_method", method,
		"total", placed.total.StringFixed(2),
	)

	event := events.NewOrderEvent(events.SubjectOrderCreated, placed.id, userID, method, placed.total.StringFixed(2))
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event", "order_id", placed.id, "subject", event.Type, "error", err)
	}

	return result, nil
}

func (s *checkoutService) checkout(ctx context.Context, op, userID string, params domain.CheckoutParams) (*domain.CheckoutResult, *placedOrder, error) {
	if userID == "" {
		return nil, nil, domain.ErrUserRequired
	}
	if !params.PaymentMethod.Valid() {
		return nil, nil, domain.NewValidationError(op, "paymentMethod", "paymentMethod must be COD or Online")
	}
	if err := params.Shipping.Validate(op); err != nil {
		return nil, nil, err
	}

	result := &domain.CheckoutResult{}
	placed := &placedOrder{userID: userID}

	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetCartByUserID(ctx, userID)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrEmptyCart
			}
			return fmt.Errorf("failed to get cart: %w", err)
		}

		lines, err := q.ListCartLines(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("failed to list cart lines: %w", err)
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		pending, err := lookupStatus(ctx, q, domain.StatusPending)
		if err != nil {
			return err
		}

		// Lock stock rows in a fixed order so concurrent checkouts cannot deadlock.
		slices.SortFunc(lines, func(a, b repository.ListCartLinesRow) int {
			return cmp.Compare(a.BookID, b.BookID)
		})

		if params.PaymentMethod == domain.PaymentMethodCOD {
			for _, line := range lines {
				if err := reserveStock(ctx, q, op, line.BookID, int(line.Quantity), line.Title); err != nil {
					return err
				}
			}
		}

		order, err := q.CreateOrder(ctx, repository.CreateOrderParams{
			UserID:        userID,
			StatusID:      pending.ID,
			IsPaid:        false,
			PaymentMethod: string(params.PaymentMethod),
			Name:          params.Shipping.Name,
			Email:         params.Shipping.Email,
			MobileNumber:  params.Shipping.MobileNumber,
			Address:       params.Shipping.Address,
			StockApplied:  params.PaymentMethod == domain.PaymentMethodCOD,
		})
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, line := range lines {
			if _, err := q.CreateOrderLine(ctx, repository.CreateOrderLineParams{
				OrderID:   order.ID,
				BookID:    line.BookID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}); err != nil {
				return fmt.Errorf("failed to create order line: %w", err)
			}
			placed.total = placed.total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
		}

		placed.id = order.ID
		result.OrderID = order.ID

		if params.PaymentMethod == domain.PaymentMethodCOD {
			if _, err := q.DeleteCartLines(ctx, cart.ID); err != nil {
				return fmt.Errorf("failed to clear cart: %w", err)
			}
			return nil
		}

		sessCtx, cancel := context.WithTimeout(ctx, s.config.SessionTimeout)
		defer cancel()
		sess, err := s.billing.CreateCheckoutSession(sessCtx, s.sessionParams(order, params.Shipping.Email, lines))
		if err != nil {
			return domain.PaymentRequired(err, op, "Could not start online payment, please try again")
		}

		if err := q.SetOrderPaymentSession(ctx, repository.SetOrderPaymentSessionParams{
			ID:        order.ID,
			SessionID: sess.ID,
		}); err != nil {
			return fmt.Errorf("failed to record payment session: %w", err)
		}
		result.RedirectURL = sess.URL
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return result, placed, nil
}

func (s *checkoutService) sessionParams(order repository.Order, email string, lines []repository.ListCartLinesRow) billing.CreateCheckoutSessionParams {
	orderRef := url.QueryEscape(strconv.FormatInt(order.ID, 10))

	items := make([]billing.LineItem, len(lines))
	for i, line := range lines {
		items[i] = billing.LineItem{
			Name:            line.Title,
			UnitAmountCents: billing.ToMinorUnits(line.UnitPrice),
			Quantity:        int64(line.Quantity),
		}
	}

	return billing.CreateCheckoutSessionParams{
		OrderID:        order.ID,
		CustomerEmail:  email,
		Currency:       s.config.Currency,
		LineItems:      items,
		SuccessURL:     s.config.BaseURL + "/payment/success?orderId=" + orderRef,
		CancelURL:      s.config.BaseURL + "/payment/cancel?orderId=" + orderRef,
		IdempotencyKey: fmt.Sprintf("order-%d-%d", order.ID, order.CreatedAt.UnixNano()),
	}
}

func (s *checkoutService) recordFailure(op, userID, method string, err error) {
	result := checkoutFailureReason(err)
	s.metrics.Checkouts.WithLabelValues(method, result).Inc()

	switch result {
	case "insufficient_stock":
		s.metrics.StockConflicts.WithLabelValues("insufficient").Inc()
		s.logger.Info("checkout rejected", "user_id", userID, "reason", result, "error", err)
	case "contention":
		s.metrics.StockConflicts.WithLabelValues("contention").Inc()
		s.logger.Warn("checkout lock wait exceeded", "user_id", userID, "error", err)
	case "error", "configuration":
		s.logger.Error("checkout failed", "op", op, "user_id", userID, "payment_method", method, "error", err)
		telemetry.CaptureError(err, map[string]interface{}{"op": op, "payment_method": method})
	case "payment_error":
		s.logger.Error("payment session failed", "user_id", userID, "error", err)
	default:
		s.logger.Debug("checkout rejected", "user_id", userID, "reason", result, "error", err)
	}
}

func checkoutFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrStockContention):
		return "contention"
	case errors.Is(err, domain.ErrStatusConfigurationMissing):
		return "configuration"
	}

	switch domain.ErrorCode(err) {
	case domain.EINVALID, domain.EUNAUTHORIZED:
		return "invalid"
	case domain.EPAYMENT:
		return "payment_error"
	}
	return "error"
}
