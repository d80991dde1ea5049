package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal/billing"
	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/events"
	"github.com/dukerupert/bookstore/internal/jobs"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

// PaymentConfig holds receipt settings for payment reconciliation.
type PaymentConfig struct {
	Currency          string
	ReceiptMaxRetries int
}

type paymentService struct {
	store     repository.Store
	billing   billing.Provider
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	config    PaymentConfig
}

// NewPaymentService creates the payment reconciliation service.
func NewPaymentService(
	store repository.Store,
	billingProvider billing.Provider,
	publisher events.Publisher,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
	config PaymentConfig,
) (domain.PaymentService, error) {
	if store == nil {
		return nil, errors.New("payment service: store is required")
	}
	if billingProvider == nil {
		return nil, errors.New("payment service: billing provider is required")
	}
	if metrics == nil {
		return nil, errors.New("payment service: metrics are required")
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

	return &paymentService{
		store:     store,
		billing:   billingProvider,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}, nil
}

// confirmedOrder is the state captured by a confirmation that applied.
type confirmedOrder struct {
	order     repository.Order
	lines     []repository.ListOrderLinesRow
	total     decimal.Decimal
	shortfall map[int64]int // book id -> copies that could not be taken
}

// ConfirmPayment marks an order paid, takes its stock (floored at zero) and
// clears the owner's cart in one transaction. A missing order, or one that
// is paid or already taken from stock, is left alone, so duplicate gateway
// deliveries are harmless.
func (s *paymentService) ConfirmPayment(ctx context.Context, orderID int64) (*domain.ConfirmResult, error) {
	const op = "payment.confirm"

	var confirmed *confirmedOrder
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}
		// StockApplied survives the admin payment toggle, so an order that
		// was un-paid by hand is never taken from stock twice.
		if order.IsPaid || order.StockApplied {
			return nil
		}

		paid, err := lookupStatus(ctx, q, domain.StatusPaid)
		if err != nil {
			return err
		}

		if err := q.MarkOrderPaid(ctx, repository.MarkOrderPaidParams{ID: order.ID, StatusID: paid.ID}); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}

		lines, err := q.ListOrderLines(ctx, []int64{order.ID})
		if err != nil {
			return fmt.Errorf("failed to list order lines: %w", err)
		}
		slices.SortFunc(lines, func(a, b repository.ListOrderLinesRow) int {
			return cmp.Compare(a.BookID, b.BookID)
		})

		c := &confirmedOrder{order: order, lines: lines, shortfall: map[int64]int{}}
		for _, line := range lines {
			taken, err := decrementClamped(ctx, q, line.BookID, int(line.Quantity))
			if err != nil {
				return err
			}
			if short := int(line.Quantity) - taken; short > 0 {
				c.shortfall[line.BookID] = short
			}
			c.total = c.total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
		}

		if _, err := clearCart(ctx, q, order.UserID); err != nil {
			return err
		}

		confirmed = c
		return nil
	})
	if err != nil {
		s.logger.Error("payment confirmation failed", "op", op, "order_id", orderID, "error", err)
		if errors.Is(err, domain.ErrStatusConfigurationMissing) {
			telemetry.CaptureOrderError(err, orderID, map[string]interface{}{"op": op})
		}
		return nil, err
	}

	if confirmed == nil {
		s.logger.Info("payment confirmation ignored, order missing or already applied", "order_id", orderID)
		return &domain.ConfirmResult{OrderID: orderID, Applied: false}, nil
	}

	s.logger.Info("payment confirmed",
		"order_id", orderID,
		"user_id", confirmed.order.UserID,
		"total", confirmed.total.StringFixed(2),
	)
	for bookID, short := range confirmed.shortfall {
		s.metrics.StockConflicts.WithLabelValues("oversold").Inc()
		s.logger.Warn("paid order oversold, stock floored at zero",
			"order_id", orderID,
			"book_id", bookID,
			"missing", short,
		)
	}

	// The confirmation is committed; what follows must not undo it.
	ctx = context.WithoutCancel(ctx)
	s.enqueueReceipt(ctx, confirmed)

	event := events.NewOrderEvent(events.SubjectOrderPaid, orderID, confirmed.order.UserID,
		confirmed.order.PaymentMethod, confirmed.total.StringFixed(2))
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event", "order_id", orderID, "subject", event.Type, "error", err)
	}

	return &domain.ConfirmResult{OrderID: orderID, Applied: true}, nil
}

// enqueueReceipt queues the receipt email. Failures are logged and counted only.
func (s *paymentService) enqueueReceipt(ctx context.Context, c *confirmedOrder) {
	payload := jobs.OrderReceiptPayload{
		OrderID:      c.order.ID,
		Email:        c.order.Email,
		CustomerName: c.order.Name,
		Address:      c.order.Address,
		PlacedAt:     c.order.CreatedAt,
		Total:        c.total.StringFixed(2),
		Currency:     s.config.Currency,
	}
	for _, line := range c.lines {
		payload.Lines = append(payload.Lines, jobs.ReceiptLineData{
			Title:     line.Title,
			Quantity:  int(line.Quantity),
			UnitPrice: line.UnitPrice.StringFixed(2),
			Subtotal:  line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)).StringFixed(2),
		})
	}

	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		_, err := jobs.EnqueueOrderReceipt(ctx, q, payload, s.config.ReceiptMaxRetries)
		return err
	})
	if err != nil {
		s.metrics.Notifications.WithLabelValues("order_receipt", "failed").Inc()
		s.logger.Error("failed to queue receipt", "order_id", c.order.ID, "error", err)
		return
	}
	s.metrics.Notifications.WithLabelValues("order_receipt", "queued").Inc()
}

// ConfirmIfSessionPaid confirms an online order after the provider reports
// its recorded session as paid.
func (s *paymentService) ConfirmIfSessionPaid(ctx context.Context, orderID int64) (*domain.ConfirmResult, error) {
	const op = "payment.confirm_session"

	var order repository.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.GetOrder(ctx, orderID)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrOrderNotFound
			}
			return fmt.Errorf("failed to get order: %w", err)
		}
		order = row.Order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.IsPaid {
		return &domain.ConfirmResult{OrderID: orderID, Applied: false}, nil
	}
	if order.PaymentSessionID == "" {
		return nil, domain.ErrPaymentNotCompleted
	}

	sess, err := s.billing.GetCheckoutSession(ctx, order.PaymentSessionID)
	if err != nil {
		return nil, domain.PaymentRequired(err, op, "Could not verify the payment, please try again")
	}
	if sess.OrderID != orderID || !sess.IsPaid() {
		s.logger.Info("payment session not paid",
			"order_id", orderID,
			"session_id", sess.ID,
			"payment_status", sess.PaymentStatus,
		)
		return nil, domain.ErrPaymentNotCompleted
	}

	return s.ConfirmPayment(ctx, orderID)
}

// CancelPayment records an abandoned payment attempt. Nothing is written:
// the order stays Pending and unpaid and stock is untouched.
func (s *paymentService) CancelPayment(ctx context.Context, orderID int64) error {
	var order repository.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.GetOrder(ctx, orderID)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrOrderNotFound
			}
			return fmt.Errorf("failed to get order: %w", err)
		}
		order = row.Order
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment cancelled",
		"order_id", orderID,
		"user_id", order.UserID,
		"is_paid", order.IsPaid,
	)
	return nil
}
