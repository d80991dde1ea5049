package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/bookstore/internal/billing"
	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/idempotency"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

const (
	sourceWebhook = "webhook"

	// Stripe payloads are small; anything bigger is not from Stripe.
	maxPayloadBytes = 64 << 10
)

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider billing.Provider
	payments domain.PaymentService
	seen     idempotency.Store
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler. seen de-duplicates
// event deliveries by event id.
func NewStripeHandler(
	provider billing.Provider,
	payments domain.PaymentService,
	seen idempotency.Store,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider: provider,
		payments: payments,
		seen:     seen,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Once the signature is verified the handler answers 200, including for
// duplicates and event types it ignores. Only failures worth retrying (the
// database was unreachable, a row lock timed out) answer 500 so Stripe
// delivers the event again. The event id is claimed for a short processing
// window and kept for the full TTL only once the event was handled.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Warn("webhook payload unreadable", "error", err)
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.metrics.WebhookFailed.WithLabelValues("unknown", "missing_signature").Inc()
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Missing signature"))
		return
	}

	event, err := h.provider.ParseWebhookEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhookSignature) {
			h.logger.Warn("webhook signature verification failed", "error", err)
			h.metrics.WebhookFailed.WithLabelValues("unknown", "invalid_signature").Inc()
			handler.ErrorResponse(w, r, domain.Unauthorized("webhook.stripe", "Invalid signature"))
			return
		}
		h.logger.Warn("webhook payload invalid", "error", err)
		h.metrics.WebhookFailed.WithLabelValues("unknown", "invalid_payload").Inc()
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Invalid payload"))
		return
	}

	h.metrics.WebhookReceived.WithLabelValues(event.Type).Inc()
	defer func() {
		h.metrics.WebhookLatency.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
	}()

	logger := h.logger.With("event_id", event.ID, "event_type", event.Type)

	key := idempotency.Key("stripe", event.ID)
	duplicate, err := h.seen.Seen(r.Context(), key)
	if err != nil {
		// Processing twice is safe; ConfirmPayment ignores paid orders.
		logger.Warn("idempotency check failed, processing anyway", "error", err)
		duplicate = false
	}
	if duplicate {
		logger.Info("duplicate webhook delivery ignored")
		acknowledge(w)
		return
	}

	// A panic leaves the delivery unhandled; release the claim before the
	// recovery middleware answers 500 so the redelivery is processed.
	defer func() {
		if p := recover(); p != nil {
			h.forget(r.Context(), logger, key)
			panic(p)
		}
	}()

	if err := h.dispatch(r.Context(), logger, event); err != nil {
		h.metrics.WebhookFailed.WithLabelValues(event.Type, failureType(err)).Inc()

		if retryable(err) {
			h.forget(r.Context(), logger, key)
			logger.Error("webhook processing failed", "error", err)
			telemetry.CaptureError(err, map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			})
			handler.WriteJSON(w, http.StatusInternalServerError, map[string]bool{"received": false})
			return
		}
		logger.Warn("webhook event rejected", "error", err)
	}

	if err := h.seen.Done(context.WithoutCancel(r.Context()), key); err != nil {
		logger.Warn("failed to mark webhook event handled", "error", err)
	}
	acknowledge(w)
}

func (h *StripeHandler) forget(ctx context.Context, logger *slog.Logger, key string) {
	if err := h.seen.Forget(context.WithoutCancel(ctx), key); err != nil {
		logger.Error("failed to forget webhook event", "error", err)
	}
}

// dispatch applies a verified event. Event types without a checkout session
// are ignored.
func (h *StripeHandler) dispatch(ctx context.Context, logger *slog.Logger, event *billing.WebhookEvent) error {
	switch event.Type {
	case billing.EventCheckoutSessionCompleted, billing.EventCheckoutSessionAsyncPaymentSucceeded:
		if event.Session == nil || event.Session.OrderID == 0 {
			return billing.ErrMissingOrderReference
		}
		// A completed session can still be awaiting an async payment method.
		if !event.Session.IsPaid() {
			logger.Info("checkout session completed without payment", "order_id", event.Session.OrderID)
			return nil
		}

		result, err := h.payments.ConfirmPayment(ctx, event.Session.OrderID)
		if err != nil {
			return err
		}
		if result.Applied {
			h.metrics.PaymentsConfirmed.WithLabelValues(sourceWebhook).Inc()
			logger.Info("payment confirmed", "order_id", result.OrderID)
		} else {
			h.metrics.PaymentsDuplicate.WithLabelValues(sourceWebhook).Inc()
			logger.Info("payment already confirmed", "order_id", result.OrderID)
		}
		return nil

	case billing.EventCheckoutSessionExpired, billing.EventCheckoutSessionAsyncPaymentFailed:
		if event.Session == nil || event.Session.OrderID == 0 {
			return billing.ErrMissingOrderReference
		}
		if err := h.payments.CancelPayment(ctx, event.Session.OrderID); err != nil {
			return err
		}
		h.metrics.PaymentsCancelled.WithLabelValues(sourceWebhook).Inc()
		return nil

	default:
		logger.Debug("unhandled webhook event type")
		return nil
	}
}

func acknowledge(w http.ResponseWriter) {
	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// retryable reports whether Stripe should deliver the event again.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrStockContention) {
		return true
	}
	return domain.ErrorCode(err) == domain.EINTERNAL && !errors.Is(err, billing.ErrMissingOrderReference)
}

func failureType(err error) string {
	switch {
	case errors.Is(err, billing.ErrMissingOrderReference):
		return "missing_order_reference"
	case errors.Is(err, domain.ErrStockContention):
		return "contention"
	case domain.ErrorCode(err) == domain.ENOTFOUND:
		return "order_not_found"
	default:
		return "processing_failed"
	}
}
