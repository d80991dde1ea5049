package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds the checkout and payment counters.
type BusinessMetrics struct {
	// Checkout
	Checkouts        *prometheus.CounterVec
	CheckoutDuration *prometheus.HistogramVec
	OrderValue       *prometheus.HistogramVec
	StockConflicts   *prometheus.CounterVec

	// Cart
	CartLinesAdded   *prometheus.CounterVec
	CartLinesRemoved prometheus.Counter

	// Payment reconciliation
	PaymentsConfirmed *prometheus.CounterVec
	PaymentsDuplicate *prometheus.CounterVec
	PaymentsCancelled *prometheus.CounterVec

	// Notifications and background jobs
	Notifications *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec

	// Webhooks (Stripe)
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec
}

// NewBusinessMetrics creates the metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "bookstore"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &BusinessMetrics{
		// =======================================================================
		// Checkout
		// =======================================================================
		Checkouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkouts_total",
				Help:      "Checkout attempts by payment method and result",
			},
			[]string{"payment_method", "result"}, // result: success, empty_cart, invalid, insufficient_stock, contention, payment_error, error
		),
		CheckoutDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "checkout_duration_seconds",
				Help:      "Checkout duration including the transaction",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"payment_method"},
		),
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "order_value",
				Help:      "Order totals in store currency",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"payment_method"},
		),
		StockConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stock_conflicts_total",
				Help:      "Stock reservations rejected",
			},
			[]string{"reason"}, // reason: insufficient, contention
		),

		// =======================================================================
		// Cart
		// =======================================================================
		CartLinesAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cart_lines_added_total",
				Help:      "Cart add operations",
			},
			[]string{"kind"}, // kind: new_line, increment
		),
		CartLinesRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cart_lines_removed_total",
				Help:      "Cart remove operations",
			},
		),

		// =======================================================================
		// Payment reconciliation
		// =======================================================================
		PaymentsConfirmed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_confirmed_total",
				Help:      "Orders transitioned to paid",
			},
			[]string{"source"}, // source: webhook, redirect
		),
		PaymentsDuplicate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_duplicate_total",
				Help:      "Confirmations ignored because the order was already paid or missing",
			},
			[]string{"source"},
		),
		PaymentsCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_cancelled_total",
				Help:      "Abandoned or expired payment attempts",
			},
			[]string{"source"},
		),

		// =======================================================================
		// Notifications
		// =======================================================================
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Receipt notifications and order events by outcome",
			},
			[]string{"type", "result"}, // result: queued, sent, failed
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_processed_total",
				Help:      "Background jobs processed",
			},
			[]string{"job_type", "result"},
		),

		// =======================================================================
		// Webhooks (Stripe)
		// =======================================================================
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_received_total",
				Help:      "Total webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_errors_total",
				Help:      "Total webhook processing failures",
			},
			[]string{"event_type", "error_type"},
		),
		WebhookLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"event_type"},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, nil)
	return Business
}
