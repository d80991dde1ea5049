package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider creates hosted payment sessions and authenticates the callbacks
// the payment gateway sends about them.
type Provider interface {
	// CreateCheckoutSession creates a hosted payment page for an order and
	// returns the URL to redirect the customer to.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetCheckoutSession retrieves a session to check its payment status.
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// ParseWebhookEvent verifies the signature of a webhook payload and
	// decodes it. Returns ErrInvalidWebhookSignature on verification failure.
	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// CreateCheckoutSessionParams describes the order being paid for.
type CreateCheckoutSessionParams struct {
	OrderID       int64
	CustomerEmail string
	Currency      string
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string

	// IdempotencyKey makes retried session creation return the same session.
	IdempotencyKey string
}

type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

// ToMinorUnits converts a price to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Session payment statuses.
const (
	PaymentStatusPaid     = "paid"
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusNoNeeded = "no_payment_required"
)

type CheckoutSession struct {
	ID            string
	URL           string
	OrderID       int64
	PaymentStatus string
	Status        string
	CreatedAt     time.Time
}

func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoNeeded
}

// Webhook event types handled by the storefront.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutSessionExpired               = "checkout.session.expired"
)

// WebhookEvent is a verified gateway callback. Session is nil for event
// types that do not carry a checkout session.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession
}
