package billing

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAPIKey           = errors.New("billing: invalid or missing API key")
	ErrSessionNotFound         = errors.New("billing: checkout session not found")
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")
	ErrMissingOrderReference   = errors.New("billing: checkout session has no order reference")
	ErrNoLineItems             = errors.New("billing: checkout session needs at least one line item")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "amount_too_small")
	HTTPStatus    int
	RequestID     string // Stripe request ID for debugging
	OriginalError error
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.HTTPStatus == 429 || e.HTTPStatus >= 500
}
