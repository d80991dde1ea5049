package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Metadata key carrying the order id on every session we create.
const metadataOrderID = "order_id"

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	sessions      *session.Client
	webhookSecret string
	currency      string
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(maxRetries),
	})

	return &StripeProvider{
		sessions:      &session.Client{B: backend, Key: cfg.APIKey},
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout page in payment mode.
// The order id is stored both as client reference and as metadata.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	currency := params.Currency
	if currency == "" {
		currency = s.currency
	}
	orderRef := strconv.FormatInt(params.OrderID, 10)

	sp := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		ClientReferenceID: stripe.String(orderRef),
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	for _, item := range params.LineItems {
		sp.LineItems = append(sp.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmountCents),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	sp.Context = ctx
	sp.AddMetadata(metadataOrderID, orderRef)
	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}

	sess, err := s.sessions.New(sp)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return convertSession(sess)
}

// GetCheckoutSession retrieves a Stripe Checkout session.
func (s *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	sp := &stripe.CheckoutSessionParams{}
	sp.Context = ctx

	sess, err := s.sessions.Get(sessionID, sp)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, wrapStripeError(err)
	}
	return convertSession(sess)
}

// ParseWebhookEvent verifies the Stripe-Signature header and decodes the
// checkout session carried by checkout.session.* events.
func (s *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}

	switch out.Type {
	case EventCheckoutSessionCompleted,
		EventCheckoutSessionAsyncPaymentSucceeded,
		EventCheckoutSessionAsyncPaymentFailed,
		EventCheckoutSessionExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		cs, err := convertSession(&sess)
		if err != nil {
			return nil, err
		}
		out.Session = cs
	}

	return out, nil
}

func convertSession(sess *stripe.CheckoutSession) (*CheckoutSession, error) {
	ref := sess.ClientReferenceID
	if ref == "" && sess.Metadata != nil {
		ref = sess.Metadata[metadataOrderID]
	}
	if ref == "" {
		return nil, ErrMissingOrderReference
	}
	orderID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingOrderReference, ref)
	}

	return &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		OrderID:       orderID,
		PaymentStatus: string(sess.PaymentStatus),
		Status:        string(sess.Status),
		CreatedAt:     time.Unix(sess.Created, 0),
	}, nil
}

func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       stripeErr.Msg,
			Code:          string(stripeErr.Code),
			HTTPStatus:    stripeErr.HTTPStatusCode,
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}
	return fmt.Errorf("stripe request failed: %w", err)
}
