package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing and local runs.
// Sessions it creates are unpaid until MarkPaid is called.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetCheckoutSessionFunc allows customizing session retrieval behavior
	GetCheckoutSessionFunc func(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// ParseWebhookEventFunc allows customizing webhook parsing behavior
	ParseWebhookEventFunc func(payload []byte, signature string) (*WebhookEvent, error)

	// BaseURL prefixes the URL of created sessions.
	BaseURL string

	mu       sync.Mutex
	sessions map[string]*CheckoutSession
	callLog  []string
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		BaseURL:  "https://checkout.example.test/pay/",
		sessions: make(map[string]*CheckoutSession),
	}
}

func (m *MockProvider) record(call string) {
	m.mu.Lock()
	m.callLog = append(m.callLog, call)
	m.mu.Unlock()
}

// CallLog returns the method calls made so far, for test assertions.
func (m *MockProvider) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callLog...)
}

// CreateCheckoutSession creates an unpaid mock session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.record(fmt.Sprintf("CreateCheckoutSession(%d)", params.OrderID))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	id := "cs_test_" + uuid.New().String()
	sess := &CheckoutSession{
		ID:            id,
		URL:           m.BaseURL + id,
		OrderID:       params.OrderID,
		PaymentStatus: PaymentStatusUnpaid,
		Status:        "open",
		CreatedAt:     time.Now(),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	out := *sess
	return &out, nil
}

// GetCheckoutSession returns a stored mock session.
func (m *MockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	m.record(fmt.Sprintf("GetCheckoutSession(%s)", sessionID))

	if m.GetCheckoutSessionFunc != nil {
		return m.GetCheckoutSessionFunc(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *sess
	return &out, nil
}

// MarkPaid flags a stored session as paid and complete.
func (m *MockProvider) MarkPaid(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.PaymentStatus = PaymentStatusPaid
	sess.Status = "complete"
	return nil
}

// ParseWebhookEvent rejects every payload unless ParseWebhookEventFunc is set.
func (m *MockProvider) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	m.record("ParseWebhookEvent")

	if m.ParseWebhookEventFunc != nil {
		return m.ParseWebhookEventFunc(payload, signature)
	}
	return nil, ErrInvalidWebhookSignature
}
