package routes

import (
	"net/http"

	"github.com/dukerupert/bookstore/internal/handler/admin"
	"github.com/dukerupert/bookstore/internal/handler/api"
	"github.com/dukerupert/bookstore/internal/router"
)

// APIDeps contains dependencies for the customer JSON API
type APIDeps struct {
	CartHandler     *api.CartHandler
	CheckoutHandler *api.CheckoutHandler
	OrderHandler    *api.OrderHandler

	// CheckoutLimit throttles checkout per user. Optional.
	CheckoutLimit router.Middleware
}

// PaymentDeps contains dependencies for the payment return pages
type PaymentDeps struct {
	PaymentHandler *api.PaymentHandler
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	OrderHandler *admin.OrderHandler
	StockHandler *admin.StockHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// SystemDeps contains the health and metrics endpoints
type SystemDeps struct {
	HealthHandler  http.Handler
	MetricsHandler http.Handler
}
