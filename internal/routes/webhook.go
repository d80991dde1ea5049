package routes

import (
	"net/http"

	"github.com/dukerupert/bookstore/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes carry no identity. The handler verifies the Stripe
// signature itself.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler)
}

// RegisterSystemRoutes registers health and metrics endpoints.
func RegisterSystemRoutes(r *router.Router, deps SystemDeps) {
	r.Get("/health", deps.HealthHandler.ServeHTTP)
	if deps.MetricsHandler != nil {
		r.Mount("/metrics", deps.MetricsHandler)
	}
}

// Handler returns the server's root handler. CORS wraps the whole router so
// preflight requests are answered before method routing.
func Handler(r *router.Router, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return r
	}
	return router.CORS(allowedOrigins)(r)
}
