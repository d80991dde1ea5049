package routes

import (
	"github.com/dukerupert/bookstore/internal/router"
)

// RegisterPaymentRoutes registers the pages the payment provider redirects
// the browser to. They carry no identity; the success page verifies the
// session with the provider before confirming.
func RegisterPaymentRoutes(r *router.Router, deps PaymentDeps) {
	r.Get("/payment/success", deps.PaymentHandler.Success)
	r.Get("/payment/cancel", deps.PaymentHandler.Cancel)
}
