package routes

import (
	"github.com/dukerupert/bookstore/internal/middleware"
	"github.com/dukerupert/bookstore/internal/router"
)

// RegisterAPIRoutes registers the customer API. Every route requires the
// X-User-ID identity header.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Group(middleware.RequireUser)

	// Cart
	api.Get("/api/cart", deps.CartHandler.Get)
	api.Get("/api/cart/count", deps.CartHandler.Count)
	api.Post("/api/cart/items", deps.CartHandler.AddLine)
	api.Delete("/api/cart/items/{bookId}", deps.CartHandler.RemoveLine)
	api.Delete("/api/cart", deps.CartHandler.Clear)

	// Checkout
	var checkoutMW []router.Middleware
	if deps.CheckoutLimit != nil {
		checkoutMW = append(checkoutMW, deps.CheckoutLimit)
	}
	api.Post("/api/checkout", deps.CheckoutHandler.ServeHTTP, checkoutMW...)

	// Orders
	api.Get("/api/orders", deps.OrderHandler.List)
	api.Get("/api/orders/{id}", deps.OrderHandler.Get)
}
