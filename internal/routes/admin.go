package routes

import (
	"github.com/dukerupert/bookstore/internal/middleware"
	"github.com/dukerupert/bookstore/internal/router"
)

// RegisterAdminRoutes registers all admin routes.
// All routes are protected by the admin role check.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(middleware.RequireAdmin)

	// Order management
	admin.Get("/admin/orders", deps.OrderHandler.List)
	admin.Put("/admin/orders/{id}/status", deps.OrderHandler.ChangeStatus)
	admin.Post("/admin/orders/{id}/toggle-payment", deps.OrderHandler.TogglePayment)
	admin.Get("/admin/order-statuses", deps.OrderHandler.Statuses)

	// Stock management
	admin.Put("/admin/stock/{bookId}", deps.StockHandler.SetQuantity)
	admin.Get("/admin/stock/low", deps.StockHandler.LowStock)
}
