package api

import (
	"net/http"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/middleware"
)

// OrderHandler lists the caller's own orders.
type OrderHandler struct {
	orderService domain.OrderService
}

func NewOrderHandler(orderService domain.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// List handles GET /api/orders?paymentMethod=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	method, err := handler.QueryPaymentMethod(r)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	orders, err := h.orderService.ListOrders(r.Context(), domain.OrderQuery{
		UserID:        middleware.GetUserID(r.Context()),
		PaymentMethod: method,
	})
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, NewOrderListResponse(orders))
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, NewOrderResponse(order))
}
