package admin

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/handler/api"
	"github.com/dukerupert/bookstore/internal/middleware"
)

// OrderHandler serves the administrative order views and updates.
type OrderHandler struct {
	orderService domain.OrderService
	logger       *slog.Logger
}

func NewOrderHandler(orderService domain.OrderService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{orderService: orderService, logger: logger}
}

// List handles GET /admin/orders?paymentMethod=&paid=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	method, err := handler.QueryPaymentMethod(r)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	paid, err := handler.QueryBool(r, "paid")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	orders, err := h.orderService.ListOrders(r.Context(), domain.OrderQuery{
		All:           true,
		PaymentMethod: method,
		IsPaid:        paid,
	})
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, api.NewOrderListResponse(orders))
}

type changeStatusRequest struct {
	StatusID int32 `json:"statusId"`
}

// ChangeStatus handles PUT /admin/orders/{id}/status
func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	var req changeStatusRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.HandleError(w, r, err)
		return
	}
	if req.StatusID <= 0 {
		handler.HandleError(w, r, domain.NewValidationError("order.change_status", "statusId", "statusId is required"))
		return
	}

	order, err := h.orderService.ChangeOrderStatus(r.Context(), id, req.StatusID)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	h.logger.Info("order status changed",
		"order_id", id,
		"status", order.Status.Name,
		"admin", middleware.GetUserID(r.Context()),
	)
	handler.WriteJSON(w, http.StatusOK, api.NewOrderResponse(order))
}

// TogglePayment handles POST /admin/orders/{id}/toggle-payment
func (h *OrderHandler) TogglePayment(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	order, err := h.orderService.TogglePaymentStatus(r.Context(), id)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	h.logger.Info("order payment toggled",
		"order_id", id,
		"is_paid", order.IsPaid,
		"admin", middleware.GetUserID(r.Context()),
	)
	handler.WriteJSON(w, http.StatusOK, api.NewOrderResponse(order))
}

// Statuses handles GET /admin/order-statuses
func (h *OrderHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.orderService.ListStatuses(r.Context())
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	out := make([]api.OrderStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, api.StatusResponse(s))
	}
	handler.WriteJSON(w, http.StatusOK, out)
}
