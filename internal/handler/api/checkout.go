package api

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/middleware"
)

// CheckoutHandler turns the caller's cart into an order.
type CheckoutHandler struct {
	checkoutService domain.CheckoutService
	logger          *slog.Logger
}

func NewCheckoutHandler(checkoutService domain.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{checkoutService: checkoutService, logger: logger}
}

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	MobileNumber  string `json:"mobileNumber"`
	Address       string `json:"address"`
}

type checkoutResponse struct {
	OrderID     int64  `json:"orderId"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// ServeHTTP handles POST /api/checkout
func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.HandleError(w, r, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.checkoutService.Checkout(r.Context(), userID, domain.CheckoutParams{
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Shipping: domain.ShippingInfo{
			Name:         req.Name,
			Email:        req.Email,
			MobileNumber: req.MobileNumber,
			Address:      req.Address,
		},
	})
	if err != nil {
		middleware.GetLogger(r.Context(), h.logger).Info("checkout rejected",
			"user_id", userID,
			"code", domain.ErrorCode(err),
			"error", err,
		)
		handler.HandleError(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:     result.OrderID,
		RedirectURL: result.RedirectURL,
	})
}
