package api

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

const sourceRedirect = "redirect"

// PaymentHandler serves the pages the payment provider sends the browser
// back to. The success page only confirms once the provider reports the
// session paid, so a forged return URL cannot mark an order paid.
type PaymentHandler struct {
	paymentService domain.PaymentService
	metrics        *telemetry.BusinessMetrics
	logger         *slog.Logger
}

func NewPaymentHandler(paymentService domain.PaymentService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{paymentService: paymentService, metrics: metrics, logger: logger}
}

type paymentResultResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// Success handles GET /payment/success?orderId=
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	orderID, err := handler.QueryID(r, "orderId")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	result, err := h.paymentService.ConfirmIfSessionPaid(r.Context(), orderID)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	status := "already_confirmed"
	if result.Applied {
		status = "confirmed"
		h.metrics.PaymentsConfirmed.WithLabelValues(sourceRedirect).Inc()
	} else {
		h.metrics.PaymentsDuplicate.WithLabelValues(sourceRedirect).Inc()
	}

	h.logger.Info("payment return", "order_id", orderID, "status", status)
	handler.WriteJSON(w, http.StatusOK, paymentResultResponse{OrderID: orderID, Status: status})
}

// Cancel handles GET /payment/cancel?orderId=
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := handler.QueryID(r, "orderId")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	if err := h.paymentService.CancelPayment(r.Context(), orderID); err != nil {
		handler.HandleError(w, r, err)
		return
	}
	h.metrics.PaymentsCancelled.WithLabelValues(sourceRedirect).Inc()

	handler.WriteJSON(w, http.StatusOK, paymentResultResponse{OrderID: orderID, Status: "cancelled"})
}
