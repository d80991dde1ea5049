package admin

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/middleware"
)

const defaultLowStockThreshold = 5

// StockHandler lets admins restock books and see what is running low.
type StockHandler struct {
	stockService domain.StockService
	logger       *slog.Logger
}

func NewStockHandler(stockService domain.StockService, logger *slog.Logger) *StockHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockHandler{stockService: stockService, logger: logger}
}

type stockLevelResponse struct {
	BookID   int64  `json:"bookId"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// SetQuantity handles PUT /admin/stock/{bookId}
func (h *StockHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	bookID, err := handler.PathID(r, "bookId")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	var req setQuantityRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.HandleError(w, r, err)
		return
	}
	if req.Quantity == nil {
		handler.HandleError(w, r, domain.NewValidationError("stock.set", "quantity", "quantity is required"))
		return
	}

	level, err := h.stockService.SetQuantity(r.Context(), bookID, *req.Quantity)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	h.logger.Info("stock updated",
		"book_id", bookID,
		"quantity", level.Quantity,
		"admin", middleware.GetUserID(r.Context()),
	)
	handler.WriteJSON(w, http.StatusOK, stockLevelResponse{
		BookID:   level.BookID,
		Title:    level.Title,
		Quantity: level.Quantity,
	})
}

// LowStock handles GET /admin/stock/low?threshold=
func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := handler.QueryInt(r, "threshold", defaultLowStockThreshold)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	levels, err := h.stockService.LowStock(r.Context(), threshold)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	out := make([]stockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, stockLevelResponse{BookID: l.BookID, Title: l.Title, Quantity: l.Quantity})
	}
	handler.WriteJSON(w, http.StatusOK, out)
}
