package api

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/handler"
	"github.com/dukerupert/bookstore/internal/middleware"
)

// CartHandler serves the cart routes. Every route requires a user.
type CartHandler struct {
	cartService domain.CartService
	logger      *slog.Logger
}

func NewCartHandler(cartService domain.CartService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{cartService: cartService, logger: logger}
}

type addLineRequest struct {
	BookID   int64 `json:"bookId"`
	Quantity *int  `json:"quantity"`
}

// Get handles GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cartService.GetCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// Count handles GET /api/cart/count
func (h *CartHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.cartService.ItemCount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

// AddLine handles POST /api/cart/items. Quantity defaults to 1.
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := handler.DecodeJSON(w, r, &req); err != nil {
		handler.HandleError(w, r, err)
		return
	}
	if req.BookID <= 0 {
		handler.HandleError(w, r, domain.NewValidationError("cart.add", "bookId", "bookId is required"))
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	cart, err := h.cartService.AddLine(r.Context(), middleware.GetUserID(r.Context()), req.BookID, qty)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// RemoveLine handles DELETE /api/cart/items/{bookId}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	bookID, err := handler.PathID(r, "bookId")
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}

	cart, err := h.cartService.RemoveLine(r.Context(), middleware.GetUserID(r.Context()), bookID)
	if err != nil {
		handler.HandleError(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newCartResponse(cart))
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cartService.Clear(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		handler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
