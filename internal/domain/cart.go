package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds the copies of one book held in a cart line.
const MaxLineQuantity = 9999

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartLineNotFound = &Error{Code: ENOTFOUND, Message: "Book is not in the cart"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrQuantityTooLarge = &Error{Code: EINVALID, Message: "Quantity cannot exceed 9999 copies per book"}
	ErrUserRequired     = &Error{Code: EUNAUTHORIZED, Message: "User identity is required"}
)

// CartService manages per-user shopping carts. Every operation takes the
// user explicitly.
type CartService interface {
	// AddLine adds qty copies of a book. A new line captures the current
	// catalog price; an existing line keeps the price it was created with.
	AddLine(ctx context.Context, userID string, bookID int64, qty int) (*CartView, error)

	// RemoveLine removes one copy of a book, deleting the line at zero.
	RemoveLine(ctx context.Context, userID string, bookID int64) (*CartView, error)

	GetCart(ctx context.Context, userID string) (*CartView, error)

	// Clear empties the cart. Clearing an empty or missing cart is a no-op.
	Clear(ctx context.Context, userID string) error

	// ItemCount returns the total number of copies in the cart.
	ItemCount(ctx context.Context, userID string) (int, error)
}

// CartView is a cart with display data and totals.
type CartView struct {
	CartID    int64
	UserID    string
	Lines     []CartLineView
	Total     decimal.Decimal
	ItemCount int
}

// CartLineView is one cart line joined with its book.
type CartLineView struct {
	BookID    int64
	Title     string
	Author    string
	Genre     string
	Image     string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

func (c *CartView) IsEmpty() bool {
	return len(c.Lines) == 0
}
