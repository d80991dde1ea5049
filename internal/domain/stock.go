package domain

import (
	"context"
	"fmt"
)

var (
	ErrInsufficientStock    = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
	ErrStockContention      = &Error{Code: ECONFLICT, Message: "Stock is being updated by another checkout, please try again"}
	ErrInvalidStockQuantity = &Error{Code: EINVALID, Message: "Stock quantity must not be negative"}
)

// InsufficientStockError reports a reservation that asked for more than the
// ledger holds. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	BookID    int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %d: requested %d, available %d",
		e.BookID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// NewInsufficientStockError returns a conflict error whose message tells the
// user how many copies are left.
func NewInsufficientStockError(op string, bookID int64, title string, requested, available int) error {
	name := title
	if name == "" {
		name = fmt.Sprintf("book %d", bookID)
	}
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: fmt.Sprintf("Only %d item(s) of %q are available", available, name),
		Err: &InsufficientStockError{
			BookID:    bookID,
			Requested: requested,
			Available: available,
		},
	}
}

// StockLevel is a stock entry with its book title, used for restock reports.
type StockLevel struct {
	BookID   int64
	Title    string
	Quantity int
}

// StockService is the stock ledger. Quantities never go below zero.
type StockService interface {
	// Reserve atomically checks and decrements stock for one book.
	// Returns an InsufficientStockError without changing anything when qty
	// exceeds the available quantity.
	Reserve(ctx context.Context, bookID int64, qty int) error

	// Release adds qty back to the book's stock.
	Release(ctx context.Context, bookID int64, qty int) error

	// QuantityOf returns the available quantity. Unknown books have 0.
	QuantityOf(ctx context.Context, bookID int64) (int, error)

	// SetQuantity overwrites the stock level of a book.
	SetQuantity(ctx context.Context, bookID int64, qty int) (*StockLevel, error)

	// LowStock lists books whose quantity is at or below threshold.
	LowStock(ctx context.Context, threshold int) ([]StockLevel, error)
}
