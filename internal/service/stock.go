package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/repository"
)

type stockService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewStockService creates the stock ledger on top of store.
func NewStockService(store repository.Store, logger *slog.Logger) (domain.StockService, error) {
	if store == nil {
		return nil, errors.New("stock service: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &stockService{store: store, logger: logger}, nil
}

func (s *stockService) Reserve(ctx context.Context, bookID int64, qty int) error {
	const op = "stock.reserve"
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	return s.store.ExecTx(ctx, func(q repository.Querier) error {
		return reserveStock(ctx, q, op, bookID, qty, "")
	})
}

func (s *stockService) Release(ctx context.Context, bookID int64, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	return s.store.ExecTx(ctx, func(q repository.Querier) error {
		if _, err := q.GetBook(ctx, bookID); err != nil {
			if isNoRows(err) {
				return domain.ErrBookNotFound
			}
			return fmt.Errorf("failed to get book: %w", err)
		}
		return releaseStock(ctx, q, bookID, qty)
	})
}

func (s *stockService) QuantityOf(ctx context.Context, bookID int64) (int, error) {
	var qty int
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		stock, err := q.GetStock(ctx, bookID)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return fmt.Errorf("failed to get stock: %w", err)
		}
		qty = int(stock.Quantity)
		return nil
	})
	return qty, err
}

func (s *stockService) SetQuantity(ctx context.Context, bookID int64, qty int) (*domain.StockLevel, error) {
	if qty < 0 {
		return nil, domain.ErrInvalidStockQuantity
	}

	var level *domain.StockLevel
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		book, err := q.GetBook(ctx, bookID)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrBookNotFound
			}
			return fmt.Errorf("failed to get book: %w", err)
		}

		stock, err := q.UpsertStock(ctx, repository.UpsertStockParams{
			BookID:   bookID,
			Quantity: int32(qty),
		})
		if err != nil {
			return fmt.Errorf("failed to set stock: %w", err)
		}

		level = &domain.StockLevel{BookID: bookID, Title: book.Title, Quantity: int(stock.Quantity)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock level set", "book_id", bookID, "quantity", qty)
	return level, nil
}

func (s *stockService) LowStock(ctx context.Context, threshold int) ([]domain.StockLevel, error) {
	if threshold < 0 {
		return nil, domain.Invalid("stock.low", "Threshold must not be negative")
	}

	var levels []domain.StockLevel
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		rows, err := q.ListLowStock(ctx, int32(threshold))
		if err != nil {
			return fmt.Errorf("failed to list low stock: %w", err)
		}
		levels = make([]domain.StockLevel, len(rows))
		for i, r := range rows {
			levels[i] = domain.StockLevel{BookID: r.BookID, Title: r.Title, Quantity: int(r.Quantity)}
		}
		return nil
	})
	return levels, err
}

// =============================================================================
// Ledger primitives shared with checkout and payment reconciliation. They run
// on the caller's transaction.
// =============================================================================

// reserveStock locks the book's stock row and decrements it by qty. It fails
// without writing when qty exceeds the quantity on hand. A missing row holds 0.
func reserveStock(ctx context.Context, q repository.Querier, op string, bookID int64, qty int, title string) error {
	available := 0
	stock, err := q.GetStockForUpdate(ctx, bookID)
	switch {
	case err == nil:
		available = int(stock.Quantity)
	case !isNoRows(err):
		return fmt.Errorf("failed to lock stock for book %d: %w", bookID, err)
	}

	if qty > available {
		return domain.NewInsufficientStockError(op, bookID, title, qty, available)
	}

	if err := q.UpdateStockQuantity(ctx, repository.UpdateStockQuantityParams{
		BookID:   bookID,
		Quantity: int32(available - qty),
	}); err != nil {
		return fmt.Errorf("failed to decrement stock for book %d: %w", bookID, err)
	}
	return nil
}

// decrementClamped subtracts up to qty, flooring the quantity at zero, and
// returns how much was taken.
func decrementClamped(ctx context.Context, q repository.Querier, bookID int64, qty int) (int, error) {
	stock, err := q.GetStockForUpdate(ctx, bookID)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to lock stock for book %d: %w", bookID, err)
	}

	taken := min(qty, int(stock.Quantity))
	if taken <= 0 {
		return 0, nil
	}

	if err := q.UpdateStockQuantity(ctx, repository.UpdateStockQuantityParams{
		BookID:   bookID,
		Quantity: stock.Quantity - int32(taken),
	}); err != nil {
		return 0, fmt.Errorf("failed to decrement stock for book %d: %w", bookID, err)
	}
	return taken, nil
}

// releaseStock adds qty back, creating the stock row if needed.
func releaseStock(ctx context.Context, q repository.Querier, bookID int64, qty int) error {
	if _, err := q.IncrementStock(ctx, repository.IncrementStockParams{
		BookID:   bookID,
		Quantity: int32(qty),
	}); err != nil {
		return fmt.Errorf("failed to release stock for book %d: %w", bookID, err)
	}
	return nil
}
