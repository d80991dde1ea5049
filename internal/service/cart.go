package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

type cartService struct {
	store   repository.Store
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
}

// NewCartService creates a new CartService instance
func NewCartService(store repository.Store, metrics *telemetry.BusinessMetrics, logger *slog.Logger) (domain.CartService, error) {
	if store == nil {
		return nil, errors.New("cart service: store is required")
	}
	if metrics == nil {
		return nil, errors.New("cart service: metrics are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cartService{store: store, metrics: metrics, logger: logger}, nil
}

// AddLine adds qty copies of a book, snapshotting the catalog price on a new line.
func (s *cartService) AddLine(ctx context.Context, userID string, bookID int64, qty int) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if qty > domain.MaxLineQuantity {
		return nil, domain.ErrQuantityTooLarge
	}

	var view *domain.CartView
	kind := "new_line"
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		book, err := q.GetBook(ctx, bookID)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrBookNotFound
			}
			return fmt.Errorf("failed to get book: %w", err)
		}

		cart, err := q.CreateCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get or create cart: %w", err)
		}

		line, err := q.AddCartLine(ctx, repository.AddCartLineParams{
			CartID:      cart.ID,
			BookID:      bookID,
			Quantity:    int32(qty),
			UnitPrice:   book.Price,
			MaxQuantity: domain.MaxLineQuantity,
		})
		if err != nil {
			if isNoRows(err) {
				return domain.ErrQuantityTooLarge
			}
			return fmt.Errorf("failed to add cart line: %w", err)
		}
		if !line.Inserted {
			kind = "increment"
		}

		view, err = loadCartView(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CartLinesAdded.WithLabelValues(kind).Inc()
	return view, nil
}

// RemoveLine removes one copy of a book, deleting the line when it reaches zero.
func (s *cartService) RemoveLine(ctx context.Context, userID string, bookID int64) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	var view *domain.CartView
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetCartByUserID(ctx, userID)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrCartNotFound
			}
			return fmt.Errorf("failed to get cart: %w", err)
		}

		line, err := q.GetCartLine(ctx, repository.GetCartLineParams{CartID: cart.ID, BookID: bookID})
		if err != nil {
			if isNoRows(err) {
				return domain.ErrCartLineNotFound
			}
			return fmt.Errorf("failed to get cart line: %w", err)
		}

		if line.Quantity <= 1 {
			err = q.DeleteCartLine(ctx, line.ID)
		} else {
			err = q.UpdateCartLineQuantity(ctx, repository.UpdateCartLineQuantityParams{
				ID:       line.ID,
				Quantity: line.Quantity - 1,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to remove from cart line: %w", err)
		}

		view, err = loadCartView(ctx, q, cart)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CartLinesRemoved.Inc()
	return view, nil
}

// GetCart returns the user's cart. A user without a cart gets an empty view.
func (s *cartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	var view *domain.CartView
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetCartByUserID(ctx, userID)
		if err != nil {
			if isNoRows(err) {
				view = emptyCartView(userID)
				return nil
			}
			return fmt.Errorf("failed to get cart: %w", err)
		}

		view, err = loadCartView(ctx, q, cart)
		return err
	})
	return view, err
}

// Clear deletes every line of the user's cart. Missing carts are fine.
func (s *cartService) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}

	return s.store.ExecTx(ctx, func(q repository.Querier) error {
		_, err := clearCart(ctx, q, userID)
		return err
	})
}

func (s *cartService) ItemCount(ctx context.Context, userID string) (int, error) {
	view, err := s.GetCart(ctx, userID)
	if err != nil {
		return 0, err
	}
	return view.ItemCount, nil
}

// clearCart deletes the lines of userID's cart on the caller's transaction
// and returns how many were removed.
func clearCart(ctx context.Context, q repository.Querier, userID string) (int64, error) {
	cart, err := q.GetCartByUserID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get cart: %w", err)
	}

	n, err := q.DeleteCartLines(ctx, cart.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return n, nil
}

func emptyCartView(userID string) *domain.CartView {
	return &domain.CartView{
		UserID: userID,
		Lines:  []domain.CartLineView{},
		Total:  decimal.Zero,
	}
}

func loadCartView(ctx context.Context, q repository.Querier, cart repository.Cart) (*domain.CartView, error) {
	rows, err := q.ListCartLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}

	view := emptyCartView(cart.UserID)
	view.CartID = cart.ID
	for _, r := range rows {
		subtotal := r.UnitPrice.Mul(decimal.NewFromInt32(r.Quantity))
		view.Lines = append(view.Lines, domain.CartLineView{
			BookID:    r.BookID,
			Title:     r.Title,
			Author:    r.Author,
			Genre:     r.GenreName,
			Image:     r.Image,
			Quantity:  int(r.Quantity),
			UnitPrice: r.UnitPrice,
			Subtotal:  subtotal,
		})
		view.Total = view.Total.Add(subtotal)
		view.ItemCount += int(r.Quantity)
	}
	return view, nil
}
