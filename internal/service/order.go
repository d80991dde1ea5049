package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/repository"
)

type orderService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewOrderService creates the order read and admin service.
func NewOrderService(store repository.Store, logger *slog.Logger) (domain.OrderService, error) {
	if store == nil {
		return nil, errors.New("order service: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &orderService{store: store, logger: logger}, nil
}

// ListOrders builds the predicate list from query and runs a single read.
func (s *orderService) ListOrders(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	const op = "order.list"

	var filter []repository.OrderPredicate
	if !query.All {
		if query.UserID == "" {
			return nil, domain.ErrUserRequired
		}
		filter = append(filter, repository.OrderUserIs(query.UserID))
	}
	if query.PaymentMethod != "" {
		if !query.PaymentMethod.Valid() {
			return nil, domain.NewValidationError(op, "paymentMethod", "paymentMethod must be COD or Online")
		}
		filter = append(filter, repository.OrderPaymentMethodIs(string(query.PaymentMethod)))
	}
	if query.IsPaid != nil {
		filter = append(filter, repository.OrderPaidIs(*query.IsPaid))
	}
	if query.StatusID != 0 {
		filter = append(filter, repository.OrderStatusIs(query.StatusID))
	}

	var orders []domain.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		rows, err := q.ListOrders(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}
		if len(rows) == 0 {
			orders = []domain.Order{}
			return nil
		}

		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.Order.ID
		}
		lines, err := q.ListOrderLines(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to list order lines: %w", err)
		}

		byOrder := make(map[int64][]repository.ListOrderLinesRow, len(rows))
		for _, l := range lines {
			byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
		}

		orders = make([]domain.Order, len(rows))
		for i, r := range rows {
			orders[i] = toDomainOrder(r, byOrder[r.Order.ID])
		}
		return nil
	})
	return orders, err
}

// GetOrder returns one order. Another user's order reads as not found.
func (s *orderService) GetOrder(ctx context.Context, userID string, orderID int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		o, err := loadOrder(ctx, q, orderID)
		if err != nil {
			return err
		}
		if userID != "" && o.UserID != userID {
			return domain.ErrOrderNotFound
		}
		order = o
		return nil
	})
	return order, err
}

func (s *orderService) ListStatuses(ctx context.Context) ([]domain.OrderStatus, error) {
	var statuses []domain.OrderStatus
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		rows, err := q.ListOrderStatuses(ctx)
		if err != nil {
			return fmt.Errorf("failed to list order statuses: %w", err)
		}
		statuses = make([]domain.OrderStatus, len(rows))
		for i, r := range rows {
			statuses[i] = domain.OrderStatus{ID: r.ID, Name: r.Name}
		}
		return nil
	})
	return statuses, err
}

func (s *orderService) ChangeOrderStatus(ctx context.Context, orderID int64, statusID int32) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		if _, err := lockOrder(ctx, q, orderID); err != nil {
			return err
		}

		if _, err := q.GetOrderStatus(ctx, statusID); err != nil {
			if isNoRows(err) {
				return domain.ErrOrderStatusNotFound
			}
			return fmt.Errorf("failed to get order status: %w", err)
		}

		if err := q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{ID: orderID, StatusID: statusID}); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		var err error
		order, err = loadOrder(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed", "order_id", orderID, "status", order.Status.Name)
	return order, nil
}

// TogglePaymentStatus flips the paid flag. Stock is not adjusted.
func (s *orderService) TogglePaymentStatus(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		current, err := lockOrder(ctx, q, orderID)
		if err != nil {
			return err
		}

		if err := q.SetOrderPaid(ctx, repository.SetOrderPaidParams{ID: orderID, IsPaid: !current.IsPaid}); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}

		order, err = loadOrder(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order payment status toggled", "order_id", orderID, "is_paid", order.IsPaid)
	return order, nil
}

func lockOrder(ctx context.Context, q repository.Querier, orderID int64) (repository.Order, error) {
	o, err := q.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if isNoRows(err) {
			return repository.Order{}, domain.ErrOrderNotFound
		}
		return repository.Order{}, fmt.Errorf("failed to lock order: %w", err)
	}
	return o, nil
}

func loadOrder(ctx context.Context, q repository.Querier, orderID int64) (*domain.Order, error) {
	row, err := q.GetOrder(ctx, orderID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	lines, err := q.ListOrderLines(ctx, []int64{orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}

	o := toDomainOrder(row, lines)
	return &o, nil
}

func toDomainOrder(row repository.OrderWithStatus, lines []repository.ListOrderLinesRow) domain.Order {
	o := row.Order
	order := domain.Order{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        domain.OrderStatus{ID: o.StatusID, Name: row.StatusName},
		IsPaid:        o.IsPaid,
		PaymentMethod: domain.PaymentMethod(o.PaymentMethod),
		Shipping: domain.ShippingInfo{
			Name:         o.Name,
			Email:        o.Email,
			MobileNumber: o.MobileNumber,
			Address:      o.Address,
		},
		PaymentSessionID: o.PaymentSessionID,
		CreatedAt:        o.CreatedAt,
		Lines:            make([]domain.OrderLine, 0, len(lines)),
		Total:            decimal.Zero,
	}

	for _, l := range lines {
		subtotal := l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
		order.Lines = append(order.Lines, domain.OrderLine{
			BookID:    l.BookID,
			Title:     l.Title,
			Genre:     l.GenreName,
			Quantity:  int(l.Quantity),
			UnitPrice: l.UnitPrice,
			Subtotal:  subtotal,
		})
		order.Total = order.Total.Add(subtotal)
	}
	return order
}
