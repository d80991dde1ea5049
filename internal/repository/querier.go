package repository

import (
	"context"
)

type Querier interface {
	// Catalog
	GetBook(ctx context.Context, id int64) (GetBookRow, error)

	// Stock
	GetStock(ctx context.Context, bookID int64) (Stock, error)
	GetStockForUpdate(ctx context.Context, bookID int64) (Stock, error)
	UpdateStockQuantity(ctx context.Context, arg UpdateStockQuantityParams) error
	UpsertStock(ctx context.Context, arg UpsertStockParams) (Stock, error)
	IncrementStock(ctx context.Context, arg IncrementStockParams) (Stock, error)
	ListLowStock(ctx context.Context, threshold int32) ([]ListLowStockRow, error)

	// Carts
	GetCartByUserID(ctx context.Context, userID string) (Cart, error)
	CreateCart(ctx context.Context, userID string) (Cart, error)
	GetCartLine(ctx context.Context, arg GetCartLineParams) (CartLine, error)
	AddCartLine(ctx context.Context, arg AddCartLineParams) (AddCartLineRow, error)
	UpdateCartLineQuantity(ctx context.Context, arg UpdateCartLineQuantityParams) error
	DeleteCartLine(ctx context.Context, id int64) error
	ListCartLines(ctx context.Context, cartID int64) ([]ListCartLinesRow, error)
	DeleteCartLines(ctx context.Context, cartID int64) (int64, error)

	// Order statuses
	GetOrderStatusByName(ctx context.Context, name string) (OrderStatus, error)
	GetOrderStatus(ctx context.Context, id int32) (OrderStatus, error)
	ListOrderStatuses(ctx context.Context) ([]OrderStatus, error)

	// Orders
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error)
	GetOrder(ctx context.Context, id int64) (OrderWithStatus, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter []OrderPredicate) ([]OrderWithStatus, error)
	ListOrderLines(ctx context.Context, orderIDs []int64) ([]ListOrderLinesRow, error)
	MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) error
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error
	SetOrderPaid(ctx context.Context, arg SetOrderPaidParams) error
	SetOrderPaymentSession(ctx context.Context, arg SetOrderPaymentSessionParams) error

	// Jobs
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	ClaimNextJob(ctx context.Context, workerID string) (Job, error)
	CompleteJob(ctx context.Context, id int64) error
	FailJob(ctx context.Context, arg FailJobParams) error
}

var _ Querier = (*Queries)(nil)

// Store runs queries inside transactions. A non-nil error from fn rolls back
// every write fn made.
type Store interface {
	ExecTx(ctx context.Context, fn func(Querier) error) error
}
