package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order status names. The status table must contain at least Pending and Paid.
const (
	StatusPending   = "Pending"
	StatusPaid      = "Paid"
	StatusShipped   = "Shipped"
	StatusDelivered = "Delivered"
	StatusCancelled = "Cancelled"
	StatusReturned  = "Returned"
)

var (
	ErrOrderNotFound              = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderStatusNotFound        = &Error{Code: EINVALID, Message: "Order status does not exist"}
	ErrStatusConfigurationMissing = &Error{Code: EINTERNAL, Message: "Order status configuration is missing"}
)

type OrderStatus struct {
	ID   int32
	Name string
}

// Order is an immutable snapshot of a cart. Only IsPaid and Status change
// after creation.
type Order struct {
	ID               int64
	UserID           string
	Status           OrderStatus
	IsPaid           bool
	PaymentMethod    PaymentMethod
	Shipping         ShippingInfo
	PaymentSessionID string
	CreatedAt        time.Time
	Lines            []OrderLine
	Total            decimal.Decimal
}

type OrderLine struct {
	BookID    int64
	Title     string
	Genre     string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// OrderQuery selects orders to list. Unless All is set, UserID is required
// and only that user's orders are returned.
type OrderQuery struct {
	UserID        string
	All           bool
	PaymentMethod PaymentMethod
	IsPaid        *bool
	StatusID      int32
}

// OrderService reads orders and performs the administrative updates.
type OrderService interface {
	// ListOrders returns matching orders, newest first.
	ListOrders(ctx context.Context, query OrderQuery) ([]Order, error)

	// GetOrder returns one order. A non-empty userID restricts access to
	// that user's orders.
	GetOrder(ctx context.Context, userID string, orderID int64) (*Order, error)

	ListStatuses(ctx context.Context) ([]OrderStatus, error)

	// ChangeOrderStatus moves an order to another status without touching
	// payment or stock.
	ChangeOrderStatus(ctx context.Context, orderID int64, statusID int32) (*Order, error)

	// TogglePaymentStatus flips the paid flag. Stock is not adjusted.
	TogglePaymentStatus(ctx context.Context, orderID int64) (*Order, error)
}
