package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.user_id, o.status_id, o.is_paid, o.payment_method, o.name, o.email,
    o.mobile_number, o.address, o.payment_session_id, o.stock_applied, o.created_at`

// OrderWithStatus is an order joined with its status name.
type OrderWithStatus struct {
	Order      Order
	StatusName string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, extra ...any) (Order, error) {
	var i Order
	dest := []any{
		&i.ID,
		&i.UserID,
		&i.StatusID,
		&i.IsPaid,
		&i.PaymentMethod,
		&i.Name,
		&i.Email,
		&i.MobileNumber,
		&i.Address,
		&i.PaymentSessionID,
		&i.StockApplied,
		&i.CreatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return i, err
}

const getOrderStatusByName = `-- name: GetOrderStatusByName :one
SELECT id, name FROM order_statuses
WHERE name = $1
`

func (q *Queries) GetOrderStatusByName(ctx context.Context, name string) (OrderStatus, error) {
	row := q.db.QueryRow(ctx, getOrderStatusByName, name)
	var i OrderStatus
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const getOrderStatus = `-- name: GetOrderStatus :one
SELECT id, name FROM order_statuses
WHERE id = $1
`

func (q *Queries) GetOrderStatus(ctx context.Context, id int32) (OrderStatus, error) {
	row := q.db.QueryRow(ctx, getOrderStatus, id)
	var i OrderStatus
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const listOrderStatuses = `-- name: ListOrderStatuses :many
SELECT id, name FROM order_statuses
ORDER BY id
`

func (q *Queries) ListOrderStatuses(ctx context.Context) ([]OrderStatus, error) {
	rows, err := q.db.Query(ctx, listOrderStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderStatus{}
	for rows.Next() {
		var i OrderStatus
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders AS o (
    user_id, status_id, is_paid, payment_method, name, email, mobile_number, address, stock_applied
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	UserID        string
	StatusID      int32
	IsPaid        bool
	PaymentMethod string
	Name          string
	Email         string
	MobileNumber  string
	Address       string
	StockApplied  bool
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.StatusID,
		arg.IsPaid,
		arg.PaymentMethod,
		arg.Name,
		arg.Email,
		arg.MobileNumber,
		arg.Address,
		arg.StockApplied,
	)
	return scanOrder(row)
}

const createOrderLine = `-- name: CreateOrderLine :one
INSERT INTO order_lines (order_id, book_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, book_id, quantity, unit_price
`

type CreateOrderLineParams struct {
	OrderID   int64
	BookID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID,
		arg.BookID,
		arg.Quantity,
		arg.UnitPrice,
	)
	var i OrderLine
	err := row.Scan(&i.ID, &i.OrderID, &i.BookID, &i.Quantity, &i.UnitPrice)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `, s.name
FROM orders o
JOIN order_statuses s ON s.id = o.status_id
WHERE o.id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (OrderWithStatus, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var i OrderWithStatus
	o, err := scanOrder(row, &i.StatusName)
	i.Order = o
	return i, err
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders o
WHERE o.id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row so that concurrent confirmations of
// the same order run one after the other.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `, s.name
FROM orders o
JOIN order_statuses s ON s.id = o.status_id
`

func (q *Queries) ListOrders(ctx context.Context, filter []OrderPredicate) ([]OrderWithStatus, error) {
	where, args := whereClause(filter)
	rows, err := q.db.Query(ctx, listOrders+where+"\nORDER BY o.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderWithStatus{}
	for rows.Next() {
		var i OrderWithStatus
		o, err := scanOrder(rows, &i.StatusName)
		if err != nil {
			return nil, err
		}
		i.Order = o
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderLines = `-- name: ListOrderLines :many
SELECT ol.id, ol.order_id, ol.book_id, ol.quantity, ol.unit_price, b.title, g.name AS genre_name
FROM order_lines ol
JOIN books b ON b.id = ol.book_id
JOIN genres g ON g.id = b.genre_id
WHERE ol.order_id = ANY($1::bigint[])
ORDER BY ol.order_id, ol.id
`

type ListOrderLinesRow struct {
	ID        int64
	OrderID   int64
	BookID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
	Title     string
	GenreName string
}

func (q *Queries) ListOrderLines(ctx context.Context, orderIDs []int64) ([]ListOrderLinesRow, error) {
	rows, err := q.db.Query(ctx, listOrderLines, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrderLinesRow{}
	for rows.Next() {
		var i ListOrderLinesRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.BookID,
			&i.Quantity,
			&i.UnitPrice,
			&i.Title,
			&i.GenreName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markOrderPaid = `-- name: MarkOrderPaid :exec
UPDATE orders
SET is_paid = TRUE, status_id = $2, stock_applied = TRUE
WHERE id = $1
`

type MarkOrderPaidParams struct {
	ID       int64
	StatusID int32
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) error {
	_, err := q.db.Exec(ctx, markOrderPaid, arg.ID, arg.StatusID)
	return err
}

const updateOrderStatus = `-- name: UpdateOrderStatus :exec
UPDATE orders
SET status_id = $2
WHERE id = $1
`

type UpdateOrderStatusParams struct {
	ID       int64
	StatusID int32
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error {
	_, err := q.db.Exec(ctx, updateOrderStatus, arg.ID, arg.StatusID)
	return err
}

const setOrderPaid = `-- name: SetOrderPaid :exec
UPDATE orders
SET is_paid = $2
WHERE id = $1
`

type SetOrderPaidParams struct {
	ID     int64
	IsPaid bool
}

func (q *Queries) SetOrderPaid(ctx context.Context, arg SetOrderPaidParams) error {
	_, err := q.db.Exec(ctx, setOrderPaid, arg.ID, arg.IsPaid)
	return err
}

const setOrderPaymentSession = `-- name: SetOrderPaymentSession :exec
UPDATE orders
SET payment_session_id = $2
WHERE id = $1
`

type SetOrderPaymentSessionParams struct {
	ID        int64
	SessionID string
}

func (q *Queries) SetOrderPaymentSession(ctx context.Context, arg SetOrderPaymentSessionParams) error {
	_, err := q.db.Exec(ctx, setOrderPaymentSession, arg.ID, arg.SessionID)
	return err
}
