package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

const getCartByUserID = `-- name: GetCartByUserID :one
SELECT id, user_id, created_at FROM carts
WHERE user_id = $1
`

func (q *Queries) GetCartByUserID(ctx context.Context, userID string) (Cart, error) {
	row := q.db.QueryRow(ctx, getCartByUserID, userID)
	var i Cart
	err := row.Scan(&i.ID, &i.UserID, &i.CreatedAt)
	return i, err
}

const createCart = `-- name: CreateCart :one
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, created_at
`

// CreateCart returns the existing cart when a concurrent request created it first.
func (q *Queries) CreateCart(ctx context.Context, userID string) (Cart, error) {
	row := q.db.QueryRow(ctx, createCart, userID)
	var i Cart
	err := row.Scan(&i.ID, &i.UserID, &i.CreatedAt)
	return i, err
}

const getCartLine = `-- name: GetCartLine :one
SELECT id, cart_id, book_id, quantity, unit_price FROM cart_lines
WHERE cart_id = $1 AND book_id = $2
FOR UPDATE
`

type GetCartLineParams struct {
	CartID int64
	BookID int64
}

func (q *Queries) GetCartLine(ctx context.Context, arg GetCartLineParams) (CartLine, error) {
	row := q.db.QueryRow(ctx, getCartLine, arg.CartID, arg.BookID)
	var i CartLine
	err := row.Scan(&i.ID, &i.CartID, &i.BookID, &i.Quantity, &i.UnitPrice)
	return i, err
}

const addCartLine = `-- name: AddCartLine :one
INSERT INTO cart_lines (cart_id, book_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, book_id) DO UPDATE
    SET quantity = cart_lines.quantity + EXCLUDED.quantity
    WHERE cart_lines.quantity <= $5::integer - EXCLUDED.quantity
RETURNING id, cart_id, book_id, quantity, unit_price, (xmax = 0) AS inserted
`

type AddCartLineParams struct {
	CartID      int64
	BookID      int64
	Quantity    int32
	UnitPrice   decimal.Decimal
	MaxQuantity int32
}

type AddCartLineRow struct {
	ID        int64
	CartID    int64
	BookID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
	Inserted  bool
}

// AddCartLine inserts a line or increments the existing one. An existing line
// keeps its unit price. When the increment would pass MaxQuantity nothing is
// written and pgx.ErrNoRows is returned.
func (q *Queries) AddCartLine(ctx context.Context, arg AddCartLineParams) (AddCartLineRow, error) {
	row := q.db.QueryRow(ctx, addCartLine,
		arg.CartID,
		arg.BookID,
		arg.Quantity,
		arg.UnitPrice,
		arg.MaxQuantity,
	)
	var i AddCartLineRow
	err := row.Scan(
		&i.ID,
		&i.CartID,
		&i.BookID,
		&i.Quantity,
		&i.UnitPrice,
		&i.Inserted,
	)
	return i, err
}

const updateCartLineQuantity = `-- name: UpdateCartLineQuantity :exec
UPDATE cart_lines
SET quantity = $2
WHERE id = $1
`

type UpdateCartLineQuantityParams struct {
	ID       int64
	Quantity int32
}

func (q *Queries) UpdateCartLineQuantity(ctx context.Context, arg UpdateCartLineQuantityParams) error {
	_, err := q.db.Exec(ctx, updateCartLineQuantity, arg.ID, arg.Quantity)
	return err
}

const deleteCartLine = `-- name: DeleteCartLine :exec
DELETE FROM cart_lines
WHERE id = $1
`

func (q *Queries) DeleteCartLine(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, deleteCartLine, id)
	return err
}

const listCartLines = `-- name: ListCartLines :many
SELECT
    cl.id,
    cl.book_id,
    cl.quantity,
    cl.unit_price,
    b.title,
    b.author,
    b.image,
    g.name AS genre_name
FROM cart_lines cl
JOIN books b ON b.id = cl.book_id
JOIN genres g ON g.id = b.genre_id
WHERE cl.cart_id = $1
ORDER BY cl.id
`

type ListCartLinesRow struct {
	ID        int64
	BookID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
	Title     string
	Author    string
	Image     string
	GenreName string
}

func (q *Queries) ListCartLines(ctx context.Context, cartID int64) ([]ListCartLinesRow, error) {
	rows, err := q.db.Query(ctx, listCartLines, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListCartLinesRow{}
	for rows.Next() {
		var i ListCartLinesRow
		if err := rows.Scan(
			&i.ID,
			&i.BookID,
			&i.Quantity,
			&i.UnitPrice,
			&i.Title,
			&i.Author,
			&i.Image,
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

const deleteCartLines = `-- name: DeleteCartLines :execrows
DELETE FROM cart_lines
WHERE cart_id = $1
`

func (q *Queries) DeleteCartLines(ctx context.Context, cartID int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartLines, cartID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
