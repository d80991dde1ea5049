package repository

import (
	"context"
)

const getStock = `-- name: GetStock :one
SELECT id, book_id, quantity, updated_at FROM stock
WHERE book_id = $1
`

func (q *Queries) GetStock(ctx context.Context, bookID int64) (Stock, error) {
	row := q.db.QueryRow(ctx, getStock, bookID)
	var i Stock
	err := row.Scan(&i.ID, &i.BookID, &i.Quantity, &i.UpdatedAt)
	return i, err
}

const getStockForUpdate = `-- name: GetStockForUpdate :one
SELECT id, book_id, quantity, updated_at FROM stock
WHERE book_id = $1
FOR UPDATE
`

// GetStockForUpdate locks the stock row until the surrounding transaction ends.
func (q *Queries) GetStockForUpdate(ctx context.Context, bookID int64) (Stock, error) {
	row := q.db.QueryRow(ctx, getStockForUpdate, bookID)
	var i Stock
	err := row.Scan(&i.ID, &i.BookID, &i.Quantity, &i.UpdatedAt)
	return i, err
}

const updateStockQuantity = `-- name: UpdateStockQuantity :exec
UPDATE stock
SET quantity = $2, updated_at = NOW()
WHERE book_id = $1
`

type UpdateStockQuantityParams struct {
	BookID   int64
	Quantity int32
}

func (q *Queries) UpdateStockQuantity(ctx context.Context, arg UpdateStockQuantityParams) error {
	_, err := q.db.Exec(ctx, updateStockQuantity, arg.BookID, arg.Quantity)
	return err
}

const upsertStock = `-- name: UpsertStock :one
INSERT INTO stock (book_id, quantity)
VALUES ($1, $2)
ON CONFLICT (book_id) DO UPDATE
SET quantity = EXCLUDED.quantity, updated_at = NOW()
RETURNING id, book_id, quantity, updated_at
`

type UpsertStockParams struct {
	BookID   int64
	Quantity int32
}

func (q *Queries) UpsertStock(ctx context.Context, arg UpsertStockParams) (Stock, error) {
	row := q.db.QueryRow(ctx, upsertStock, arg.BookID, arg.Quantity)
	var i Stock
	err := row.Scan(&i.ID, &i.BookID, &i.Quantity, &i.UpdatedAt)
	return i, err
}

const incrementStock = `-- name: IncrementStock :one
INSERT INTO stock (book_id, quantity)
VALUES ($1, $2)
ON CONFLICT (book_id) DO UPDATE
SET quantity = stock.quantity + EXCLUDED.quantity, updated_at = NOW()
RETURNING id, book_id, quantity, updated_at
`

type IncrementStockParams struct {
	BookID   int64
	Quantity int32
}

func (q *Queries) IncrementStock(ctx context.Context, arg IncrementStockParams) (Stock, error) {
	row := q.db.QueryRow(ctx, incrementStock, arg.BookID, arg.Quantity)
	var i Stock
	err := row.Scan(&i.ID, &i.BookID, &i.Quantity, &i.UpdatedAt)
	return i, err
}

const listLowStock = `-- name: ListLowStock :many
SELECT s.book_id, b.title, s.quantity
FROM stock s
JOIN books b ON b.id = s.book_id
WHERE s.quantity <= $1
ORDER BY s.quantity, b.title
`

type ListLowStockRow struct {
	BookID   int64
	Title    string
	Quantity int32
}

func (q *Queries) ListLowStock(ctx context.Context, threshold int32) ([]ListLowStockRow, error) {
	rows, err := q.db.Query(ctx, listLowStock, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListLowStockRow{}
	for rows.Next() {
		var i ListLowStockRow
		if err := rows.Scan(&i.BookID, &i.Title, &i.Quantity); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
