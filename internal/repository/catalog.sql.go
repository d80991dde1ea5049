package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

const getBook = `-- name: GetBook :one
SELECT b.id, b.title, b.author, b.price, b.image, g.name AS genre_name
FROM books b
JOIN genres g ON g.id = b.genre_id
WHERE b.id = $1
`

type GetBookRow struct {
	ID        int64
	Title     string
	Author    string
	Price     decimal.Decimal
	Image     string
	GenreName string
}

func (q *Queries) GetBook(ctx context.Context, id int64) (GetBookRow, error) {
	row := q.db.QueryRow(ctx, getBook, id)
	var i GetBookRow
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Author,
		&i.Price,
		&i.Image,
		&i.GenreName,
	)
	return i, err
}
