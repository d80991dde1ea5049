package domain

import "github.com/shopspring/decimal"

var ErrBookNotFound = &Error{Code: ENOTFOUND, Message: "Book not found"}

// Book is the catalog view of a book. The catalog itself is managed elsewhere;
// checkout only reads it.
type Book struct {
	ID     int64
	Title  string
	Author string
	Price  decimal.Decimal
	Image  string
	Genre  string
}
