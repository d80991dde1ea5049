package email

import "time"

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// OrderReceiptEmail is sent once an order is paid.
type OrderReceiptEmail struct {
	OrderID      int64
	Email        string
	CustomerName string
	Address      string
	PlacedAt     time.Time
	Lines        []ReceiptLine
	Total        string // formatted with two decimals
	Currency     string
}

// ReceiptLine is one order line on a receipt.
type ReceiptLine struct {
	Title     string
	Quantity  int
	UnitPrice string
	Subtotal  string
}

func (e OrderReceiptEmail) Subject() string {
	return "Your receipt for order #" + itoa(e.OrderID)
}

func (e OrderReceiptEmail) TemplateName() string {
	return "order_receipt.html"
}
