package domain

import "context"

var ErrPaymentNotCompleted = &Error{Code: EPAYMENT, Message: "Payment has not been completed"}

// ConfirmResult reports the outcome of a payment confirmation. Applied is
// false when the order was already paid or does not exist.
type ConfirmResult struct {
	OrderID int64
	Applied bool
}

// PaymentService reconciles payment gateway outcomes with orders.
type PaymentService interface {
	// ConfirmPayment marks the order paid, takes its stock and clears the
	// owner's cart. Repeated calls for a paid order change nothing.
	ConfirmPayment(ctx context.Context, orderID int64) (*ConfirmResult, error)

	// ConfirmIfSessionPaid asks the payment provider whether the order's
	// session is paid before confirming. Used by the browser return URL.
	ConfirmIfSessionPaid(ctx context.Context, orderID int64) (*ConfirmResult, error)

	// CancelPayment records an abandoned payment. The order stays pending.
	CancelPayment(ctx context.Context, orderID int64) error
}
