package domain

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "Online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodOnline
}

var ErrEmptyCart = &Error{Code: EINVALID, Message: "Cart is empty"}

// ShippingInfo is the delivery contact captured at checkout.
type ShippingInfo struct {
	Name         string `json:"name" validate:"required,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	MobileNumber string `json:"mobileNumber" validate:"required,min=7,max=20"`
	Address      string `json:"address" validate:"required,max=500"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldNames = map[string]string{
	"Name":         "name",
	"Email":        "email",
	"MobileNumber": "mobileNumber",
	"Address":      "address",
}

var fieldMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"max":      "is too long",
	"min":      "is too short",
}

// Validate checks the shipping fields and returns a *ValidationError keyed
// by JSON field name.
func (s ShippingInfo) Validate(op string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Internal(err, op, "failed to validate shipping info")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name, ok := fieldNames[fe.Field()]
		if !ok {
			name = fe.Field()
		}
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[name] = name + " " + msg
	}
	return NewValidationErrors(op, fields)
}

type CheckoutParams struct {
	PaymentMethod PaymentMethod
	Shipping      ShippingInfo
}

// CheckoutResult identifies the placed order. RedirectURL is set for online
// payment and points at the payment provider.
type CheckoutResult struct {
	OrderID     int64
	RedirectURL string
}

// CheckoutService turns a user's cart into an order.
type CheckoutService interface {
	Checkout(ctx context.Context, userID string, params CheckoutParams) (*CheckoutResult, error)
}
