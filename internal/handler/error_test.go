package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/domain"
)

// respond runs HandleError for err on a JSON request to POST /api/checkout.
func respond(t *testing.T, err error) (*httptest.ResponseRecorder, errorDetail) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	HandleError(rec, req, err)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body.Error
}

func TestHandleError_CheckoutFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "empty cart",
			err:         domain.ErrEmptyCart,
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.EINVALID,
			wantMessage: "Cart is empty",
		},
		{
			name:        "stock contention from the store",
			err:         fmt.Errorf("%w: canceling statement due to lock timeout", domain.ErrStockContention),
			wantStatus:  http.StatusConflict,
			wantCode:    domain.ECONFLICT,
			wantMessage: domain.ErrStockContention.Message,
		},
		{
			name:        "payment session failure",
			err:         domain.PaymentRequired(errors.New("stripe: card_declined"), "checkout.checkout", "Could not start the online payment"),
			wantStatus:  http.StatusPaymentRequired,
			wantCode:    domain.EPAYMENT,
			wantMessage: "Could not start the online payment",
		},
		{
			name:        "payment not completed on return",
			err:         domain.ErrPaymentNotCompleted,
			wantStatus:  http.StatusPaymentRequired,
			wantCode:    domain.EPAYMENT,
			wantMessage: "Payment has not been completed",
		},
		{
			name:        "missing status configuration is hidden",
			err:         domain.ErrStatusConfigurationMissing,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    domain.EINTERNAL,
			wantMessage: "An internal error occurred. Please try again later.",
		},
		{
			name:        "book not in cart",
			err:         domain.ErrCartLineNotFound,
			wantStatus:  http.StatusNotFound,
			wantCode:    domain.ENOTFOUND,
			wantMessage: "Book is not in the cart",
		},
		{
			name:        "no identity",
			err:         domain.ErrUserRequired,
			wantStatus:  http.StatusUnauthorized,
			wantCode:    domain.EUNAUTHORIZED,
			wantMessage: "User identity is required",
		},
		{
			name:        "quantity over the line limit",
			err:         domain.ErrQuantityTooLarge,
			wantStatus:  http.StatusBadRequest,
			wantCode:    domain.EINVALID,
			wantMessage: domain.ErrQuantityTooLarge.Message,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, detail := respond(t, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Equal(t, tt.wantMessage, detail.Message)
			assert.Nil(t, detail.Stock)
			assert.Empty(t, detail.Fields)
		})
	}
}

func TestHandleError_InsufficientStock(t *testing.T) {
	err := domain.NewInsufficientStockError("checkout.checkout", 12, "Dune", 3, 1)

	rec, detail := respond(t, err)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ECONFLICT, detail.Code)
	assert.Equal(t, `Only 1 item(s) of "Dune" are available`, detail.Message)
	require.NotNil(t, detail.Stock)
	assert.Equal(t, stockDetail{BookID: 12, Requested: 3, Available: 1}, *detail.Stock)
}

func TestHandleError_ShippingValidation(t *testing.T) {
	err := domain.ShippingInfo{Email: "not-an-email", MobileNumber: "12"}.Validate("checkout.checkout")
	require.Error(t, err)

	rec, detail := respond(t, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.EINVALID, detail.Code)
	assert.Equal(t, "One or more fields are invalid", detail.Message)
	assert.Equal(t, map[string]string{
		"name":         "name is required",
		"email":        "email must be a valid email address",
		"mobileNumber": "mobileNumber is too short",
		"address":      "address is required",
	}, detail.Fields)
}

func TestHandleError_PlainTextClients(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/payment/success?orderId=9", nil)
	rec := httptest.NewRecorder()

	HandleError(rec, req, domain.NewInsufficientStockError("payment.confirm", 3, "Emma", 2, 0))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, `Only 0 item(s) of "Emma" are available`, strings.TrimSpace(rec.Body.String()))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	statuses := map[string]int{
		domain.EINVALID:      http.StatusBadRequest,
		domain.EUNAUTHORIZED: http.StatusUnauthorized,
		domain.EPAYMENT:      http.StatusPaymentRequired,
		domain.EFORBIDDEN:    http.StatusForbidden,
		domain.ENOTFOUND:     http.StatusNotFound,
		domain.ECONFLICT:     http.StatusConflict,
		domain.ERATELIMIT:    http.StatusTooManyRequests,
		domain.ENOTIMPL:      http.StatusNotImplemented,
		domain.EINTERNAL:     http.StatusInternalServerError,
		"":                   http.StatusInternalServerError,
	}
	for code, want := range statuses {
		assert.Equal(t, want, ErrorCodeToHTTPStatus(code), "code %q", code)
	}
}

func TestDecodeJSON(t *testing.T) {
	type addLine struct {
		BookID   int64 `json:"bookId"`
		Quantity *int  `json:"quantity"`
	}

	decode := func(body string) (addLine, error) {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(body))
		var v addLine
		err := DecodeJSON(httptest.NewRecorder(), req, &v)
		return v, err
	}

	v, err := decode(`{"bookId":4,"quantity":2}`)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v.BookID)
	require.NotNil(t, v.Quantity)
	assert.Equal(t, 2, *v.Quantity)

	_, err = decode(`{"bookId":4,"price":"0.01"}`)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	_, err = decode(`{"bookId":`)
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}

func TestAcceptsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	assert.False(t, acceptsJSON(req))

	req.Header.Set("Accept", "application/json, text/plain")
	assert.True(t, acceptsJSON(req))

	req = httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req.Header.Set("Content-Type", "application/json")
	assert.True(t, acceptsJSON(req))

	assert.True(t, acceptsJSON(httptest.NewRequest(http.MethodGet, "/api/orders.json", nil)))
}
