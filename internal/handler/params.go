package handler

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/bookstore/internal/domain"
)

// PathID parses a positive integer path value such as {id} or {bookId}.
func PathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("request.path", name, name+" must be a positive integer")
	}
	return id, nil
}

// QueryID parses a positive integer query parameter. A missing parameter is an error.
func QueryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, domain.NewValidationError("request.query", name, name+" is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("request.query", name, name+" must be a positive integer")
	}
	return id, nil
}

// QueryInt parses an optional integer query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("request.query", name, name+" must be an integer")
	}
	return n, nil
}

// QueryBool parses an optional boolean query parameter. Absent returns nil.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.NewValidationError("request.query", name, name+" must be true or false")
	}
	return &b, nil
}

// QueryPaymentMethod parses the optional paymentMethod filter.
func QueryPaymentMethod(r *http.Request) (domain.PaymentMethod, error) {
	raw := r.URL.Query().Get("paymentMethod")
	if raw == "" {
		return "", nil
	}
	m := domain.PaymentMethod(raw)
	if !m.Valid() {
		return "", domain.NewValidationError("request.query", "paymentMethod", "paymentMethod must be COD or Online")
	}
	return m, nil
}
