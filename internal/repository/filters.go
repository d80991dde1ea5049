package repository

import (
	"fmt"
	"strings"
)

// OrderPredicate is one condition of an order listing. Callers assemble the
// full list first; ListOrders then runs a single read with all of them ANDed.
type OrderPredicate struct {
	column string
	value  any
	match  func(Order) bool
}

func OrderUserIs(userID string) OrderPredicate {
	return OrderPredicate{
		column: "o.user_id",
		value:  userID,
		match:  func(o Order) bool { return o.UserID == userID },
	}
}

func OrderPaymentMethodIs(method string) OrderPredicate {
	return OrderPredicate{
		column: "o.payment_method",
		value:  method,
		match:  func(o Order) bool { return o.PaymentMethod == method },
	}
}

func OrderPaidIs(paid bool) OrderPredicate {
	return OrderPredicate{
		column: "o.is_paid",
		value:  paid,
		match:  func(o Order) bool { return o.IsPaid == paid },
	}
}

func OrderStatusIs(statusID int32) OrderPredicate {
	return OrderPredicate{
		column: "o.status_id",
		value:  statusID,
		match:  func(o Order) bool { return o.StatusID == statusID },
	}
}

// Matches reports whether o satisfies every predicate.
func Matches(o Order, filter []OrderPredicate) bool {
	for _, p := range filter {
		if !p.match(o) {
			return false
		}
	}
	return true
}

// whereClause renders the predicates as a parameterized WHERE clause.
func whereClause(filter []OrderPredicate) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}

	conds := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for i, p := range filter {
		conds = append(conds, fmt.Sprintf("%s = $%d", p.column, i+1))
		args = append(args, p.value)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
