package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/domain"
)

// seedOrders places a COD order for u1, an online order for u1 and a COD
// order for u2, in that order.
func seedOrders(t *testing.T, env *testEnv) (book int64, ids []int64) {
	t.Helper()
	ctx := context.Background()
	book = env.addBook(t, "Dune", "9.99", 50)

	place := func(userID string, params domain.CheckoutParams) {
		_, err := env.cart.AddLine(ctx, userID, book, 1)
		require.NoError(t, err)
		result, err := env.checkout.Checkout(ctx, userID, params)
		require.NoError(t, err)
		ids = append(ids, result.OrderID)
	}
	place("u1", codParams())
	place("u1", onlineParams())
	place("u2", codParams())
	return book, ids
}

func orderIDs(orders []domain.Order) []int64 {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, ids := seedOrders(t, env)
	paid := true
	unpaid := false

	tests := []struct {
		name  string
		query domain.OrderQuery
		want  []int64
	}{
		{"own orders newest first", domain.OrderQuery{UserID: "u1"}, []int64{ids[1], ids[0]}},
		{"own orders by method", domain.OrderQuery{UserID: "u1", PaymentMethod: domain.PaymentMethodCOD}, []int64{ids[0]}},
		{"other user", domain.OrderQuery{UserID: "u2"}, []int64{ids[2]}},
		{"unknown user", domain.OrderQuery{UserID: "u3"}, []int64{}},
		{"all", domain.OrderQuery{All: true}, []int64{ids[2], ids[1], ids[0]}},
		{"all online", domain.OrderQuery{All: true, PaymentMethod: domain.PaymentMethodOnline}, []int64{ids[1]}},
		{"all paid", domain.OrderQuery{All: true, IsPaid: &paid}, []int64{}},
		{"all unpaid", domain.OrderQuery{All: true, IsPaid: &unpaid}, []int64{ids[2], ids[1], ids[0]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := env.orders.ListOrders(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, orderIDs(orders))
		})
	}

	t.Run("lines and totals are attached", func(t *testing.T) {
		orders, err := env.orders.ListOrders(ctx, domain.OrderQuery{UserID: "u2"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		require.Len(t, orders[0].Lines, 1)
		assert.Equal(t, "Dune", orders[0].Lines[0].Title)
		assert.Equal(t, "9.99", orders[0].Total.StringFixed(2))
		assert.Equal(t, domain.StatusPending, orders[0].Status.Name)
	})
}

func TestOrderService_ListOrders_Errors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.orders.ListOrders(ctx, domain.OrderQuery{})
	assert.ErrorIs(t, err, domain.ErrUserRequired)

	_, err = env.orders.ListOrders(ctx, domain.OrderQuery{UserID: "u1", PaymentMethod: "Cash"})
	assert.Contains(t, domain.GetValidationFields(err), "paymentMethod")
}

func TestOrderService_ListOrders_ByStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, ids := seedOrders(t, env)

	_, err := env.payment.ConfirmPayment(ctx, ids[1])
	require.NoError(t, err)

	statuses, err := env.orders.ListStatuses(ctx)
	require.NoError(t, err)
	var paidID int32
	for _, s := range statuses {
		if s.Name == domain.StatusPaid {
			paidID = s.ID
		}
	}
	require.NotZero(t, paidID)

	orders, err := env.orders.ListOrders(ctx, domain.OrderQuery{All: true, StatusID: paidID})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1]}, orderIDs(orders))
}

func TestOrderService_GetOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, ids := seedOrders(t, env)

	order, err := env.orders.GetOrder(ctx, "u2", ids[2])
	require.NoError(t, err)
	assert.Equal(t, "u2", order.UserID)

	_, err = env.orders.GetOrder(ctx, "u2", ids[0])
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	admin, err := env.orders.GetOrder(ctx, "", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "u1", admin.UserID)

	_, err = env.orders.GetOrder(ctx, "", 404)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_ListStatuses(t *testing.T) {
	env := newTestEnv(t)

	statuses, err := env.orders.ListStatuses(context.Background())
	require.NoError(t, err)

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		domain.StatusPending,
		domain.StatusPaid,
		domain.StatusShipped,
		domain.StatusDelivered,
		domain.StatusCancelled,
		domain.StatusReturned,
	}, names)
}

func TestOrderService_ChangeOrderStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	book, ids := seedOrders(t, env)
	before := env.quantityOf(t, book)

	statuses, err := env.orders.ListStatuses(ctx)
	require.NoError(t, err)
	shipped := statuses[2]
	require.Equal(t, domain.StatusShipped, shipped.Name)

	order, err := env.orders.ChangeOrderStatus(ctx, ids[0], shipped.ID)
	require.NoError(t, err)
	assert.Equal(t, shipped, order.Status)
	assert.False(t, order.IsPaid)
	assert.Equal(t, before, env.quantityOf(t, book))

	_, err = env.orders.ChangeOrderStatus(ctx, ids[0], 999)
	assert.ErrorIs(t, err, domain.ErrOrderStatusNotFound)

	_, err = env.orders.ChangeOrderStatus(ctx, 404, shipped.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_TogglePaymentStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	book, ids := seedOrders(t, env)
	before := env.quantityOf(t, book)

	order, err := env.orders.TogglePaymentStatus(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	assert.Equal(t, domain.StatusPending, order.Status.Name)
	assert.Equal(t, before, env.quantityOf(t, book))

	order, err = env.orders.TogglePaymentStatus(ctx, ids[1])
	require.NoError(t, err)
	assert.False(t, order.IsPaid)

	_, err = env.orders.TogglePaymentStatus(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
