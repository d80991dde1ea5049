package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/domain"
)

func newTestStore(t *testing.T) (*MemoryStore, int64) {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore(100 * time.Millisecond)
	id, err := s.AddBook(ctx, "Dune", "Frank Herbert", "Science Fiction", decimal.RequireFromString("9.99"))
	require.NoError(t, err)
	return s, id
}

func TestMemoryStore_ExecTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s, bookID := newTestStore(t)

	err := s.ExecTx(ctx, func(q Querier) error {
		_, err := q.UpsertStock(ctx, UpsertStockParams{BookID: bookID, Quantity: 4})
		return err
	})
	require.NoError(t, err)

	var got Stock
	require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
		var err error
		got, err = q.GetStock(ctx, bookID)
		return err
	}))
	assert.Equal(t, int32(4), got.Quantity)
}

func TestMemoryStore_ExecTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s, bookID := newTestStore(t)
	boom := errors.New("boom")

	err := s.ExecTx(ctx, func(q Querier) error {
		if _, err := q.UpsertStock(ctx, UpsertStockParams{BookID: bookID, Quantity: 4}); err != nil {
			return err
		}
		if _, err := q.CreateCart(ctx, "user-1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
		_, err := q.GetStock(ctx, bookID)
		assert.ErrorIs(t, err, pgx.ErrNoRows)
		_, err = q.GetCartByUserID(ctx, "user-1")
		assert.ErrorIs(t, err, pgx.ErrNoRows)
		return nil
	}))
}

func TestMemoryStore_ExecTx_BoundedWait(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.ExecTx(ctx, func(q Querier) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	start := time.Now()
	err := s.ExecTx(ctx, func(q Querier) error { return nil })
	close(done)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStockContention)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestMemoryStore_ExecTx_ContextCancelled(t *testing.T) {
	s, _ := newTestStore(t)
	s.lockTimeout = 0
	s.slot <- struct{}{}
	defer s.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.ExecTx(ctx, func(q Querier) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryStore_ListOrders_Predicates(t *testing.T) {
	ctx := context.Background()
	s, bookID := newTestStore(t)

	require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
		pending, err := q.GetOrderStatusByName(ctx, domain.StatusPending)
		if err != nil {
			return err
		}
		for _, p := range []CreateOrderParams{
			{UserID: "alice", StatusID: pending.ID, PaymentMethod: "COD"},
			{UserID: "alice", StatusID: pending.ID, PaymentMethod: "Online"},
			{UserID: "bob", StatusID: pending.ID, PaymentMethod: "COD", IsPaid: true},
		} {
			o, err := q.CreateOrder(ctx, p)
			if err != nil {
				return err
			}
			if _, err := q.CreateOrderLine(ctx, CreateOrderLineParams{
				OrderID: o.ID, BookID: bookID, Quantity: 1, UnitPrice: decimal.NewFromInt(5),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	tests := []struct {
		name   string
		filter []OrderPredicate
		want   []int64
	}{
		{"no predicates", nil, []int64{3, 2, 1}},
		{"by user", []OrderPredicate{OrderUserIs("alice")}, []int64{2, 1}},
		{"by user and method", []OrderPredicate{OrderUserIs("alice"), OrderPaymentMethodIs("COD")}, []int64{1}},
		{"paid", []OrderPredicate{OrderPaidIs(true)}, []int64{3}},
		{"no match", []OrderPredicate{OrderUserIs("carol")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []int64
			require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
				orders, err := q.ListOrders(ctx, tt.filter)
				for _, o := range orders {
					ids = append(ids, o.Order.ID)
					assert.Equal(t, domain.StatusPending, o.StatusName)
				}
				return err
			}))
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause([]OrderPredicate{OrderUserIs("alice"), OrderPaidIs(false)})
	assert.Equal(t, "WHERE o.user_id = $1 AND o.is_paid = $2", where)
	assert.Equal(t, []any{"alice", false}, args)

	where, args = whereClause(nil)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestMemoryStore_Jobs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
		_, err := q.EnqueueJob(ctx, EnqueueJobParams{JobType: "email:order_receipt", Payload: []byte(`{}`), MaxRetries: 1})
		return err
	}))

	var job Job
	require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
		var err error
		job, err = q.ClaimNextJob(ctx, "worker-a")
		return err
	}))
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Equal(t, int32(1), job.Attempts)

	require.NoError(t, s.ExecTx(ctx, func(q Querier) error {
		_, err := q.ClaimNextJob(ctx, "worker-b")
		assert.ErrorIs(t, err, pgx.ErrNoRows)
		return q.FailJob(ctx, FailJobParams{ID: job.ID, ErrorMessage: "smtp down"})
	}))

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobStatusFailed, jobs[0].Status)
	assert.Equal(t, "smtp down", jobs[0].LastError)
}

func TestMemoryStore_AddCartLine(t *testing.T) {
	ctx := context.Background()
	s, bookID := newTestStore(t)

	add := func(qty int32, price string) (AddCartLineRow, error) {
		var row AddCartLineRow
		err := s.ExecTx(ctx, func(q Querier) error {
			cart, err := q.CreateCart(ctx, "user-1")
			if err != nil {
				return err
			}
			row, err = q.AddCartLine(ctx, AddCartLineParams{
				CartID:      cart.ID,
				BookID:      bookID,
				Quantity:    qty,
				UnitPrice:   decimal.RequireFromString(price),
				MaxQuantity: 10,
			})
			return err
		})
		return row, err
	}

	first, err := add(3, "9.99")
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.Equal(t, int32(3), first.Quantity)

	second, err := add(7, "20.00")
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(10), second.Quantity)
	assert.True(t, second.UnitPrice.Equal(decimal.RequireFromString("9.99")))

	_, err = add(1, "9.99")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
