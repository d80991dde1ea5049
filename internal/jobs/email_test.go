package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/email"
	"github.com/dukerupert/bookstore/internal/repository"
)

type fakeReceiptSender struct {
	got []email.OrderReceiptEmail
}

func (f *fakeReceiptSender) SendOrderReceipt(ctx context.Context, data email.OrderReceiptEmail) (string, error) {
	f.got = append(f.got, data)
	return "id", nil
}

func TestEnqueueOrderReceipt(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(time.Second)

	payload := OrderReceiptPayload{
		OrderID: 7,
		Email:   "ada@example.com",
		Lines:   []ReceiptLineData{{Title: "Dune", Quantity: 1, UnitPrice: "9.99", Subtotal: "9.99"}},
		Total:   "9.99",
	}

	var id int64
	err := store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		id, err = EnqueueOrderReceipt(ctx, q, payload, 0)
		return err
	})
	require.NoError(t, err)

	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)
	assert.Equal(t, JobTypeOrderReceipt, jobs[0].JobType)
	assert.Equal(t, int32(DefaultMaxRetries), jobs[0].MaxRetries)

	var decoded OrderReceiptPayload
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &decoded))
	assert.Equal(t, payload.OrderID, decoded.OrderID)
	assert.Equal(t, "9.99", decoded.Total)
}

func TestProcessEmailJob(t *testing.T) {
	t.Run("sends order receipt", func(t *testing.T) {
		sender := &fakeReceiptSender{}
		payload, err := json.Marshal(OrderReceiptPayload{
			OrderID: 3,
			Email:   "ada@example.com",
			Address: "1 Main St",
			Lines:   []ReceiptLineData{{Title: "Emma", Quantity: 2, UnitPrice: "5.00", Subtotal: "10.00"}},
			Total:   "10.00",
		})
		require.NoError(t, err)

		err = ProcessEmailJob(context.Background(), &repository.Job{JobType: JobTypeOrderReceipt, Payload: payload}, sender)
		require.NoError(t, err)

		require.Len(t, sender.got, 1)
		assert.Equal(t, int64(3), sender.got[0].OrderID)
		assert.Equal(t, "1 Main St", sender.got[0].Address)
		assert.Equal(t, "Emma", sender.got[0].Lines[0].Title)
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		err := ProcessEmailJob(context.Background(), &repository.Job{JobType: JobTypeOrderReceipt, Payload: []byte("{")}, &fakeReceiptSender{})
		assert.Error(t, err)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		err := ProcessEmailJob(context.Background(), &repository.Job{JobType: "email:unknown"}, &fakeReceiptSender{})
		assert.Error(t, err)
		assert.False(t, IsEmailJob("email:unknown"))
	})
}
