package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderEvent(t *testing.T) {
	a := NewOrderEvent(SubjectOrderCreated, 1, "u1", "COD", "19.98")
	b := NewOrderEvent(SubjectOrderCreated, 1, "u1", "COD", "19.98")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, SubjectOrderCreated, a.Type)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, NewOrderEvent(SubjectOrderPaid, 2, "u1", "Online", "5.00")))
	require.Len(t, r.Events(), 1)
	assert.Equal(t, int64(2), r.Events()[0].OrderID)

	r.Err = errors.New("down")
	assert.Error(t, r.Publish(ctx, NewOrderEvent(SubjectOrderPaid, 3, "u1", "Online", "5.00")))
	assert.Len(t, r.Events(), 1)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), OrderEvent{}))
}
