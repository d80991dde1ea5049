package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/email"
	"github.com/dukerupert/bookstore/internal/jobs"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []email.OrderReceiptEmail
	err  error
}

func (f *fakeSender) SendOrderReceipt(ctx context.Context, data email.OrderReceiptEmail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, data)
	return "msg-1", nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestWorker(t *testing.T, sender jobs.ReceiptSender) (*Worker, *repository.MemoryStore, *telemetry.BusinessMetrics) {
	t.Helper()
	store := repository.NewMemoryStore(time.Second)
	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(store, sender, metrics, Config{WorkerID: "worker-test", PollInterval: 10 * time.Millisecond}, logger)
	return w, store, metrics
}

func enqueue(t *testing.T, store *repository.MemoryStore, jobType string, payload []byte, maxRetries int32) {
	t.Helper()
	err := store.ExecTx(context.Background(), func(q repository.Querier) error {
		_, err := q.EnqueueJob(context.Background(), repository.EnqueueJobParams{
			JobType:    jobType,
			Payload:    payload,
			MaxRetries: maxRetries,
		})
		return err
	})
	require.NoError(t, err)
}

func enqueueReceipt(t *testing.T, store *repository.MemoryStore, maxRetries int) {
	t.Helper()
	err := store.ExecTx(context.Background(), func(q repository.Querier) error {
		_, err := jobs.EnqueueOrderReceipt(context.Background(), q, jobs.OrderReceiptPayload{
			OrderID: 7,
			Email:   "ada@example.com",
			Address: "12 St James's Square, London",
			Total:   "19.98",
		}, maxRetries)
		return err
	})
	require.NoError(t, err)
}

func TestWorker_ClaimAndProcess(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	w, store, metrics := newTestWorker(t, sender)
	enqueueReceipt(t, store, 3)

	processed, err := w.claimAndProcess(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, int64(7), sender.sent[0].OrderID)
	assert.Equal(t, "19.98", sender.sent[0].Total)

	list, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, repository.JobStatusCompleted, list[0].Status)
	assert.Equal(t, "worker-test", list[0].WorkerID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(jobs.JobTypeOrderReceipt, "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("order_receipt", "sent")))

	processed, err = w.claimAndProcess(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_FailedJobIsRetriedThenFailed(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{err: errors.New("smtp: connection refused")}
	w, store, metrics := newTestWorker(t, sender)
	enqueueReceipt(t, store, 2)

	processed, err := w.claimAndProcess(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	list, err := store.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.JobStatusPending, list[0].Status)
	assert.Equal(t, "smtp: connection refused", list[0].LastError)
	assert.True(t, list[0].RunAt.After(time.Now()))

	// The retry is scheduled with backoff, so nothing is claimable yet.
	processed, err = w.claimAndProcess(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("order_receipt", "failed")))
}

func TestWorker_LastAttemptMarksFailed(t *testing.T) {
	ctx := context.Background()
	w, store, _ := newTestWorker(t, &fakeSender{err: errors.New("mailbox full")})
	enqueueReceipt(t, store, 1)

	_, err := w.claimAndProcess(ctx)
	require.NoError(t, err)

	list, err := store.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.JobStatusFailed, list[0].Status)
	assert.Equal(t, int32(1), list[0].Attempts)
}

func TestWorker_UnknownJobType(t *testing.T) {
	ctx := context.Background()
	w, store, metrics := newTestWorker(t, &fakeSender{})
	enqueue(t, store, "report:weekly", []byte("{}"), 1)

	processed, err := w.claimAndProcess(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	list, err := store.ListJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.JobStatusFailed, list[0].Status)
	assert.Contains(t, list[0].LastError, "unknown job type")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues("report:weekly", "failed")))
}

func TestWorker_Start(t *testing.T) {
	sender := &fakeSender{}
	w, store, _ := newTestWorker(t, sender)
	enqueueReceipt(t, store, 3)
	enqueueReceipt(t, store, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return sender.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(repository.NewMemoryStore(0), &fakeSender{}, nil, Config{}, nil)

	assert.Regexp(t, `^worker-[0-9a-f]{8}$`, w.config.WorkerID)
	assert.Equal(t, time.Second, w.config.PollInterval)
	assert.Equal(t, 5, w.config.MaxConcurrency)
	assert.Equal(t, 30*time.Second, w.config.JobTimeout)
}
