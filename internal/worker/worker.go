package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/bookstore/internal/jobs"
	"github.com/dukerupert/bookstore/internal/repository"
	"github.com/dukerupert/bookstore/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// JobTimeout bounds a single job run
	JobTimeout time.Duration
}

// Worker processes background jobs
type Worker struct {
	config  Config
	store   repository.Store
	sender  jobs.ReceiptSender
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
}

// NewWorker creates a new background job worker
func NewWorker(
	store repository.Store,
	sender jobs.ReceiptSender,
	metrics *telemetry.BusinessMetrics,
	config Config,
	logger *slog.Logger,
) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config:  config,
		store:   store,
		sender:  sender,
		metrics: metrics,
		logger:  logger,
	}
}

// Start begins processing jobs until the context is cancelled. In-flight
// jobs are waited for before it returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer func() { <-sem }()
					// A finished job is picked up again without waiting a tick.
					for {
						processed, err := w.claimAndProcess(ctx)
						if err != nil || !processed || ctx.Err() != nil {
							return
						}
					}
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

// claimAndProcess claims and processes a single job. It reports whether a
// job was claimed.
func (w *Worker) claimAndProcess(ctx context.Context) (bool, error) {
	var job repository.Job
	err := w.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		job, err = q.ClaimNextJob(ctx, w.config.WorkerID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		w.logger.Error("failed to claim job", "worker_id", w.config.WorkerID, "error", err)
		return false, err
	}

	w.logger.Info("processing job",
		"job_id", job.ID,
		"job_type", job.JobType,
		"attempt", job.Attempts,
	)

	// Job bookkeeping outlives a shutdown signal that arrives mid-job.
	bookkeeping := context.WithoutCancel(ctx)

	if err := w.processJob(ctx, &job); err != nil {
		w.logger.Error("job failed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"attempt", job.Attempts,
			"max_retries", job.MaxRetries,
			"error", err,
		)
		w.record(job.JobType, "failed")

		// Mark job as failed (will retry or mark as failed based on attempts)
		if ferr := w.store.ExecTx(bookkeeping, func(q repository.Querier) error {
			return q.FailJob(bookkeeping, repository.FailJobParams{ID: job.ID, ErrorMessage: err.Error()})
		}); ferr != nil {
			w.logger.Error("failed to record job failure", "job_id", job.ID, "error", ferr)
		}
		if job.Attempts >= job.MaxRetries {
			telemetry.CaptureError(err, map[string]interface{}{"job_id": job.ID, "job_type": job.JobType})
		}
		return true, nil
	}

	w.logger.Info("job completed",
		"job_id", job.ID,
		"job_type", job.JobType,
	)
	w.record(job.JobType, "completed")

	if err := w.store.ExecTx(bookkeeping, func(q repository.Querier) error {
		return q.CompleteJob(bookkeeping, job.ID)
	}); err != nil {
		w.logger.Error("failed to mark job complete", "job_id", job.ID, "error", err)
	}
	return true, nil
}

// processJob processes a single job
func (w *Worker) processJob(ctx context.Context, job *repository.Job) error {
	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	if jobs.IsEmailJob(job.JobType) {
		return jobs.ProcessEmailJob(jobCtx, job, w.sender)
	}

	return fmt.Errorf("unknown job type: %s", job.JobType)
}

func (w *Worker) record(jobType, result string) {
	if w.metrics == nil {
		return
	}
	w.metrics.JobsProcessed.WithLabelValues(jobType, result).Inc()
	if jobs.IsEmailJob(jobType) {
		sent := "sent"
		if result == "failed" {
			sent = "failed"
		}
		w.metrics.Notifications.WithLabelValues("order_receipt", sent).Inc()
	}
}
