package repository

import (
	"context"
)

const jobColumns = `id, job_type, payload, status, attempts, max_retries, last_error, worker_id, run_at, created_at`

func scanJob(row rowScanner) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.JobType,
		&i.Payload,
		&i.Status,
		&i.Attempts,
		&i.MaxRetries,
		&i.LastError,
		&i.WorkerID,
		&i.RunAt,
		&i.CreatedAt,
	)
	return i, err
}

const enqueueJob = `-- name: EnqueueJob :one
INSERT INTO jobs (job_type, payload, max_retries)
VALUES ($1, $2, $3)
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	JobType    string
	Payload    []byte
	MaxRetries int32
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	row := q.db.QueryRow(ctx, enqueueJob, arg.JobType, arg.Payload, arg.MaxRetries)
	return scanJob(row)
}

const claimNextJob = `-- name: ClaimNextJob :one
UPDATE jobs
SET status = 'running', attempts = attempts + 1, worker_id = $1, updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending' AND run_at <= NOW()
    ORDER BY run_at, id
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns

// ClaimNextJob marks the oldest runnable job as running for workerID.
// Jobs locked by other workers are skipped.
func (q *Queries) ClaimNextJob(ctx context.Context, workerID string) (Job, error) {
	row := q.db.QueryRow(ctx, claimNextJob, workerID)
	return scanJob(row)
}

const completeJob = `-- name: CompleteJob :exec
UPDATE jobs
SET status = 'completed', updated_at = NOW()
WHERE id = $1
`

func (q *Queries) CompleteJob(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, completeJob, id)
	return err
}

const failJob = `-- name: FailJob :exec
UPDATE jobs
SET status = CASE WHEN attempts >= max_retries THEN 'failed' ELSE 'pending' END,
    last_error = $2,
    run_at = NOW() + (attempts * INTERVAL '30 seconds'),
    updated_at = NOW()
WHERE id = $1
`

type FailJobParams struct {
	ID           int64
	ErrorMessage string
}

// FailJob reschedules the job with linear backoff, or marks it failed once
// its retries are used up.
func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) error {
	_, err := q.db.Exec(ctx, failJob, arg.ID, arg.ErrorMessage)
	return err
}
