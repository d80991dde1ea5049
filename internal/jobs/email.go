package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/bookstore/internal/email"
	"github.com/dukerupert/bookstore/internal/repository"
)

// Job type constants for email jobs
const (
	JobTypeOrderReceipt = "email:order_receipt"
)

// DefaultMaxRetries is used when an enqueue call passes no retry budget.
const DefaultMaxRetries = 3

// OrderReceiptPayload represents the payload for an order receipt email job.
// Amounts are decimal strings so the payload round-trips exactly.
type OrderReceiptPayload struct {
	OrderID      int64             `json:"order_id"`
	Email        string            `json:"email"`
	CustomerName string            `json:"customer_name"`
	Address      string            `json:"address"`
	PlacedAt     time.Time         `json:"placed_at"`
	Lines        []ReceiptLineData `json:"lines"`
	Total        string            `json:"total"`
	Currency     string            `json:"currency"`
}

// ReceiptLineData represents a line item in a receipt email
type ReceiptLineData struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

// ReceiptSender renders and delivers receipts. Implemented by *email.Service.
type ReceiptSender interface {
	SendOrderReceipt(ctx context.Context, data email.OrderReceiptEmail) (string, error)
}

// EnqueueOrderReceipt enqueues an order receipt email job
func EnqueueOrderReceipt(ctx context.Context, q repository.Querier, payload OrderReceiptPayload, maxRetries int) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	job, err := q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:    JobTypeOrderReceipt,
		Payload:    payloadJSON,
		MaxRetries: int32(maxRetries),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue order receipt: %w", err)
	}

	return job.ID, nil
}

// IsEmailJob checks if a job type is an email job
func IsEmailJob(jobType string) bool {
	return jobType == JobTypeOrderReceipt
}

// ProcessEmailJob processes an email job based on its type
func ProcessEmailJob(ctx context.Context, job *repository.Job, sender ReceiptSender) error {
	switch job.JobType {
	case JobTypeOrderReceipt:
		var payload OrderReceiptPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal order receipt payload: %w", err)
		}

		lines := make([]email.ReceiptLine, len(payload.Lines))
		for i, l := range payload.Lines {
			lines[i] = email.ReceiptLine{
				Title:     l.Title,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Subtotal:  l.Subtotal,
			}
		}

		_, err := sender.SendOrderReceipt(ctx, email.OrderReceiptEmail{
			OrderID:      payload.OrderID,
			Email:        payload.Email,
			CustomerName: payload.CustomerName,
			Address:      payload.Address,
			PlacedAt:     payload.PlacedAt,
			Lines:        lines,
			Total:        payload.Total,
			Currency:     payload.Currency,
		})
		return err

	default:
		return fmt.Errorf("unknown email job type: %s", job.JobType)
	}
}
