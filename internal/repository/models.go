package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

type Genre struct {
	ID   int64
	Name string
}

type Book struct {
	ID      int64
	Title   string
	Author  string
	Price   decimal.Decimal
	Image   string
	GenreID int64
}

type Stock struct {
	ID        int64
	BookID    int64
	Quantity  int32
	UpdatedAt time.Time
}

type Cart struct {
	ID        int64
	UserID    string
	CreatedAt time.Time
}

type CartLine struct {
	ID        int64
	CartID    int64
	BookID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

type OrderStatus struct {
	ID   int32
	Name string
}

type Order struct {
	ID               int64
	UserID           string
	StatusID         int32
	IsPaid           bool
	PaymentMethod    string
	Name             string
	Email            string
	MobileNumber     string
	Address          string
	PaymentSessionID string
	// StockApplied is set once the order's lines have been taken from stock.
	// Unlike IsPaid it is never cleared.
	StockApplied     bool
	CreatedAt        time.Time
}

type OrderLine struct {
	ID        int64
	OrderID   int64
	BookID    int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

type Job struct {
	ID         int64
	JobType    string
	Payload    []byte
	Status     string
	Attempts   int32
	MaxRetries int32
	LastError  string
	WorkerID   string
	RunAt      time.Time
	CreatedAt  time.Time
}

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
