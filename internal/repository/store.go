package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bookstore/internal/domain"
)

// SQLSTATE codes raised when a row lock cannot be acquired.
const (
	pgLockNotAvailable   = "55P03"
	pgDeadlockDetected   = "40P01"
	pgCheckViolation     = "23514"
	pgSerializationError = "40001"
)

// PostgresStore runs transactions on a pgx pool. Every transaction sets a
// lock_timeout so row locks are never waited on indefinitely.
type PostgresStore struct {
	*Queries
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		Queries:     New(pool),
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

func (s *PostgresStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return translateTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translateTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// translateTxError turns lock waits that ran out into ErrStockContention.
// A stock CHECK violation means a decrement raced past zero, which is
// reported the same way. Everything else is returned unchanged.
func translateTxError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationError:
		return fmt.Errorf("%w: %s", domain.ErrStockContention, pgErr.Message)
	case pgCheckViolation:
		if pgErr.TableName == "stock" {
			return fmt.Errorf("%w: %s", domain.ErrStockContention, pgErr.Message)
		}
	}
	return err
}

// Ping verifies the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
