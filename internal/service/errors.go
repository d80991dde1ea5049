package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/repository"
)

// isNoRows reports whether err means the queried row does not exist.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// statusMissing reports a status enumeration without a required entry.
func statusMissing(name string) error {
	return fmt.Errorf("%w: %q", domain.ErrStatusConfigurationMissing, name)
}

// lookupStatus resolves a required status by name.
func lookupStatus(ctx context.Context, q repository.Querier, name string) (repository.OrderStatus, error) {
	status, err := q.GetOrderStatusByName(ctx, name)
	if err != nil {
		if isNoRows(err) {
			return repository.OrderStatus{}, statusMissing(name)
		}
		return repository.OrderStatus{}, fmt.Errorf("failed to get order status %q: %w", name, err)
	}
	return status, nil
}
