package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/domain"
	"github.com/dukerupert/bookstore/internal/repository"
)

func TestStockService_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements available stock", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		require.NoError(t, env.stock.Reserve(ctx, book, 3))
		assert.Equal(t, 2, env.quantityOf(t, book))
	})

	t.Run("reserves the last unit", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 1)

		require.NoError(t, env.stock.Reserve(ctx, book, 1))
		assert.Equal(t, 0, env.quantityOf(t, book))
	})

	t.Run("fails without mutation when short", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 2)

		err := env.stock.Reserve(ctx, book, 3)
		require.ErrorIs(t, err, domain.ErrInsufficientStock)

		var ise *domain.InsufficientStockError
		require.True(t, errors.As(err, &ise))
		assert.Equal(t, book, ise.BookID)
		assert.Equal(t, 3, ise.Requested)
		assert.Equal(t, 2, ise.Available)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, 2, env.quantityOf(t, book))
	})

	t.Run("missing stock row holds nothing", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", -1)

		err := env.stock.Reserve(ctx, book, 1)
		var ise *domain.InsufficientStockError
		require.True(t, errors.As(err, &ise))
		assert.Equal(t, 0, ise.Available)
		assert.Equal(t, 0, env.quantityOf(t, book))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		assert.ErrorIs(t, env.stock.Reserve(ctx, book, 0), domain.ErrInvalidQuantity)
		assert.Equal(t, 5, env.quantityOf(t, book))
	})
}

func TestStockService_Reserve_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.addBook(t, "Dune", "9.99", 3)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := env.stock.Reserve(ctx, book, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, rejected)
	assert.Equal(t, 0, env.quantityOf(t, book))
}

func TestStockService_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("adds back to existing stock", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 1)

		require.NoError(t, env.stock.Release(ctx, book, 4))
		assert.Equal(t, 5, env.quantityOf(t, book))
	})

	t.Run("creates missing stock row", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", -1)

		require.NoError(t, env.stock.Release(ctx, book, 2))
		assert.Equal(t, 2, env.quantityOf(t, book))
	})

	t.Run("unknown book", func(t *testing.T) {
		env := newTestEnv(t)
		assert.ErrorIs(t, env.stock.Release(ctx, 999, 1), domain.ErrBookNotFound)
	})
}

func TestStockService_SetQuantity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.addBook(t, "Dune", "9.99", 1)

	level, err := env.stock.SetQuantity(ctx, book, 12)
	require.NoError(t, err)
	assert.Equal(t, domain.StockLevel{BookID: book, Title: "Dune", Quantity: 12}, *level)
	assert.Equal(t, 12, env.quantityOf(t, book))

	_, err = env.stock.SetQuantity(ctx, book, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidStockQuantity)
	assert.Equal(t, 12, env.quantityOf(t, book))

	_, err = env.stock.SetQuantity(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestStockService_LowStock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dune := env.addBook(t, "Dune", "9.99", 2)
	emma := env.addBook(t, "Emma", "5.00", 0)
	env.addBook(t, "Ulysses", "12.00", 40)

	levels, err := env.stock.LowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, emma, levels[0].BookID)
	assert.Equal(t, 0, levels[0].Quantity)
	assert.Equal(t, dune, levels[1].BookID)

	_, err = env.stock.LowStock(ctx, -1)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestDecrementClamped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	book := env.addBook(t, "Dune", "9.99", 2)
	unstocked := env.addBook(t, "Emma", "5.00", -1)

	var takenShort, takenMissing int
	err := env.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		if takenShort, err = decrementClamped(ctx, q, book, 5); err != nil {
			return err
		}
		takenMissing, err = decrementClamped(ctx, q, unstocked, 1)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 2, takenShort)
	assert.Equal(t, 0, takenMissing)
	assert.Equal(t, 0, env.quantityOf(t, book))
}
