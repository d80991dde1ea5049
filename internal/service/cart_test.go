package service

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bookstore/internal/domain"
)

func TestCartService_AddLine(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a line at the catalog price", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		view, err := env.cart.AddLine(ctx, "u1", book, 2)
		require.NoError(t, err)
		require.Len(t, view.Lines, 1)

		line := view.Lines[0]
		assert.Equal(t, book, line.BookID)
		assert.Equal(t, "Dune", line.Title)
		assert.Equal(t, "Fiction", line.Genre)
		assert.Equal(t, 2, line.Quantity)
		assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("9.99")))
		assert.True(t, view.Total.Equal(decimal.RequireFromString("19.98")))
		assert.Equal(t, 2, view.ItemCount)
	})

	t.Run("increments an existing line and keeps its price", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "10.00", 5)

		_, err := env.cart.AddLine(ctx, "u1", book, 1)
		require.NoError(t, err)
		require.NoError(t, env.store.SetBookPrice(ctx, book, decimal.RequireFromString("20.00")))

		view, err := env.cart.AddLine(ctx, "u1", book, 2)
		require.NoError(t, err)
		require.Len(t, view.Lines, 1)
		assert.Equal(t, 3, view.Lines[0].Quantity)
		assert.True(t, view.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
		assert.True(t, view.Total.Equal(decimal.RequireFromString("30.00")))
	})

	t.Run("does not touch stock", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 1)

		_, err := env.cart.AddLine(ctx, "u1", book, 7)
		require.NoError(t, err)
		assert.Equal(t, 1, env.quantityOf(t, book))
	})

	t.Run("carts are per user", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		_, err := env.cart.AddLine(ctx, "u1", book, 1)
		require.NoError(t, err)

		other, err := env.cart.GetCart(ctx, "u2")
		require.NoError(t, err)
		assert.True(t, other.IsEmpty())
	})

	t.Run("rejects an increment past the line limit", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		_, err := env.cart.AddLine(ctx, "u1", book, 1)
		require.NoError(t, err)

		_, err = env.cart.AddLine(ctx, "u1", book, domain.MaxLineQuantity)
		assert.ErrorIs(t, err, domain.ErrQuantityTooLarge)

		view, err := env.cart.GetCart(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, view.Lines, 1)
		assert.Equal(t, 1, view.Lines[0].Quantity)
		assert.Equal(t, 1, view.ItemCount)
	})

	t.Run("fills a line up to the limit", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		_, err := env.cart.AddLine(ctx, "u1", book, 1)
		require.NoError(t, err)

		view, err := env.cart.AddLine(ctx, "u1", book, domain.MaxLineQuantity-1)
		require.NoError(t, err)
		assert.Equal(t, domain.MaxLineQuantity, view.Lines[0].Quantity)
	})

	errTests := []struct {
		name    string
		userID  string
		bookID  int64
		qty     int
		wantErr error
	}{
		{"missing user", "", 1, 1, domain.ErrUserRequired},
		{"zero quantity", "u1", 1, 0, domain.ErrInvalidQuantity},
		{"negative quantity", "u1", 1, -2, domain.ErrInvalidQuantity},
		{"unknown book", "u1", 999, 1, domain.ErrBookNotFound},
		{"quantity above the line limit", "u1", 1, domain.MaxLineQuantity + 1, domain.ErrQuantityTooLarge},
		{"quantity past int32", "u1", 1, math.MaxInt32, domain.ErrQuantityTooLarge},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.addBook(t, "Dune", "9.99", 5)

			_, err := env.cart.AddLine(ctx, tt.userID, tt.bookID, tt.qty)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCartService_RemoveLine(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements by one", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)
		_, err := env.cart.AddLine(ctx, "u1", book, 3)
		require.NoError(t, err)

		view, err := env.cart.RemoveLine(ctx, "u1", book)
		require.NoError(t, err)
		require.Len(t, view.Lines, 1)
		assert.Equal(t, 2, view.Lines[0].Quantity)
	})

	t.Run("deletes the line at zero", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)
		_, err := env.cart.AddLine(ctx, "u1", book, 1)
		require.NoError(t, err)

		view, err := env.cart.RemoveLine(ctx, "u1", book)
		require.NoError(t, err)
		assert.True(t, view.IsEmpty())
		assert.True(t, view.Total.IsZero())
	})

	t.Run("no cart", func(t *testing.T) {
		env := newTestEnv(t)
		book := env.addBook(t, "Dune", "9.99", 5)

		_, err := env.cart.RemoveLine(ctx, "u1", book)
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
	})

	t.Run("book not in cart", func(t *testing.T) {
		env := newTestEnv(t)
		dune := env.addBook(t, "Dune", "9.99", 5)
		emma := env.addBook(t, "Emma", "5.00", 5)
		_, err := env.cart.AddLine(ctx, "u1", dune, 1)
		require.NoError(t, err)

		_, err = env.cart.RemoveLine(ctx, "u1", emma)
		assert.ErrorIs(t, err, domain.ErrCartLineNotFound)
	})
}

func TestCartService_Clear(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dune := env.addBook(t, "Dune", "9.99", 5)
	emma := env.addBook(t, "Emma", "5.00", 5)

	_, err := env.cart.AddLine(ctx, "u1", dune, 2)
	require.NoError(t, err)
	_, err = env.cart.AddLine(ctx, "u1", emma, 1)
	require.NoError(t, err)

	count, err := env.cart.ItemCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, env.cart.Clear(ctx, "u1"))
	require.NoError(t, env.cart.Clear(ctx, "u1"))
	require.NoError(t, env.cart.Clear(ctx, "nobody"))

	count, err = env.cart.ItemCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, env.cart.Clear(ctx, ""), domain.ErrUserRequired)
}

func TestCartService_GetCart_Empty(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.cart.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", view.UserID)
	assert.True(t, view.IsEmpty())
	assert.NotNil(t, view.Lines)
	assert.Equal(t, 0, view.ItemCount)
}
