package repositories_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"
	"toko-orders/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockOrderRepository_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	products := repositories.NewMockProductRepository()
	orders := repositories.NewMockOrderRepository(products)

	const stock, attempts = 7, 100
	hot := seedProduct(t, products, "Hot", 100, stock, true)
	cold := seedProduct(t, products, "Cold", 100, attempts, true)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := orders.Commit(ctx, newOrder("buyer", line(cold, 1), line(hot, 1)))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, apperrors.IsConflict(err), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, successes)
	assert.Equal(t, 0, products.Stock(hot.ID))
	assert.Equal(t, attempts-stock, products.Stock(cold.ID), "failed orders must not decrement other lines")
}

func TestMockOrderRepository_Visibility(t *testing.T) {
	ctx := context.Background()
	products := repositories.NewMockProductRepository()
	orders := repositories.NewMockOrderRepository(products)
	p := seedProduct(t, products, "Mouse", 2500, 10, true)

	mine := newOrder("alice", line(p, 1))
	require.NoError(t, orders.Commit(ctx, mine))
	require.NoError(t, orders.Commit(ctx, newOrder("bob", line(p, 1))))

	_, err := orders.GetByID(ctx, mine.ID, models.OwnerScope("bob"))
	assert.True(t, apperrors.IsNotFound(err))

	page, err := orders.List(ctx, models.Pagination{Page: 1, Limit: 10}, models.OwnerScope("alice"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, mine.ID, page.Items[0].ID)

	page, err = orders.List(ctx, models.Pagination{Page: 5, Limit: 10}, models.AdminScope())
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Empty(t, page.Items)
}

func TestMockOrderRepository_CommitUnknownProduct(t *testing.T) {
	products := repositories.NewMockProductRepository()
	orders := repositories.NewMockOrderRepository(products)

	err := orders.Commit(context.Background(), newOrder("alice", models.OrderItem{ProductID: "ghost", Quantity: 1}))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMockOrderRepository_CommitRejectsQuantityOverflow(t *testing.T) {
	products := repositories.NewMockProductRepository()
	orders := repositories.NewMockOrderRepository(products)
	p := seedProduct(t, products, "Sample", 0, 10, true)

	err := orders.Commit(context.Background(), newOrder("buyer", line(p, 1), line(p, math.MaxInt)))
	assert.True(t, apperrors.IsValidation(err), "got %v", err)
	assert.Equal(t, 10, products.Stock(p.ID))
}
