package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// Commits decrement stock in the paired MockProductRepository.
type MockOrderRepository struct {
	orders   map[string]models.Order
	products *MockProductRepository
	mu       sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository(products *MockProductRepository) *MockOrderRepository {
	return &MockOrderRepository{
		orders:   make(map[string]models.Order),
		products: products,
	}
}

// Commit holds the locks of every referenced product for its whole duration.
func (r *MockOrderRepository) Commit(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	demands, err := aggregateQuantities(order.Items)
	if err != nil {
		return err
	}
	prepareOrder(order, time.Now().UTC())

	ids := make([]string, len(demands))
	for i, d := range demands {
		ids[i] = d.productID
	}

	unlock := r.products.lockProducts(ids)
	defer unlock()

	if err := r.products.reserve(ctx, demands); err != nil {
		return err
	}

	r.mu.Lock()
	r.orders[order.ID] = cloneOrder(*order)
	r.mu.Unlock()
	return nil
}

// GetByID returns an order by its ID if scope may see it.
func (r *MockOrderRepository) GetByID(_ context.Context, id string, scope models.Scope) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok || !scope.Allows(order.BuyerID) {
		return nil, apperrors.NotFound("order", id)
	}
	out := cloneOrder(order)
	return &out, nil
}

// List returns one page of the orders visible to scope, newest first.
func (r *MockOrderRepository) List(_ context.Context, page models.Pagination, scope models.Scope) (models.OrderPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visible := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if scope.Allows(o.BuyerID) {
			visible = append(visible, o)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].CreatedAt.After(visible[j].CreatedAt)
		}
		return visible[i].ID > visible[j].ID
	})

	result := models.OrderPage{Items: []models.Order{}, Page: page.Page, Limit: page.Limit, Total: int64(len(visible))}
	start := page.Offset()
	if start >= len(visible) {
		return result, nil
	}
	end := start + page.Limit
	if end > len(visible) {
		end = len(visible)
	}
	for _, o := range visible[start:end] {
		result.Items = append(result.Items, cloneOrder(o))
	}
	return result, nil
}

// UpdateStatus updates the status of an order.
func (r *MockOrderRepository) UpdateStatus(_ context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}
