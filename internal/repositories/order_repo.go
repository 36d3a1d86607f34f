package repositories

import (
	"context"
	"math"
	"sort"
	"time"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order persistence.
type OrderRepository interface {
	// Commit inserts the order with its items and decrements the stock of every
	// referenced product, all or nothing. Stock is checked against the stored
	// value at commit time, never against an earlier snapshot.
	Commit(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string, scope models.Scope) (*models.Order, error)
	List(ctx context.Context, page models.Pagination, scope models.Scope) (models.OrderPage, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
}

type stockDemand struct {
	productID string
	quantity  int
}

// aggregateQuantities sums quantities per product, ordered by product id so
// that row locks are always taken in the same order. A non-positive quantity
// or a per-product sum that overflows int is rejected.
func aggregateQuantities(items []models.OrderItem) ([]stockDemand, error) {
	totals := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, apperrors.Validation("items", "quantity for product %s must be positive, got %d", it.ProductID, it.Quantity)
		}
		if it.Quantity > math.MaxInt-totals[it.ProductID] {
			return nil, apperrors.Validation("items", "total quantity for product %s overflows", it.ProductID)
		}
		totals[it.ProductID] += it.Quantity
	}
	out := make([]stockDemand, 0, len(totals))
	for id, qty := range totals {
		out = append(out, stockDemand{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out, nil
}

func prepareOrder(order *models.Order, now time.Time) {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
}
