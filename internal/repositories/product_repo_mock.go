package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
// Stock changes go through per-product locks; mu only guards the maps.
type MockProductRepository struct {
	products map[string]models.Product
	locks    map[string]*sync.Mutex
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *MockProductRepository) ResolveActive(_ context.Context, ids []string) (map[string]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok && p.Active {
			out[id] = p
		}
	}
	return out, nil
}

// GetAll returns all products ordered by name.
func (r *MockProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].Name < productList[j].Name })
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	product.CreatedAt, product.UpdatedAt = now, now
	r.products[product.ID] = *product
	r.locks[product.ID] = &sync.Mutex{}
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(_ context.Context, product *models.Product) error {
	unlock := r.lockProducts([]string{product.ID})
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return apperrors.NotFound("product", product.ID)
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(_ context.Context, id string) error {
	unlock := r.lockProducts([]string{id})
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return apperrors.NotFound("product", id)
	}
	delete(r.products, id)
	return nil
}

// Stock returns the current stock of id, for assertions.
func (r *MockProductRepository) Stock(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.products[id].Stock
}

// lockProducts takes the per-product locks of ids in ascending order and
// returns the function releasing them. Unknown ids get a lock too so a
// concurrent Create cannot slip in between check and write.
func (r *MockProductRepository) lockProducts(ids []string) func() {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	r.mu.Lock()
	held := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		l, ok := r.locks[id]
		if !ok {
			l = &sync.Mutex{}
			r.locks[id] = l
		}
		held = append(held, l)
	}
	r.mu.Unlock()

	for _, l := range held {
		l.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// reserve checks and applies all demands while their locks are held by the caller.
func (r *MockProductRepository) reserve(ctx context.Context, demands []stockDemand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range demands {
		p, ok := r.products[d.productID]
		if !ok || !p.Active {
			return apperrors.NotFound("product", d.productID)
		}
		if p.Stock < d.quantity {
			return apperrors.InsufficientStock(d.productID, p.Stock, d.quantity)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, d := range demands {
		p := r.products[d.productID]
		p.Stock -= d.quantity
		r.products[d.productID] = p
	}
	return nil
}
