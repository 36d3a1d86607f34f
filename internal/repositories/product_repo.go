package repositories

import (
	"context"

	"toko-orders/internal/models"
)

// ProductRepository defines the interface for catalog data access.
type ProductRepository interface {
	// ResolveActive returns snapshots of the active products among ids.
	// Unknown and inactive ids are absent from the result.
	ResolveActive(ctx context.Context, ids []string) (map[string]models.Product, error)
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
