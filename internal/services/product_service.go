package services

import (
	"context"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"
	"toko-orders/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := checkProduct(product); err != nil {
		return err
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct replaces the mutable fields of an existing product.
// Orders already placed keep the price they were placed at.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		return apperrors.Validation("id", "is required")
	}
	if err := checkProduct(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func checkProduct(p *models.Product) error {
	if p.Price < 0 {
		return apperrors.Validation("price", "must not be negative")
	}
	if p.Stock < 0 {
		return apperrors.Validation("stock", "must not be negative")
	}
	return nil
}
