package app

import (
	"context"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"
	"toko-orders/internal/repositories"
	"toko-orders/internal/services"

	"go.uber.org/zap"
)

var demoProducts = []models.Product{
	{ID: "7d4c2f0e-5b1a-4c8e-9f3d-1a2b3c4d5e01", Name: "Laptop", Description: "High performance laptop", Price: 1500000, Stock: 10, Active: true},
	{ID: "7d4c2f0e-5b1a-4c8e-9f3d-1a2b3c4d5e02", Name: "Keyboard", Description: "Mechanical keyboard", Price: 75000, Stock: 25, Active: true},
	{ID: "7d4c2f0e-5b1a-4c8e-9f3d-1a2b3c4d5e03", Name: "Mouse", Description: "Ergonomic wireless mouse", Price: 25000, Stock: 50, Active: true},
}

// Seed inserts the demo catalog, skipping products that already exist. An
// admin account is created only when adminPassword is set.
func Seed(ctx context.Context, products repositories.ProductRepository, users repositories.UserRepository, auth *services.AuthService, adminPassword string, log *zap.Logger) error {
	for _, p := range demoProducts {
		if _, err := products.GetByID(ctx, p.ID); err == nil {
			continue
		} else if !apperrors.IsNotFound(err) {
			return err
		}

		product := p
		if err := products.Create(ctx, &product); err != nil {
			return err
		}
		log.Info("seeded product", zap.String("product_id", product.ID), zap.String("name", product.Name))
	}

	if adminPassword == "" {
		return nil
	}
	if _, err := users.GetByUsername(ctx, "admin"); err == nil {
		return nil
	}

	admin := &models.User{
		Username: "admin",
		Email:    "admin@toko.local",
		Password: adminPassword,
		Role:     models.RoleAdmin,
	}
	if err := auth.RegisterUser(ctx, admin); err != nil {
		return err
	}
	log.Info("seeded admin user", zap.String("user_id", admin.ID))
	return nil
}
