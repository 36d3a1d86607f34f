package repositories_test

import (
	"context"
	"fmt"
	"testing"

	"toko-orders/internal/models"
	"toko-orders/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := repositories.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedProduct(t *testing.T, repo repositories.ProductRepository, name string, price int64, stock int, active bool) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: price, Stock: stock, Active: active}
	require.NoError(t, repo.Create(context.Background(), &p))
	return p
}

func line(p models.Product, qty int) models.OrderItem {
	return models.OrderItem{ProductID: p.ID, Quantity: qty, UnitPrice: p.Price, LineTotal: p.Price * int64(qty)}
}

func newOrder(buyerID string, items ...models.OrderItem) *models.Order {
	var total int64
	for i := range items {
		items[i].Position = i
		total += items[i].LineTotal
	}
	return &models.Order{BuyerID: buyerID, Total: total, Items: items}
}
