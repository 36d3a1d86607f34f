package services

import (
	"fmt"
	"math"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"
)

// PriceOrder turns requested items into priced order lines using catalog
// snapshots. It has no side effects. Items are checked in the given order and
// the first offending item decides the error. Stock is checked against the
// quantity requested so far for the same product.
func PriceOrder(items []models.ItemRequest, catalog map[string]models.Product) ([]models.OrderItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, apperrors.Validation("items", "at least one item is required")
	}

	lines := make([]models.OrderItem, 0, len(items))
	requested := make(map[string]int, len(items))
	var total int64

	for i, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, 0, apperrors.NotFound("product", item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, 0, apperrors.Validation(fmt.Sprintf("items[%d].quantity", i), "must be positive, got %d", item.Quantity)
		}

		already := requested[item.ProductID]
		if item.Quantity > product.Stock-already {
			return nil, 0, apperrors.InsufficientStock(product.ID, product.Stock, saturatingAdd(already, item.Quantity))
		}
		requested[item.ProductID] = already + item.Quantity

		if product.Price > 0 && int64(item.Quantity) > math.MaxInt64/product.Price {
			return nil, 0, apperrors.Validation(fmt.Sprintf("items[%d].quantity", i), "line total overflows")
		}
		lineTotal := product.Price * int64(item.Quantity)
		if total > math.MaxInt64-lineTotal {
			return nil, 0, apperrors.Validation("items", "order total overflows")
		}
		total += lineTotal

		lines = append(lines, models.OrderItem{
			ProductID: product.ID,
			Position:  i,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
		})
	}

	return lines, total, nil
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
