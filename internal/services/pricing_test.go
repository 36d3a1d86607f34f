package services_test

import (
	"errors"
	"math"
	"testing"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"
	"toko-orders/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() map[string]models.Product {
	return map[string]models.Product{
		"p": {ID: "p", Name: "Kopi", Price: 10000, Stock: 5, Active: true},
		"q": {ID: "q", Name: "Teh", Price: 2500, Stock: 1, Active: true},
	}
}

func TestPriceOrder(t *testing.T) {
	lines, total, err := services.PriceOrder([]models.ItemRequest{
		{ProductID: "q", Quantity: 1},
		{ProductID: "p", Quantity: 2},
	}, testCatalog())

	require.NoError(t, err)
	assert.Equal(t, int64(22500), total)
	require.Len(t, lines, 2)
	assert.Equal(t, "q", lines[0].ProductID)
	assert.Equal(t, 0, lines[0].Position)
	assert.Equal(t, int64(2500), lines[0].LineTotal)
	assert.Equal(t, "p", lines[1].ProductID)
	assert.Equal(t, 1, lines[1].Position)
	assert.Equal(t, int64(10000), lines[1].UnitPrice)
	assert.Equal(t, int64(20000), lines[1].LineTotal)
}

func TestPriceOrder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		items []models.ItemRequest
		check func(error) bool
	}{
		{"empty list", nil, apperrors.IsValidation},
		{"unknown product", []models.ItemRequest{{ProductID: "nope", Quantity: 1}}, apperrors.IsNotFound},
		{"zero quantity", []models.ItemRequest{{ProductID: "p", Quantity: 0}}, apperrors.IsValidation},
		{"negative quantity", []models.ItemRequest{{ProductID: "p", Quantity: -3}}, apperrors.IsValidation},
		{"over stock", []models.ItemRequest{{ProductID: "p", Quantity: 6}}, apperrors.IsConflict},
		{"repeated product over stock", []models.ItemRequest{{ProductID: "p", Quantity: 3}, {ProductID: "p", Quantity: 3}}, apperrors.IsConflict},
		{"first offender unknown", []models.ItemRequest{{ProductID: "nope", Quantity: 1}, {ProductID: "p", Quantity: 0}}, apperrors.IsNotFound},
		{"first offender quantity", []models.ItemRequest{{ProductID: "p", Quantity: 0}, {ProductID: "nope", Quantity: 1}}, apperrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, total, err := services.PriceOrder(tt.items, testCatalog())
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error class: %v", err)
			assert.Nil(t, lines)
			assert.Zero(t, total)
		})
	}
}

func TestPriceOrder_ConflictDetails(t *testing.T) {
	_, _, err := services.PriceOrder([]models.ItemRequest{
		{ProductID: "p", Quantity: 3},
		{ProductID: "p", Quantity: 4},
	}, testCatalog())

	var conflict *apperrors.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "p", conflict.ProductID)
	assert.Equal(t, 5, conflict.Available)
	assert.Equal(t, 7, conflict.Requested)
}

func TestPriceOrder_Overflow(t *testing.T) {
	catalog := map[string]models.Product{
		"big": {ID: "big", Price: math.MaxInt64 / 2, Stock: 10, Active: true},
	}

	_, _, err := services.PriceOrder([]models.ItemRequest{{ProductID: "big", Quantity: 3}}, catalog)
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = services.PriceOrder([]models.ItemRequest{
		{ProductID: "big", Quantity: 1},
		{ProductID: "big", Quantity: 1},
		{ProductID: "big", Quantity: 1},
	}, catalog)
	assert.True(t, apperrors.IsValidation(err))
}

func TestPriceOrder_CumulativeQuantityOverflow(t *testing.T) {
	catalog := map[string]models.Product{
		"free": {ID: "free", Name: "Sample", Price: 0, Stock: 10, Active: true},
	}

	_, _, err := services.PriceOrder([]models.ItemRequest{
		{ProductID: "free", Quantity: 1},
		{ProductID: "free", Quantity: math.MaxInt},
	}, catalog)

	var conflict *apperrors.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, 10, conflict.Available)
	assert.Equal(t, math.MaxInt, conflict.Requested)
}
