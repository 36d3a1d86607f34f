package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"toko-orders/internal/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validation("items", "empty"), fiber.StatusBadRequest},
		{"not found", apperrors.NotFound("order", "x"), fiber.StatusNotFound},
		{"insufficient stock", apperrors.InsufficientStock("p", 1, 2), fiber.StatusConflict},
		{"duplicate", apperrors.Duplicate("user", "email", "a@b.c"), fiber.StatusConflict},
		{"transient", apperrors.Transient("commit", errors.New("deadlock")), fiber.StatusServiceUnavailable},
		{"cancelled", fmt.Errorf("commit: %w", context.Canceled), fiber.StatusRequestTimeout},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
