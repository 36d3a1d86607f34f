package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toko-orders/internal/apperrors"
	"toko-orders/internal/models"

	"gorm.io/gorm"
)

const DefaultCommitTimeout = 5 * time.Second

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db            *gorm.DB
	commitTimeout time.Duration
}

// NewGORMOrderRepository creates a repository whose commits are bounded by commitTimeout.
func NewGORMOrderRepository(db *gorm.DB, commitTimeout time.Duration) *GORMOrderRepository {
	if commitTimeout <= 0 {
		commitTimeout = DefaultCommitTimeout
	}
	return &GORMOrderRepository{db: db, commitTimeout: commitTimeout}
}

// Commit runs the stock decrements and the order inserts in one transaction.
func (r *GORMOrderRepository) Commit(ctx context.Context, order *models.Order) error {
	demands, err := aggregateQuantities(order.Items)
	if err != nil {
		return err
	}
	prepareOrder(order, time.Now().UTC())

	ctx, cancel := context.WithTimeout(ctx, r.commitTimeout)
	defer cancel()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range demands {
			if err := decrementStock(tx, d); err != nil {
				return err
			}
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	return classifyTxError(ctx, "commit order", err)
}

// decrementStock subtracts d.quantity only if the stored stock covers it.
func decrementStock(tx *gorm.DB, d stockDemand) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND active = ? AND stock >= ?", d.productID, true, d.quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", d.quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current models.Product
	err := tx.Select("id", "stock", "active").Where("id = ?", d.productID).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("product", d.productID)
	}
	if err != nil {
		return err
	}
	if !current.Active {
		return apperrors.NotFound("product", d.productID)
	}
	return apperrors.InsufficientStock(d.productID, current.Stock, d.quantity)
}

// GetByID returns the order if it exists and scope may see it.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string, scope models.Scope) (*models.Order, error) {
	var order models.Order
	err := scoped(r.db.WithContext(ctx), scope).
		Preload("Items", orderedItems).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// List returns one page of the orders visible to scope, newest first.
func (r *GORMOrderRepository) List(ctx context.Context, page models.Pagination, scope models.Scope) (models.OrderPage, error) {
	result := models.OrderPage{Items: []models.Order{}, Page: page.Page, Limit: page.Limit}

	db := r.db.WithContext(ctx)
	if err := scoped(db.Model(&models.Order{}), scope).Count(&result.Total).Error; err != nil {
		return models.OrderPage{}, fmt.Errorf("failed to count orders: %w", err)
	}
	err := scoped(db, scope).
		Preload("Items", orderedItems).
		Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&result.Items).Error
	if err != nil {
		return models.OrderPage{}, fmt.Errorf("failed to list orders: %w", err)
	}
	return result, nil
}

// UpdateStatus sets any known status on an existing order.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("order", id)
	}
	return r.GetByID(ctx, id, models.AdminScope())
}

func scoped(db *gorm.DB, scope models.Scope) *gorm.DB {
	if scope.Unrestricted {
		return db
	}
	return db.Where("buyer_id = ?", scope.BuyerID)
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
