package models

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a catalog entry. Price is in minor units.
type Product struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null" validate:"required,min=3,max=100"`
	Description string         `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	Price       int64          `json:"price" gorm:"not null" validate:"gte=0"`
	Stock       int            `json:"stock" gorm:"not null;check:stock >= 0" validate:"gte=0"`
	Active      bool           `json:"active" gorm:"not null;index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
