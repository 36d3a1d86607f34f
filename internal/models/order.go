package models

import "time"

// OrderItem is a line of an order. UnitPrice is frozen at commit time.
type OrderItem struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string `json:"order_id" gorm:"type:varchar(36);not null;index"`
	ProductID string `json:"product_id" gorm:"type:varchar(36);not null;index"`
	Position  int    `json:"position" gorm:"not null"`
	Quantity  int    `json:"quantity" gorm:"not null"`
	UnitPrice int64  `json:"unit_price" gorm:"not null"`
	LineTotal int64  `json:"line_total" gorm:"not null"`
}

// Order represents a customer order.
type Order struct {
	ID        string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BuyerID   string      `json:"buyer_id" gorm:"type:varchar(36);not null;index"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Total     int64       `json:"total" gorm:"not null"`
	Items     []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ItemRequest is one requested (product, quantity) pair.
type ItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// OrderPage is one page of a listing.
type OrderPage struct {
	Items []Order `json:"items"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Total int64   `json:"total"`
}
