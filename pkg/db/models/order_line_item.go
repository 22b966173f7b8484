package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem is a product and quantity within an order. Quantity is the
// production target once the order is accepted.
type OrderLineItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	Product *Product `gorm:"foreignKey:ProductID;references:ID"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }
