package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// Product is a sellable furniture item.
type Product struct {
	ID       uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	SKU      string                `gorm:"column:sku;not null;uniqueIndex"`
	Name     string                `gorm:"column:name;not null"`
	Category enums.ProductCategory `gorm:"column:category;type:product_category;not null"`
	// FinishedGoodsMaterialID is the inventory item credited when a job completes.
	FinishedGoodsMaterialID *uuid.UUID `gorm:"column:finished_goods_material_id;type:uuid"`
	CreatedAt               time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
