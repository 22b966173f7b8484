package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOMLine is one material requirement of a product, per produced unit.
type BOMLine struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	MaterialID uuid.UUID       `gorm:"column:material_id;type:uuid;not null"`
	QtyPerUnit decimal.Decimal `gorm:"column:qty_per_unit;type:numeric(14,4);not null"`
	Position   int             `gorm:"column:position;not null;default:0"`

	Material *Material `gorm:"foreignKey:MaterialID;references:ID"`
}

func (BOMLine) TableName() string { return "bom_lines" }
