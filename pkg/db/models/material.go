package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Material is a stocked inventory item (raw material or finished good).
// OnHand is only written by the inventory ledger.
type Material struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU           string          `gorm:"column:sku;not null;uniqueIndex"`
	Name          string          `gorm:"column:name;not null"`
	Unit          string          `gorm:"column:unit;not null;default:pcs"`
	UnitPrecision int32           `gorm:"column:unit_precision;not null;default:0"`
	OnHand        decimal.Decimal `gorm:"column:on_hand;type:numeric(14,4);not null"`
	ReorderPoint  decimal.Decimal `gorm:"column:reorder_point;type:numeric(14,4);not null"`
	SafetyStock   decimal.Decimal `gorm:"column:safety_stock;type:numeric(14,4);not null"`
	MaxLevel      decimal.Decimal `gorm:"column:max_level;type:numeric(14,4);not null"`
	UnitCost      decimal.Decimal `gorm:"column:unit_cost;type:numeric(14,4);not null"`
	LeadTimeDays  int             `gorm:"column:lead_time_days;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Material) TableName() string { return "materials" }

// AtOrBelowReorderPoint reports whether replenishment should be flagged.
func (m Material) AtOrBelowReorderPoint() bool {
	return m.OnHand.LessThanOrEqual(m.ReorderPoint)
}
