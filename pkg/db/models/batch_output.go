package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchOutput records one day's production run of a stocked product.
type BatchOutput struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	ProducedOn    time.Time       `gorm:"column:produced_on;type:date;not null"`
	MaterialsCost decimal.Decimal `gorm:"column:materials_cost;type:numeric(14,4)"`
	Notes         *string         `gorm:"column:notes"`
	ProducedBy    *uuid.UUID      `gorm:"column:produced_by;type:uuid"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (BatchOutput) TableName() string { return "batch_outputs" }
