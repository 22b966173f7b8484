package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// OrderTracking is the customer-facing projection of one order line.
type OrderTracking struct {
	ID                      uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID                 uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	OrderLineItemID         uuid.UUID            `gorm:"column:order_line_item_id;type:uuid;not null;uniqueIndex"`
	ProductID               uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	ProductionJobID         *uuid.UUID           `gorm:"column:production_job_id;type:uuid"`
	CurrentStage            enums.Stage          `gorm:"column:current_stage;type:production_stage;not null"`
	Status                  enums.TrackingStatus `gorm:"column:status;not null"`
	Progress                decimal.Decimal      `gorm:"column:progress;type:numeric(5,2);not null"`
	EstimatedCompletionDate time.Time            `gorm:"column:estimated_completion_date;not null"`
	CreatedAt               time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderTracking) TableName() string { return "order_trackings" }
