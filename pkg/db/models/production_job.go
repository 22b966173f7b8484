package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// ProductionJob is the manufacturing work for one made-to-order line item.
type ProductionJob struct {
	ID                      uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID                 uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	OrderLineItemID         uuid.UUID              `gorm:"column:order_line_item_id;type:uuid;not null;uniqueIndex"`
	ProductID               uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	Quantity                int                    `gorm:"column:quantity;not null"`
	CurrentStage            enums.Stage            `gorm:"column:current_stage;type:production_stage;not null"`
	Status                  enums.ProductionStatus `gorm:"column:status;type:production_status;not null"`
	OverallProgress         decimal.Decimal        `gorm:"column:overall_progress;type:numeric(5,2);not null"`
	Notes                   *string                `gorm:"column:notes"`
	ProductionStartedAt     time.Time              `gorm:"column:production_started_at;not null"`
	EstimatedCompletionDate time.Time              `gorm:"column:estimated_completion_date;not null"`
	ActualCompletionDate    *time.Time             `gorm:"column:actual_completion_date"`
	FinishedGoodsCreditedAt *time.Time             `gorm:"column:finished_goods_credited_at"`
	CreatedAt               time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Steps []ProcessStep `gorm:"foreignKey:ProductionJobID;references:ID"`
}

func (ProductionJob) TableName() string { return "production_jobs" }
