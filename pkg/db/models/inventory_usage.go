package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// InventoryUsage is an append-only ledger entry. Quantity is negative for
// debits and positive for credits.
type InventoryUsage struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	MaterialID   uuid.UUID                  `gorm:"column:material_id;type:uuid;not null"`
	Quantity     decimal.Decimal            `gorm:"column:quantity;type:numeric(14,4);not null"`
	BalanceAfter decimal.Decimal            `gorm:"column:balance_after;type:numeric(14,4);not null"`
	UnitCost     decimal.Decimal            `gorm:"column:unit_cost;type:numeric(14,4);not null"`
	TotalCost    decimal.Decimal            `gorm:"column:total_cost;type:numeric(14,4);not null"`
	Reason       enums.InventoryUsageReason `gorm:"column:reason;type:inventory_usage_reason;not null"`
	OrderID      *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	ProductionID *uuid.UUID                 `gorm:"column:production_job_id;type:uuid"`
	ActorID      *uuid.UUID                 `gorm:"column:actor_id;type:uuid"`
	Notes        *string                    `gorm:"column:notes"`
	UsedAt       time.Time                  `gorm:"column:used_at;not null"`
}

func (InventoryUsage) TableName() string { return "inventory_usages" }
