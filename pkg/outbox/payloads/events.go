package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// ProductionTrigger names what moved a production job.
type ProductionTrigger string

const (
	TriggerCreated       ProductionTrigger = "created"
	TriggerProcessUpdate ProductionTrigger = "process_update"
	TriggerManualJump    ProductionTrigger = "manual_jump"
	TriggerAutoAdvance   ProductionTrigger = "auto_advance"
	TriggerHold          ProductionTrigger = "hold"
	TriggerDelivery      ProductionTrigger = "delivery"
)

// ProductionUpdatedEvent is emitted after any production job transition.
type ProductionUpdatedEvent struct {
	ProductionID         uuid.UUID              `json:"production_id"`
	OrderID              uuid.UUID              `json:"order_id"`
	ProductID            uuid.UUID              `json:"product_id"`
	Stage                enums.Stage            `json:"stage"`
	StageLabel           string                 `json:"stage_label"`
	Status               enums.ProductionStatus `json:"status"`
	OverallProgress      decimal.Decimal        `json:"overall_progress"`
	Trigger              ProductionTrigger      `json:"trigger"`
	ActualCompletionDate *time.Time             `json:"actual_completion_date,omitempty"`
}

// ProcessUpdatedEvent is emitted for each process step whose status changed.
type ProcessUpdatedEvent struct {
	ProcessID      uuid.UUID           `json:"process_id"`
	ProductionID   uuid.UUID           `json:"production_id"`
	OrderID        uuid.UUID           `json:"order_id"`
	Stage          enums.Stage         `json:"stage"`
	OrderIndex     int                 `json:"order_index"`
	PreviousStatus enums.ProcessStatus `json:"previous_status"`
	Status         enums.ProcessStatus `json:"status"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	DelayReason    *string             `json:"delay_reason,omitempty"`
	Remarks        *string             `json:"remarks,omitempty"`
}

// LowStockEvent is emitted when a debit leaves a material at or below its reorder point.
type LowStockEvent struct {
	MaterialID        uuid.UUID       `json:"material_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	OnHand            decimal.Decimal `json:"on_hand"`
	ReorderPoint      decimal.Decimal `json:"reorder_point"`
	SafetyStock       decimal.Decimal `json:"safety_stock"`
	SuggestedOrderQty decimal.Decimal `json:"suggested_order_qty"`
}

// OrderStageChangedEvent is the customer-facing view of an order transition.
type OrderStageChangedEvent struct {
	OrderID          uuid.UUID                   `json:"order_id"`
	CustomerID       uuid.UUID                   `json:"customer_id"`
	ProductionID     *uuid.UUID                  `json:"production_id,omitempty"`
	Stage            enums.Stage                 `json:"stage,omitempty"`
	StageLabel       string                      `json:"stage_label,omitempty"`
	Status           enums.OrderStatus           `json:"status"`
	AcceptanceStatus enums.OrderAcceptanceStatus `json:"acceptance_status"`
	Reason           string                      `json:"reason,omitempty"`
}
