package orders

import (
	"time"

	"github.com/angelmondragon/furniture-production-backend/internal/consumption"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AcceptInput carries an admin's acceptance of a pending order.
type AcceptInput struct {
	OrderID    uuid.UUID
	Actor      *outbox.ActorRef
	AdminNotes *string
}

// DeliveryInput moves an accepted order through fulfilment.
type DeliveryInput struct {
	OrderID uuid.UUID
	Actor   *outbox.ActorRef
}

// RejectInput carries an admin's rejection. Reason is required.
type RejectInput struct {
	OrderID    uuid.UUID
	Actor      *outbox.ActorRef
	Reason     string
	AdminNotes *string
}

// OrderSnapshot is the API view of an order with its production state.
type OrderSnapshot struct {
	ID               uuid.UUID                       `json:"id"`
	CustomerID       uuid.UUID                       `json:"customer_id"`
	AcceptanceStatus enums.OrderAcceptanceStatus     `json:"acceptance_status"`
	Status           enums.OrderStatus               `json:"status"`
	AcceptedBy       *uuid.UUID                      `json:"accepted_by,omitempty"`
	AcceptedAt       *time.Time                      `json:"accepted_at,omitempty"`
	RejectedBy       *uuid.UUID                      `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time                      `json:"rejected_at,omitempty"`
	RejectionReason  *string                         `json:"rejection_reason,omitempty"`
	AdminNotes       *string                         `json:"admin_notes,omitempty"`
	LineItems        []LineItemSnapshot              `json:"line_items"`
	Tracking         []TrackingSnapshot              `json:"tracking"`
	Productions      []production.Snapshot           `json:"productions"`
	Consumed         []consumption.ConsumedMaterials `json:"consumed_materials,omitempty"`
}

type LineItemSnapshot struct {
	ID        uuid.UUID             `json:"id"`
	ProductID uuid.UUID             `json:"product_id"`
	SKU       string                `json:"sku,omitempty"`
	Name      string                `json:"name,omitempty"`
	Category  enums.ProductCategory `json:"category,omitempty"`
	Quantity  int                   `json:"quantity"`
}

type TrackingSnapshot struct {
	LineItemID              uuid.UUID            `json:"line_item_id"`
	ProductID               uuid.UUID            `json:"product_id"`
	ProductionID            *uuid.UUID           `json:"production_id,omitempty"`
	CurrentStage            enums.Stage          `json:"current_stage"`
	CurrentStageLabel       string               `json:"current_stage_label"`
	Status                  enums.TrackingStatus `json:"status"`
	Progress                decimal.Decimal      `json:"progress"`
	EstimatedCompletionDate time.Time            `json:"estimated_completion_date"`
}

// MaterialCheck is the non-mutating stock preview for a pending order.
type MaterialCheck struct {
	OrderID    uuid.UUID              `json:"order_id"`
	Sufficient bool                   `json:"sufficient"`
	Shortages  []consumption.Shortage `json:"shortages"`
}

// StatusDetails is attached to INVALID_TRANSITION errors for order status moves.
type StatusDetails struct {
	OrderID uuid.UUID         `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
	Target  enums.OrderStatus `json:"target"`
}

// DecisionDetails is attached to ALREADY_DECIDED errors.
type DecisionDetails struct {
	OrderID          uuid.UUID                   `json:"order_id"`
	AcceptanceStatus enums.OrderAcceptanceStatus `json:"acceptance_status"`
}

func newSnapshot(order *models.Order, trackings []models.OrderTracking, jobs []production.Snapshot) *OrderSnapshot {
	snap := &OrderSnapshot{
		ID:               order.ID,
		CustomerID:       order.CustomerID,
		AcceptanceStatus: order.AcceptanceStatus,
		Status:           order.Status,
		AcceptedBy:       order.AcceptedBy,
		AcceptedAt:       order.AcceptedAt,
		RejectedBy:       order.RejectedBy,
		RejectedAt:       order.RejectedAt,
		RejectionReason:  order.RejectionReason,
		AdminNotes:       order.AdminNotes,
		LineItems:        make([]LineItemSnapshot, 0, len(order.LineItems)),
		Tracking:         make([]TrackingSnapshot, 0, len(trackings)),
		Productions:      jobs,
	}
	if snap.Productions == nil {
		snap.Productions = []production.Snapshot{}
	}
	for _, item := range order.LineItems {
		line := LineItemSnapshot{ID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity}
		if item.Product != nil {
			line.SKU = item.Product.SKU
			line.Name = item.Product.Name
			line.Category = item.Product.Category
		}
		snap.LineItems = append(snap.LineItems, line)
	}
	for _, row := range trackings {
		snap.Tracking = append(snap.Tracking, TrackingSnapshot{
			LineItemID:              row.OrderLineItemID,
			ProductID:               row.ProductID,
			ProductionID:            row.ProductionJobID,
			CurrentStage:            row.CurrentStage,
			CurrentStageLabel:       row.CurrentStage.Label(),
			Status:                  row.Status,
			Progress:                row.Progress,
			EstimatedCompletionDate: row.EstimatedCompletionDate,
		})
	}
	return snap
}
