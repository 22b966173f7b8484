package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// Order is a customer purchase awaiting or past its acceptance decision.
type Order struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID       uuid.UUID                   `gorm:"column:customer_id;type:uuid;not null"`
	AcceptanceStatus enums.OrderAcceptanceStatus `gorm:"column:acceptance_status;type:order_acceptance_status;not null;default:pending"`
	Status           enums.OrderStatus           `gorm:"column:status;type:order_status;not null;default:pending"`
	AcceptedBy       *uuid.UUID                  `gorm:"column:accepted_by;type:uuid"`
	AcceptedAt       *time.Time                  `gorm:"column:accepted_at"`
	RejectedBy       *uuid.UUID                  `gorm:"column:rejected_by;type:uuid"`
	RejectedAt       *time.Time                  `gorm:"column:rejected_at"`
	RejectionReason  *string                     `gorm:"column:rejection_reason"`
	AdminNotes       *string                     `gorm:"column:admin_notes"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (Order) TableName() string { return "orders" }
