package enums

import "fmt"

// OrderAcceptanceStatus maps to the order_acceptance_status enum in Postgres.
type OrderAcceptanceStatus string

const (
	OrderAcceptancePending  OrderAcceptanceStatus = "pending"
	OrderAcceptanceAccepted OrderAcceptanceStatus = "accepted"
	OrderAcceptanceRejected OrderAcceptanceStatus = "rejected"
)

var validOrderAcceptanceStatuses = []OrderAcceptanceStatus{
	OrderAcceptancePending,
	OrderAcceptanceAccepted,
	OrderAcceptanceRejected,
}

// IsValid reports whether the value matches the canonical acceptance enum.
func (s OrderAcceptanceStatus) IsValid() bool {
	for _, candidate := range validOrderAcceptanceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsDecided reports whether the order has left the pending state.
func (s OrderAcceptanceStatus) IsDecided() bool {
	return s == OrderAcceptanceAccepted || s == OrderAcceptanceRejected
}

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusProcessing       OrderStatus = "processing"
	OrderStatusReadyForDelivery OrderStatus = "ready_for_delivery"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusReadyForDelivery,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
