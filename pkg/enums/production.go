package enums

import "fmt"

// ProductionStatus maps to the production_status enum in Postgres.
type ProductionStatus string

const (
	ProductionStatusPending    ProductionStatus = "Pending"
	ProductionStatusInProgress ProductionStatus = "In Progress"
	ProductionStatusCompleted  ProductionStatus = "Completed"
	ProductionStatusHold       ProductionStatus = "Hold"
)

var validProductionStatuses = []ProductionStatus{
	ProductionStatusPending,
	ProductionStatusInProgress,
	ProductionStatusCompleted,
	ProductionStatusHold,
}

func (s ProductionStatus) IsValid() bool {
	for _, candidate := range validProductionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job accepts no further transitions.
func (s ProductionStatus) IsTerminal() bool {
	return s == ProductionStatusCompleted
}

// ProcessStatus maps to the process_status enum in Postgres.
type ProcessStatus string

const (
	ProcessStatusPending    ProcessStatus = "pending"
	ProcessStatusInProgress ProcessStatus = "in_progress"
	ProcessStatusDelayed    ProcessStatus = "delayed"
	ProcessStatusCompleted  ProcessStatus = "completed"
)

var validProcessStatuses = []ProcessStatus{
	ProcessStatusPending,
	ProcessStatusInProgress,
	ProcessStatusDelayed,
	ProcessStatusCompleted,
}

var processTransitions = map[ProcessStatus][]ProcessStatus{
	ProcessStatusPending:    {ProcessStatusInProgress, ProcessStatusDelayed},
	ProcessStatusInProgress: {ProcessStatusCompleted, ProcessStatusDelayed},
	ProcessStatusDelayed:    {ProcessStatusInProgress, ProcessStatusCompleted},
	ProcessStatusCompleted:  {},
}

func (s ProcessStatus) IsValid() bool {
	for _, candidate := range validProcessStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the step currently occupies the job's single active slot.
func (s ProcessStatus) IsActive() bool {
	return s == ProcessStatusInProgress || s == ProcessStatusDelayed
}

// CanTransitionTo reports whether next is an allowed move from s.
func (s ProcessStatus) CanTransitionTo(next ProcessStatus) bool {
	for _, candidate := range processTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseProcessStatus converts raw input into ProcessStatus.
func ParseProcessStatus(value string) (ProcessStatus, error) {
	for _, candidate := range validProcessStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid process status %q", value)
}

// TrackingStatus is the customer-facing status stored on order_trackings.
type TrackingStatus string

const (
	TrackingStatusPending          TrackingStatus = "pending"
	TrackingStatusInProduction     TrackingStatus = "in_production"
	TrackingStatusCompleted        TrackingStatus = "completed"
	TrackingStatusReadyForDelivery TrackingStatus = "ready_for_delivery"
	TrackingStatusDelivered        TrackingStatus = "delivered"
)

// TrackingStatusForProcess mirrors a process step status into the tracking projection.
func TrackingStatusForProcess(status ProcessStatus) TrackingStatus {
	switch status {
	case ProcessStatusInProgress, ProcessStatusDelayed:
		return TrackingStatusInProduction
	case ProcessStatusCompleted:
		return TrackingStatusCompleted
	default:
		return TrackingStatusPending
	}
}
