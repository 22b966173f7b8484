package production

import (
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is the API view of a production job and its process steps.
type Snapshot struct {
	ID                      uuid.UUID              `json:"id"`
	OrderID                 uuid.UUID              `json:"order_id"`
	OrderLineItemID         uuid.UUID              `json:"order_line_item_id"`
	ProductID               uuid.UUID              `json:"product_id"`
	Quantity                int                    `json:"quantity"`
	CurrentStage            enums.Stage            `json:"current_stage"`
	CurrentStageLabel       string                 `json:"current_stage_label"`
	Status                  enums.ProductionStatus `json:"status"`
	OverallProgress         decimal.Decimal        `json:"overall_progress"`
	Notes                   *string                `json:"notes,omitempty"`
	ProductionStartedAt     time.Time              `json:"production_started_at"`
	EstimatedCompletionDate time.Time              `json:"estimated_completion_date"`
	ActualCompletionDate    *time.Time             `json:"actual_completion_date,omitempty"`
	Processes               []ProcessSnapshot      `json:"processes"`
}

type ProcessSnapshot struct {
	ID                       uuid.UUID           `json:"id"`
	Stage                    enums.Stage         `json:"stage"`
	StageLabel               string              `json:"stage_label"`
	OrderIndex               int                 `json:"order_index"`
	Status                   enums.ProcessStatus `json:"status"`
	EstimatedDurationMinutes int                 `json:"estimated_duration_minutes"`
	StartedAt                *time.Time          `json:"started_at,omitempty"`
	CompletedAt              *time.Time          `json:"completed_at,omitempty"`
	DelayReason              *string             `json:"delay_reason,omitempty"`
	Remarks                  *string             `json:"remarks,omitempty"`
	CompletedBy              *uuid.UUID          `json:"completed_by,omitempty"`
}

// NewSnapshot maps a job with loaded steps to its API view.
func NewSnapshot(job *models.ProductionJob) *Snapshot {
	snap := &Snapshot{
		ID:                      job.ID,
		OrderID:                 job.OrderID,
		OrderLineItemID:         job.OrderLineItemID,
		ProductID:               job.ProductID,
		Quantity:                job.Quantity,
		CurrentStage:            job.CurrentStage,
		CurrentStageLabel:       job.CurrentStage.Label(),
		Status:                  job.Status,
		OverallProgress:         job.OverallProgress,
		Notes:                   job.Notes,
		ProductionStartedAt:     job.ProductionStartedAt,
		EstimatedCompletionDate: job.EstimatedCompletionDate,
		ActualCompletionDate:    job.ActualCompletionDate,
		Processes:               make([]ProcessSnapshot, 0, len(job.Steps)),
	}
	for _, step := range job.Steps {
		snap.Processes = append(snap.Processes, ProcessSnapshot{
			ID:                       step.ID,
			Stage:                    step.Stage,
			StageLabel:               step.Stage.Label(),
			OrderIndex:               step.OrderIndex,
			Status:                   step.Status,
			EstimatedDurationMinutes: step.EstimatedDurationMinutes,
			StartedAt:                step.StartedAt,
			CompletedAt:              step.CompletedAt,
			DelayReason:              step.DelayReason,
			Remarks:                  step.Remarks,
			CompletedBy:              step.CompletedBy,
		})
	}
	return snap
}
