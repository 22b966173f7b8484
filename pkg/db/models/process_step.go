package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// ProcessStep is one stage of a production job.
type ProcessStep struct {
	ID                       uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductionJobID          uuid.UUID           `gorm:"column:production_job_id;type:uuid;not null"`
	Stage                    enums.Stage         `gorm:"column:stage;type:production_stage;not null"`
	OrderIndex               int                 `gorm:"column:order_index;not null"`
	Status                   enums.ProcessStatus `gorm:"column:status;type:process_status;not null"`
	EstimatedDurationMinutes int                 `gorm:"column:estimated_duration_minutes;not null"`
	StartedAt                *time.Time          `gorm:"column:started_at"`
	CompletedAt              *time.Time          `gorm:"column:completed_at"`
	DelayReason              *string             `gorm:"column:delay_reason"`
	Remarks                  *string             `gorm:"column:remarks"`
	CompletedBy              *uuid.UUID          `gorm:"column:completed_by;type:uuid"`
	UpdatedAt                time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProcessStep) TableName() string { return "process_steps" }
