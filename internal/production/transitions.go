package production

import (
	"strings"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/google/uuid"
)

// TransitionDetails is attached to INVALID_TRANSITION errors.
type TransitionDetails struct {
	ProductionID uuid.UUID `json:"production_id"`
	ProcessID    uuid.UUID `json:"process_id,omitempty"`
	From         string    `json:"from"`
	To           string    `json:"to"`
}

func invalidTransition(message string, details TransitionDetails) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, message).WithDetails(details)
}

// stepChange records a step touched by a transition and the status it had before.
type stepChange struct {
	index int
	from  enums.ProcessStatus
}

// processUpdate is the step-level part of an UpdateProcess call.
type processUpdate struct {
	status      enums.ProcessStatus
	delayReason *string
	remarks     *string
	force       bool
	actorID     *uuid.UUID
}

// applyProcessUpdate mutates steps for a single process status change and
// returns the steps it touched. Completing a step starts the next pending
// step when no other step is active.
func applyProcessUpdate(jobID uuid.UUID, steps []models.ProcessStep, idx int, in processUpdate, now time.Time) ([]stepChange, error) {
	step := &steps[idx]
	details := TransitionDetails{
		ProductionID: jobID,
		ProcessID:    step.ID,
		From:         string(step.Status),
		To:           string(in.status),
	}

	if in.status == enums.ProcessStatusPending {
		return nil, invalidTransition("process steps return to pending only through a stage jump", details)
	}
	if step.Status == in.status {
		applyNotes(step, in)
		return []stepChange{{index: idx, from: step.Status}}, nil
	}
	if !in.force && !step.Status.CanTransitionTo(in.status) {
		return nil, invalidTransition("process transition not allowed", details)
	}
	if step.Status == enums.ProcessStatusCompleted {
		for j := idx + 1; j < len(steps); j++ {
			if steps[j].Status != enums.ProcessStatusPending {
				return nil, invalidTransition("later process steps have already started", details)
			}
		}
	}
	if !in.force {
		for j := 0; j < idx; j++ {
			if steps[j].Status != enums.ProcessStatusCompleted {
				return nil, invalidTransition("earlier process steps must be completed first", details)
			}
		}
	}
	if in.status.IsActive() {
		for j := range steps {
			if j != idx && steps[j].Status.IsActive() {
				return nil, invalidTransition("another process step is already active", details)
			}
		}
	}

	changes := []stepChange{{index: idx, from: step.Status}}
	applyNotes(step, in)
	switch in.status {
	case enums.ProcessStatusInProgress, enums.ProcessStatusDelayed:
		step.Status = in.status
		if step.StartedAt == nil {
			step.StartedAt = timePtr(now)
		}
		step.CompletedAt = nil
		step.CompletedBy = nil
	case enums.ProcessStatusCompleted:
		step.Status = enums.ProcessStatusCompleted
		if step.StartedAt == nil {
			step.StartedAt = timePtr(now)
		}
		step.CompletedAt = timePtr(now)
		step.CompletedBy = in.actorID

		next := idx + 1
		if next < len(steps) && steps[next].Status == enums.ProcessStatusPending && activeIndex(steps) < 0 {
			steps[next].Status = enums.ProcessStatusInProgress
			steps[next].StartedAt = timePtr(now)
			changes = append(changes, stepChange{index: next, from: enums.ProcessStatusPending})
		}
	}
	return changes, nil
}

func applyNotes(step *models.ProcessStep, in processUpdate) {
	if in.delayReason != nil {
		step.DelayReason = trimmedOrNil(*in.delayReason)
	}
	if in.remarks != nil {
		step.Remarks = trimmedOrNil(*in.remarks)
	}
}

// applyJump forces the steps to the target stage. Steps before the target are
// completed, the target step is in progress and later steps are reset. A
// terminal target completes every step.
func applyJump(steps []models.ProcessStep, target enums.Stage, actorID *uuid.UUID, now time.Time) []stepChange {
	targetIdx := len(steps)
	if target.IsProcessStage() {
		targetIdx = target.Index() - 1
	}

	var changes []stepChange
	for i := range steps {
		step := &steps[i]
		from := step.Status
		switch {
		case i < targetIdx:
			if step.Status == enums.ProcessStatusCompleted {
				continue
			}
			step.Status = enums.ProcessStatusCompleted
			if step.StartedAt == nil {
				step.StartedAt = timePtr(now)
			}
			step.CompletedAt = timePtr(now)
			step.CompletedBy = actorID
		case i == targetIdx:
			if step.Status == enums.ProcessStatusInProgress {
				continue
			}
			if step.Status == enums.ProcessStatusCompleted || step.StartedAt == nil {
				step.StartedAt = timePtr(now)
			}
			step.Status = enums.ProcessStatusInProgress
			step.CompletedAt = nil
			step.CompletedBy = nil
		default:
			if step.Status == enums.ProcessStatusPending {
				continue
			}
			step.Status = enums.ProcessStatusPending
			step.StartedAt = nil
			step.CompletedAt = nil
			step.CompletedBy = nil
			step.DelayReason = nil
		}
		changes = append(changes, stepChange{index: i, from: from})
	}
	return changes
}

// applyPlan copies an auto-advance plan onto the steps.
func applyPlan(steps []models.ProcessStep, plan []Transition) []stepChange {
	changes := make([]stepChange, 0, len(plan))
	for _, tr := range plan {
		step := &steps[tr.Index]
		changes = append(changes, stepChange{index: tr.Index, from: step.Status})
		step.Status = tr.To
		if tr.StartedAt != nil {
			step.StartedAt = timePtr(*tr.StartedAt)
		}
		if tr.CompletedAt != nil {
			step.CompletedAt = timePtr(*tr.CompletedAt)
		}
	}
	return changes
}

// appendNote adds a line to the job notes.
func appendNote(notes *string, line string) *string {
	line = strings.TrimSpace(line)
	if line == "" {
		return notes
	}
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return &line
	}
	joined := *notes + "\n" + line
	return &joined
}

func trimmedOrNil(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stepIndexByID(steps []models.ProcessStep, id uuid.UUID) int {
	for i, step := range steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}
