package production

import (
	"sort"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	DefaultTotalMinutes    = 14 * 24 * 60
	DefaultFallbackMinutes = 60
)

// stageWeights is each stage's share of the total production time, in percent.
var stageWeights = []int{10, 20, 30, 15, 20, 5}

// StageDurations splits totalMinutes across the six stages by weight.
func StageDurations(totalMinutes int) []int {
	if totalMinutes <= 0 {
		totalMinutes = DefaultTotalMinutes
	}
	out := make([]int, len(stageWeights))
	for i, w := range stageWeights {
		out[i] = totalMinutes * w / 100
	}
	return out
}

// EffectiveDuration returns minutes, or fallback when minutes is not positive.
func EffectiveDuration(minutes, fallback int) int {
	if minutes > 0 {
		return minutes
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultFallbackMinutes
}

// EstimatedCompletion is start plus the sum of the step durations.
func EstimatedCompletion(start time.Time, steps []models.ProcessStep, fallback int) time.Time {
	for _, step := range steps {
		start = start.Add(stepDuration(step, fallback))
	}
	return start
}

// Progress is (completed + 0.5 x active) / total x 100, rounded to 2 places.
func Progress(steps []models.ProcessStep) decimal.Decimal {
	if len(steps) == 0 {
		return decimal.Zero
	}
	completed, active := 0, 0
	for _, step := range steps {
		switch {
		case step.Status == enums.ProcessStatusCompleted:
			completed++
		case step.Status.IsActive():
			active++
		}
	}
	units := decimal.NewFromInt(int64(completed)).Add(decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(int64(active))))
	return units.Div(decimal.NewFromInt(int64(len(steps)))).Mul(decimal.NewFromInt(100)).Round(2)
}

// SortSteps orders steps by order_index in place.
func SortSteps(steps []models.ProcessStep) {
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].OrderIndex < steps[j].OrderIndex })
}

// CurrentStage is the stage of the active step, else the first unfinished
// step, else ReadyForDelivery once every step is completed.
func CurrentStage(steps []models.ProcessStep) enums.Stage {
	for _, step := range steps {
		if step.Status.IsActive() {
			return step.Stage
		}
	}
	for _, step := range steps {
		if step.Status != enums.ProcessStatusCompleted {
			return step.Stage
		}
	}
	return enums.StageReadyForDelivery
}

// AllCompleted reports whether every step is completed.
func AllCompleted(steps []models.ProcessStep) bool {
	if len(steps) == 0 {
		return false
	}
	for _, step := range steps {
		if step.Status != enums.ProcessStatusCompleted {
			return false
		}
	}
	return true
}

func activeIndex(steps []models.ProcessStep) int {
	for i, step := range steps {
		if step.Status.IsActive() {
			return i
		}
	}
	return -1
}

// Transition is one step status change computed by a planner.
type Transition struct {
	Index       int
	From        enums.ProcessStatus
	To          enums.ProcessStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func stepDuration(step models.ProcessStep, fallback int) time.Duration {
	return time.Duration(EffectiveDuration(step.EstimatedDurationMinutes, fallback)) * time.Minute
}

// PlanAutoAdvance computes which steps should have moved given the job start,
// per-step durations and now. The window chain is anchored at the active
// step's started_at, so a manual jump restarts the clock at the reopened
// step. Without a started active step the chain resumes at the later of the
// production-start schedule and the last recorded completion. Steps whose
// window has fully elapsed become completed and the step whose window
// contains now becomes in_progress. The plan only moves forward: completed
// steps, steps past the current active step and delayed steps are left
// alone. steps must be sorted.
func PlanAutoAdvance(start time.Time, steps []models.ProcessStep, now time.Time, fallback int) []Transition {
	if len(steps) == 0 || now.Before(start) {
		return nil
	}

	from := activeIndex(steps)
	if from < 0 {
		from = 0
		for from < len(steps) && steps[from].Status == enums.ProcessStatusCompleted {
			from++
		}
	}
	if from >= len(steps) {
		return nil
	}

	anchor := start
	var lastCompleted time.Time
	for i := 0; i < from; i++ {
		anchor = anchor.Add(stepDuration(steps[i], fallback))
		if steps[i].CompletedAt != nil && steps[i].CompletedAt.After(lastCompleted) {
			lastCompleted = *steps[i].CompletedAt
		}
	}
	if steps[from].Status.IsActive() && steps[from].StartedAt != nil {
		anchor = *steps[from].StartedAt
	} else {
		anchor = latest(anchor, lastCompleted)
	}
	if now.Before(anchor) {
		return nil
	}

	var plan []Transition
	cursor := anchor
	for i := from; i < len(steps); i++ {
		step := steps[i]
		if step.Status == enums.ProcessStatusDelayed {
			break
		}
		windowStart := cursor
		cursor = cursor.Add(stepDuration(step, fallback))
		if now.Before(cursor) {
			if step.Status == enums.ProcessStatusPending {
				started := latest(windowStart, lastCompleted)
				plan = append(plan, Transition{Index: i, From: step.Status, To: enums.ProcessStatusInProgress, StartedAt: &started})
			}
			break
		}
		if step.Status == enums.ProcessStatusCompleted {
			if step.CompletedAt != nil && step.CompletedAt.After(lastCompleted) {
				lastCompleted = *step.CompletedAt
			}
			continue
		}
		started := latest(windowStart, lastCompleted)
		if step.StartedAt != nil {
			started = *step.StartedAt
		}
		completed := latest(cursor, started)
		if completed.After(now) {
			completed = now
		}
		lastCompleted = completed
		plan = append(plan, Transition{Index: i, From: step.Status, To: enums.ProcessStatusCompleted, StartedAt: &started, CompletedAt: &completed})
	}
	return plan
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
