package production

import (
	"context"
	"time"

	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// jobState is the part of a job compared before and after a transition.
type jobState struct {
	stage  enums.Stage
	status enums.ProductionStatus
}

func stateOf(job *models.ProductionJob) jobState {
	return jobState{stage: job.CurrentStage, status: job.Status}
}

// persist writes the touched steps and the recomputed job, then emits the
// transition events and refreshes the tracking row.
func (s *service) persist(ctx context.Context, tx *gorm.DB, job *models.ProductionJob, changes []stepChange, prev jobState, trigger payloads.ProductionTrigger, actor *outbox.ActorRef) error {
	repo := s.repo.WithTx(tx)

	transitions := 0
	for _, change := range changes {
		step := &job.Steps[change.index]
		if err := repo.SaveStep(ctx, step); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save process step")
		}
		if change.from == step.Status {
			continue
		}
		transitions++
		if err := s.emitProcessUpdated(ctx, tx, job, step, change.from, actor); err != nil {
			return err
		}
	}

	if job.Status != enums.ProductionStatusCompleted {
		job.CurrentStage = CurrentStage(job.Steps)
		job.OverallProgress = Progress(job.Steps)
	}
	if err := repo.SaveJob(ctx, job); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save production job")
	}
	if err := s.emitProductionUpdated(ctx, tx, job, trigger, actor); err != nil {
		return err
	}
	if _, err := s.tracking.Sync(ctx, tx, job); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync order tracking")
	}

	justCompleted := job.Status == enums.ProductionStatusCompleted && prev.status != enums.ProductionStatusCompleted
	switch {
	case justCompleted:
		if err := s.releaseOrder(ctx, tx, job, actor); err != nil {
			return err
		}
	case job.CurrentStage != prev.stage:
		order, err := repo.FindOrder(ctx, job.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := s.emitOrderStageChanged(ctx, tx, order, job, actor); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.AddStageTransitions(string(trigger), transitions)
	}
	if transitions > 0 || job.CurrentStage != prev.stage {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"production_id": job.ID.String(),
			"trigger":       string(trigger),
			"stage":         string(job.CurrentStage),
			"progress":      job.OverallProgress.String(),
			"transitions":   transitions,
		})
		s.logg.Info(logCtx, "production stage transition")
	}
	return nil
}

// completeJob marks the job finished and credits finished goods once.
func (s *service) completeJob(ctx context.Context, tx *gorm.DB, job *models.ProductionJob, at time.Time, actor *outbox.ActorRef) error {
	job.Status = enums.ProductionStatusCompleted
	job.CurrentStage = enums.StageReadyForDelivery
	job.OverallProgress = decimal.NewFromInt(100)
	job.ActualCompletionDate = timePtr(at)

	if job.FinishedGoodsCreditedAt != nil {
		return nil
	}
	product, err := s.repo.WithTx(tx).FindProduct(ctx, job.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.FinishedGoodsMaterialID == nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"production_id": job.ID.String(),
			"product_id":    product.ID.String(),
		}), "product has no finished goods item; skipping credit")
	} else {
		orderID, jobID := job.OrderID, job.ID
		_, err := s.ledger.Credit(ctx, tx, *product.FinishedGoodsMaterialID, decimal.NewFromInt(int64(job.Quantity)), inventory.Reference{
			Reason:       enums.UsageReasonProductionOutput,
			OrderID:      &orderID,
			ProductionID: &jobID,
			Actor:        actor,
		})
		if err != nil {
			return err
		}
	}
	job.FinishedGoodsCreditedAt = timePtr(at)

	if s.metrics != nil {
		s.metrics.IncJobsCompleted()
	}
	s.logg.Info(s.logg.WithProductionID(ctx, job.ID.String()), "production completed")
	return nil
}

// releaseOrder moves the order to ready_for_delivery once all of its jobs
// are completed.
func (s *service) releaseOrder(ctx context.Context, tx *gorm.DB, job *models.ProductionJob, actor *outbox.ActorRef) error {
	repo := s.repo.WithTx(tx)
	open, err := repo.CountOpenJobs(ctx, job.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open production jobs")
	}
	order, err := repo.FindOrder(ctx, job.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if open == 0 && order.Status == enums.OrderStatusProcessing {
		if err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusReadyForDelivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = enums.OrderStatusReadyForDelivery
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order ready for delivery")
	}
	return s.emitOrderStageChanged(ctx, tx, order, job, actor)
}

// advanceDue reports whether an elapsed-time advance would change the job.
func (s *service) advanceDue(job *models.ProductionJob) bool {
	if s.opts.SkipLazyAdvance || job.Status != enums.ProductionStatusInProgress {
		return false
	}
	SortSteps(job.Steps)
	return len(PlanAutoAdvance(job.ProductionStartedAt, job.Steps, s.now().UTC(), s.opts.FallbackStepMinutes)) > 0
}

// AutoAdvance materializes the elapsed-time schedule for one job. Jobs that
// are not In Progress are returned unchanged.
func (s *service) AutoAdvance(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production id required")
	}
	job, _, err := s.advanceOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(job), nil
}

func (s *service) advanceLocked(ctx context.Context, tx *gorm.DB, job *models.ProductionJob) (int, error) {
	if job.Status != enums.ProductionStatusInProgress {
		return 0, nil
	}
	plan := PlanAutoAdvance(job.ProductionStartedAt, job.Steps, s.now().UTC(), s.opts.FallbackStepMinutes)
	if len(plan) == 0 {
		return 0, nil
	}

	prev := stateOf(job)
	changes := applyPlan(job.Steps, plan)
	if AllCompleted(job.Steps) {
		at := s.now().UTC()
		if last := job.Steps[len(job.Steps)-1]; last.CompletedAt != nil {
			at = *last.CompletedAt
		}
		if err := s.completeJob(ctx, tx, job, at, outbox.SystemActor); err != nil {
			return 0, err
		}
	}
	if err := s.persist(ctx, tx, job, changes, prev, payloads.TriggerAutoAdvance, outbox.SystemActor); err != nil {
		return 0, err
	}
	return len(plan), nil
}

// AutoAdvanceBatch sweeps every In Progress job, one transaction per job.
// A failing job is logged and skipped so the rest of the sweep still runs.
func (s *service) AutoAdvanceBatch(ctx context.Context, batchSize int) (BatchResult, error) {
	var (
		result BatchResult
		errs   error
		after  uuid.UUID
	)
	for {
		ids, err := s.repo.ListInProgressIDs(ctx, after, batchSize)
		if err != nil {
			return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list in progress jobs")
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return result, multierr.Append(errs, err)
			}
			result.Scanned++
			job, moved, err := s.advanceOne(ctx, id)
			if err != nil {
				s.logg.Error(s.logg.WithProductionID(ctx, id.String()), "auto-advance failed", err)
				errs = multierr.Append(errs, err)
				continue
			}
			if moved > 0 {
				result.Advanced++
				if job.Status == enums.ProductionStatusCompleted {
					result.Completed++
				}
			}
		}
		after = ids[len(ids)-1]
	}
	return result, errs
}

func (s *service) advanceOne(ctx context.Context, id uuid.UUID) (*models.ProductionJob, int, error) {
	var (
		job   *models.ProductionJob
		moved int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		job, err = s.lockJob(ctx, tx, id)
		if err != nil {
			return err
		}
		moved, err = s.advanceLocked(ctx, tx, job)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return job, moved, nil
}

// FinishForDelivery completes every unfinished job of the order inside the
// caller's transaction, crediting finished goods like a jump to Ready for
// Delivery would. It returns how many jobs it finished.
func (s *service) FinishForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (int, error) {
	jobs, err := s.repo.WithTx(tx).FindJobsByOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load production jobs")
	}
	finished := 0
	for _, candidate := range jobs {
		if candidate.Status == enums.ProductionStatusCompleted {
			continue
		}
		job, err := s.lockJob(ctx, tx, candidate.ID)
		if err != nil {
			return finished, err
		}
		if job.Status == enums.ProductionStatusCompleted {
			continue
		}

		prev := stateOf(job)
		now := s.now().UTC()
		changes := applyJump(job.Steps, enums.StageReadyForDelivery, actorUserID(actor), now)
		job.Notes = appendNote(job.Notes, "[Delivered] finished at order delivery")
		if err := s.completeJob(ctx, tx, job, now, actor); err != nil {
			return finished, err
		}
		if err := s.persist(ctx, tx, job, changes, prev, payloads.TriggerDelivery, actor); err != nil {
			return finished, err
		}
		finished++
	}
	return finished, nil
}

func (s *service) emitProductionUpdated(ctx context.Context, tx *gorm.DB, job *models.ProductionJob, trigger payloads.ProductionTrigger, actor *outbox.ActorRef) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventProductionUpdated,
		AggregateType: enums.AggregateProductionJob,
		AggregateID:   job.ID,
		Actor:         actor,
		Data: payloads.ProductionUpdatedEvent{
			ProductionID:         job.ID,
			OrderID:              job.OrderID,
			ProductID:            job.ProductID,
			Stage:                job.CurrentStage,
			StageLabel:           job.CurrentStage.Label(),
			Status:               job.Status,
			OverallProgress:      job.OverallProgress,
			Trigger:              trigger,
			ActualCompletionDate: job.ActualCompletionDate,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit production updated")
	}
	return nil
}

func (s *service) emitProcessUpdated(ctx context.Context, tx *gorm.DB, job *models.ProductionJob, step *models.ProcessStep, from enums.ProcessStatus, actor *outbox.ActorRef) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventProcessUpdated,
		AggregateType: enums.AggregateProcessStep,
		AggregateID:   step.ID,
		Actor:         actor,
		Data: payloads.ProcessUpdatedEvent{
			ProcessID:      step.ID,
			ProductionID:   job.ID,
			OrderID:        job.OrderID,
			Stage:          step.Stage,
			OrderIndex:     step.OrderIndex,
			PreviousStatus: from,
			Status:         step.Status,
			StartedAt:      step.StartedAt,
			CompletedAt:    step.CompletedAt,
			DelayReason:    step.DelayReason,
			Remarks:        step.Remarks,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit process updated")
	}
	return nil
}

func (s *service) emitOrderStageChanged(ctx context.Context, tx *gorm.DB, order *models.Order, job *models.ProductionJob, actor *outbox.ActorRef) error {
	jobID := job.ID
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStageChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStageChangedEvent{
			OrderID:          order.ID,
			CustomerID:       order.CustomerID,
			ProductionID:     &jobID,
			Stage:            job.CurrentStage,
			StageLabel:       job.CurrentStage.Label(),
			Status:           order.Status,
			AcceptanceStatus: order.AcceptanceStatus,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order stage changed")
	}
	return nil
}
