package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, ref inventory.Reference) (*models.InventoryUsage, error)
}

type trackingSyncer interface {
	Sync(ctx context.Context, tx *gorm.DB, job *models.ProductionJob) (*models.OrderTracking, error)
}

type productionRecorder interface {
	IncJobsCreated()
	IncJobsCompleted()
	AddStageTransitions(trigger string, n int)
}

// Service drives production jobs through the six manufacturing stages.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.ProductionJob, error)
	Get(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Snapshot, error)
	UpdateProcess(ctx context.Context, input UpdateProcessInput) (*Snapshot, error)
	JumpToStage(ctx context.Context, input JumpInput) (*Snapshot, error)
	Hold(ctx context.Context, input HoldInput) (*Snapshot, error)
	AutoAdvance(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	AutoAdvanceBatch(ctx context.Context, batchSize int) (BatchResult, error)
	FinishForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (int, error)
}

// Options tunes stage scheduling.
type Options struct {
	TotalDurationMinutes int
	FallbackStepMinutes  int
	// SkipLazyAdvance leaves elapsed-time progress to the cron sweep.
	SkipLazyAdvance bool
}

// CreateInput describes the job spawned for one made-to-order line item.
// ID is optional and lets callers reference the job before it is written.
type CreateInput struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	OrderLineItemID uuid.UUID
	ProductID       uuid.UUID
	Quantity        int
	Actor           *outbox.ActorRef
}

// UpdateProcessInput changes the status of one process step.
type UpdateProcessInput struct {
	ProductionID uuid.UUID
	ProcessID    uuid.UUID
	Status       enums.ProcessStatus
	DelayReason  *string
	Remarks      *string
	Force        bool
	Actor        *outbox.ActorRef
}

// JumpInput moves a job straight to a stage.
type JumpInput struct {
	ProductionID uuid.UUID
	Stage        enums.Stage
	Reason       string
	Actor        *outbox.ActorRef
}

// HoldInput pauses a job.
type HoldInput struct {
	ProductionID uuid.UUID
	Reason       string
	Actor        *outbox.ActorRef
}

// BatchResult summarizes one auto-advance sweep.
type BatchResult struct {
	Scanned   int
	Advanced  int
	Completed int
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxEmitter
	ledger   stockCreditor
	tracking trackingSyncer
	metrics  productionRecorder
	logg     *logger.Logger
	opts     Options
	now      func() time.Time
}

// NewService builds the production service.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxEmitter,
	ledger stockCreditor,
	tracking trackingSyncer,
	metrics productionRecorder,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("production repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tracking == nil {
		return nil, fmt.Errorf("tracking syncer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.TotalDurationMinutes <= 0 {
		opts.TotalDurationMinutes = DefaultTotalMinutes
	}
	if opts.FallbackStepMinutes <= 0 {
		opts.FallbackStepMinutes = DefaultFallbackMinutes
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		ledger:   ledger,
		tracking: tracking,
		metrics:  metrics,
		logg:     logg,
		opts:     opts,
		now:      time.Now,
	}, nil
}

// Create inserts the job and its six process steps inside the caller's
// transaction. The first step starts immediately.
func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.ProductionJob, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for production create")
	}
	if input.OrderID == uuid.Nil || input.OrderLineItemID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order, line item and product ids are required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	start := s.now().UTC()
	durations := StageDurations(s.opts.TotalDurationMinutes)
	steps := make([]models.ProcessStep, len(enums.ProcessStages))
	for i, stage := range enums.ProcessStages {
		steps[i] = models.ProcessStep{
			ID:                       uuid.New(),
			Stage:                    stage,
			OrderIndex:               i + 1,
			Status:                   enums.ProcessStatusPending,
			EstimatedDurationMinutes: durations[i],
		}
	}
	steps[0].Status = enums.ProcessStatusInProgress
	steps[0].StartedAt = timePtr(start)

	jobID := input.ID
	if jobID == uuid.Nil {
		jobID = uuid.New()
	}
	job := &models.ProductionJob{
		ID:                      jobID,
		OrderID:                 input.OrderID,
		OrderLineItemID:         input.OrderLineItemID,
		ProductID:               input.ProductID,
		Quantity:                input.Quantity,
		CurrentStage:            steps[0].Stage,
		Status:                  enums.ProductionStatusInProgress,
		OverallProgress:         decimal.Zero,
		ProductionStartedAt:     start,
		EstimatedCompletionDate: EstimatedCompletion(start, steps, s.opts.FallbackStepMinutes),
		Steps:                   steps,
	}
	if err := s.repo.WithTx(tx).CreateJob(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create production job")
	}
	if err := s.emitProductionUpdated(ctx, tx, job, payloads.TriggerCreated, input.Actor); err != nil {
		return nil, err
	}
	if _, err := s.tracking.Sync(ctx, tx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync order tracking")
	}

	if s.metrics != nil {
		s.metrics.IncJobsCreated()
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"production_id": job.ID.String(),
		"order_id":      job.OrderID.String(),
		"product_id":    job.ProductID.String(),
		"quantity":      job.Quantity,
	})
	s.logg.Info(logCtx, "production job created")
	return job, nil
}

// Get returns the job after applying any elapsed-time advance that is due.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production id required")
	}
	job, err := s.repo.FindJob(ctx, id)
	if err != nil {
		return nil, mapJobError(err)
	}
	if !s.advanceDue(job) {
		return NewSnapshot(job), nil
	}
	return s.AutoAdvance(ctx, id)
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Snapshot, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	jobs, err := s.repo.FindJobsByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list production jobs")
	}
	out := make([]Snapshot, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		if !s.advanceDue(job) {
			out = append(out, *NewSnapshot(job))
			continue
		}
		snap, err := s.AutoAdvance(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func (s *service) UpdateProcess(ctx context.Context, input UpdateProcessInput) (*Snapshot, error) {
	if input.ProductionID == uuid.Nil || input.ProcessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production id and process id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid process status %q", input.Status)
	}

	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		job, err := s.lockJob(ctx, tx, input.ProductionID)
		if err != nil {
			return err
		}
		details := TransitionDetails{ProductionID: job.ID, ProcessID: input.ProcessID, From: string(job.Status), To: string(input.Status)}
		switch job.Status {
		case enums.ProductionStatusCompleted:
			return invalidTransition("production already completed", details)
		case enums.ProductionStatusHold:
			return invalidTransition("production is on hold", details)
		}

		idx := stepIndexByID(job.Steps, input.ProcessID)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "process not found")
		}

		prev := stateOf(job)
		now := s.now().UTC()
		changes, err := applyProcessUpdate(job.ID, job.Steps, idx, processUpdate{
			status:      input.Status,
			delayReason: input.DelayReason,
			remarks:     input.Remarks,
			force:       input.Force,
			actorID:     actorUserID(input.Actor),
		}, now)
		if err != nil {
			return err
		}
		if AllCompleted(job.Steps) {
			if err := s.completeJob(ctx, tx, job, now, input.Actor); err != nil {
				return err
			}
		}
		if err := s.persist(ctx, tx, job, changes, prev, payloads.TriggerProcessUpdate, input.Actor); err != nil {
			return err
		}
		snap = NewSnapshot(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// JumpToStage forces the job to the target stage. Selecting the current stage
// of a running job changes nothing.
func (s *service) JumpToStage(ctx context.Context, input JumpInput) (*Snapshot, error) {
	if input.ProductionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production id required")
	}
	if !input.Stage.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stage %q", input.Stage)
	}

	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		job, err := s.lockJob(ctx, tx, input.ProductionID)
		if err != nil {
			return err
		}
		if job.Status == enums.ProductionStatusCompleted {
			return invalidTransition("production already completed", TransitionDetails{
				ProductionID: job.ID,
				From:         string(job.CurrentStage),
				To:           string(input.Stage),
			})
		}
		if input.Stage == job.CurrentStage && job.Status == enums.ProductionStatusInProgress {
			snap = NewSnapshot(job)
			return nil
		}

		prev := stateOf(job)
		now := s.now().UTC()
		changes := applyJump(job.Steps, input.Stage, actorUserID(input.Actor), now)

		reason := input.Reason
		if reason == "" {
			reason = "moved to " + input.Stage.Label()
		}
		job.Notes = appendNote(job.Notes, "[Override] "+reason)
		job.Status = enums.ProductionStatusInProgress

		if AllCompleted(job.Steps) {
			if err := s.completeJob(ctx, tx, job, now, input.Actor); err != nil {
				return err
			}
		}
		if err := s.persist(ctx, tx, job, changes, prev, payloads.TriggerManualJump, input.Actor); err != nil {
			return err
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"production_id": job.ID.String(),
			"from_stage":    string(prev.stage),
			"to_stage":      string(input.Stage),
		})
		s.logg.Info(logCtx, "production stage jumped")
		snap = NewSnapshot(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Hold pauses a running job. Only a stage jump resumes it.
func (s *service) Hold(ctx context.Context, input HoldInput) (*Snapshot, error) {
	if input.ProductionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "production id required")
	}

	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		job, err := s.lockJob(ctx, tx, input.ProductionID)
		if err != nil {
			return err
		}
		switch job.Status {
		case enums.ProductionStatusHold:
			snap = NewSnapshot(job)
			return nil
		case enums.ProductionStatusCompleted:
			return invalidTransition("production already completed", TransitionDetails{
				ProductionID: job.ID,
				From:         string(job.Status),
				To:           string(enums.ProductionStatusHold),
			})
		}

		prev := stateOf(job)
		job.Status = enums.ProductionStatusHold
		if input.Reason != "" {
			job.Notes = appendNote(job.Notes, "[Hold] "+input.Reason)
		}
		if err := s.persist(ctx, tx, job, nil, prev, payloads.TriggerHold, input.Actor); err != nil {
			return err
		}
		s.logg.Info(s.logg.WithProductionID(ctx, job.ID.String()), "production put on hold")
		snap = NewSnapshot(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) lockJob(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProductionJob, error) {
	job, err := s.repo.WithTx(tx).LockJob(ctx, id)
	if err != nil {
		return nil, mapJobError(err)
	}
	SortSteps(job.Steps)
	return job, nil
}

func mapJobError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "production not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load production job")
}

func actorUserID(actor *outbox.ActorRef) *uuid.UUID {
	if actor == nil || actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}
