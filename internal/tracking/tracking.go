package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the customer-facing order tracking projection.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, row *models.OrderTracking) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderTracking, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, stage enums.Stage, status enums.TrackingStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts or refreshes the row keyed by order_line_item_id.
func (r *repository) Upsert(ctx context.Context, row *models.OrderTracking) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_line_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"production_job_id",
				"current_stage",
				"status",
				"progress",
				"estimated_completion_date",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderTracking, error) {
	var rows []models.OrderTracking
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateOrderStatus stamps every row of the order once the order itself
// moves past production.
func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, stage enums.Stage, status enums.TrackingStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderTracking{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"current_stage": stage,
			"status":        status,
			"progress":      decimal.NewFromInt(100),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// Syncer projects order lines and production jobs into order_trackings.
type Syncer struct {
	repo Repository
	now  func() time.Time
}

func NewSyncer(repo Repository) (*Syncer, error) {
	if repo == nil {
		return nil, fmt.Errorf("tracking repository required")
	}
	return &Syncer{repo: repo, now: time.Now}, nil
}

// MarkStocked records a stocked line as finished at acceptance time.
func (s *Syncer) MarkStocked(ctx context.Context, tx *gorm.DB, line *models.OrderLineItem) (*models.OrderTracking, error) {
	row := &models.OrderTracking{
		OrderID:                 line.OrderID,
		OrderLineItemID:         line.ID,
		ProductID:               line.ProductID,
		CurrentStage:            enums.StageReadyForDelivery,
		Status:                  enums.TrackingStatusCompleted,
		Progress:                decimal.NewFromInt(100),
		EstimatedCompletionDate: s.now().UTC(),
	}
	if err := s.repo.WithTx(tx).Upsert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// MarkOrder moves every row of the order to a post-production status.
func (s *Syncer) MarkOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.TrackingStatus) error {
	return s.repo.WithTx(tx).UpdateOrderStatus(ctx, orderID, enums.StageReadyForDelivery, status)
}

// Sync mirrors the job's stage, status and progress.
func (s *Syncer) Sync(ctx context.Context, tx *gorm.DB, job *models.ProductionJob) (*models.OrderTracking, error) {
	row := FromJob(job)
	if err := s.repo.WithTx(tx).Upsert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// FromJob builds the projection for a production job.
func FromJob(job *models.ProductionJob) *models.OrderTracking {
	jobID := job.ID
	return &models.OrderTracking{
		OrderID:                 job.OrderID,
		OrderLineItemID:         job.OrderLineItemID,
		ProductID:               job.ProductID,
		ProductionJobID:         &jobID,
		CurrentStage:            job.CurrentStage,
		Status:                  statusForJob(job),
		Progress:                job.OverallProgress,
		EstimatedCompletionDate: job.EstimatedCompletionDate,
	}
}

func statusForJob(job *models.ProductionJob) enums.TrackingStatus {
	if job.Status == enums.ProductionStatusCompleted {
		return enums.TrackingStatusCompleted
	}
	for _, step := range job.Steps {
		if step.Stage == job.CurrentStage {
			return enums.TrackingStatusForProcess(step.Status)
		}
	}
	return enums.TrackingStatusPending
}
