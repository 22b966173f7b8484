package production

import (
	"context"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists production jobs, their process steps and the order
// status changes that job completion drives.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateJob(ctx context.Context, job *models.ProductionJob) error
	FindJob(ctx context.Context, id uuid.UUID) (*models.ProductionJob, error)
	LockJob(ctx context.Context, id uuid.UUID) (*models.ProductionJob, error)
	FindJobsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductionJob, error)
	ListInProgressIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	SaveJob(ctx context.Context, job *models.ProductionJob) error
	SaveStep(ctx context.Context, step *models.ProcessStep) error
	CountOpenJobs(ctx context.Context, orderID uuid.UUID) (int64, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
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

func (r *repository) CreateJob(ctx context.Context, job *models.ProductionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	for i := range job.Steps {
		if job.Steps[i].ID == uuid.Nil {
			job.Steps[i].ID = uuid.New()
		}
		job.Steps[i].ProductionJobID = job.ID
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindJob(ctx context.Context, id uuid.UUID) (*models.ProductionJob, error) {
	var job models.ProductionJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	if err := r.loadSteps(ctx, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// LockJob loads the job with its steps and holds the job row FOR UPDATE
// until the surrounding transaction ends.
func (r *repository) LockJob(ctx context.Context, id uuid.UUID) (*models.ProductionJob, error) {
	var job models.ProductionJob
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadSteps(ctx, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) loadSteps(ctx context.Context, job *models.ProductionJob) error {
	var steps []models.ProcessStep
	err := r.db.WithContext(ctx).
		Where("production_job_id = ?", job.ID).
		Order("order_index ASC").
		Find(&steps).Error
	if err != nil {
		return err
	}
	job.Steps = steps
	return nil
}

func (r *repository) FindJobsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductionJob, error) {
	var jobs []models.ProductionJob
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if err := r.loadSteps(ctx, &jobs[i]); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// ListInProgressIDs pages through In Progress jobs by id.
func (r *repository) ListInProgressIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.WithContext(ctx).
		Model(&models.ProductionJob{}).
		Where("status = ?", enums.ProductionStatusInProgress)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var ids []uuid.UUID
	err := query.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) SaveJob(ctx context.Context, job *models.ProductionJob) error {
	job.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.ProductionJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"current_stage":              job.CurrentStage,
			"status":                     job.Status,
			"overall_progress":           job.OverallProgress,
			"notes":                      job.Notes,
			"estimated_completion_date":  job.EstimatedCompletionDate,
			"actual_completion_date":     job.ActualCompletionDate,
			"finished_goods_credited_at": job.FinishedGoodsCreditedAt,
			"updated_at":                 job.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SaveStep(ctx context.Context, step *models.ProcessStep) error {
	step.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.ProcessStep{}).
		Where("id = ?", step.ID).
		Updates(map[string]any{
			"status":       step.Status,
			"started_at":   step.StartedAt,
			"completed_at": step.CompletedAt,
			"delay_reason": step.DelayReason,
			"remarks":      step.Remarks,
			"completed_by": step.CompletedBy,
			"updated_at":   step.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountOpenJobs counts the order's jobs that have not reached Completed.
func (r *repository) CountOpenJobs(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductionJob{}).
		Where("order_id = ? AND status <> ?", orderID, enums.ProductionStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
