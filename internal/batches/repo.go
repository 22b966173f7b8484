package batches

import (
	"context"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists batch output records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, batch *models.BatchOutput) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.BatchOutput, error)
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

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) Create(ctx context.Context, batch *models.BatchOutput) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// ListByProduct returns the newest batches first.
func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.BatchOutput, error) {
	var rows []models.BatchOutput
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("produced_on DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
