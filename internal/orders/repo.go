package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkAccepted(ctx context.Context, id uuid.UUID, decision Decision) error
	MarkRejected(ctx context.Context, id uuid.UUID, decision Decision) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	CountOpenJobs(ctx context.Context, orderID uuid.UUID) (int64, error)
}

// Decision is the audit trail written when an order leaves pending.
type Decision struct {
	ActorID *uuid.UUID
	At      time.Time
	Notes   *string
	Reason  *string
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder holds the order row FOR UPDATE until the transaction ends.
func (r *repository) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) loadLines(ctx context.Context, order *models.Order) error {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("order_id = ?", order.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return err
	}
	order.LineItems = items
	return nil
}

// MarkAccepted only touches orders still pending; gorm.ErrRecordNotFound
// means another decision won. Accepted orders always start processing.
func (r *repository) MarkAccepted(ctx context.Context, id uuid.UUID, decision Decision) error {
	return r.decide(ctx, id, map[string]any{
		"acceptance_status": enums.OrderAcceptanceAccepted,
		"status":            enums.OrderStatusProcessing,
		"accepted_by":       decision.ActorID,
		"accepted_at":       decision.At,
		"admin_notes":       decision.Notes,
		"updated_at":        decision.At,
	})
}

func (r *repository) MarkRejected(ctx context.Context, id uuid.UUID, decision Decision) error {
	return r.decide(ctx, id, map[string]any{
		"acceptance_status": enums.OrderAcceptanceRejected,
		"rejected_by":       decision.ActorID,
		"rejected_at":       decision.At,
		"rejection_reason":  decision.Reason,
		"admin_notes":       decision.Notes,
		"updated_at":        decision.At,
	})
}

func (r *repository) decide(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND acceptance_status = ?", id, enums.OrderAcceptancePending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateStatus moves a locked order to its next fulfilment status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
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

func (r *repository) CountOpenJobs(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductionJob{}).
		Where("order_id = ? AND status <> ?", orderID, enums.ProductionStatusCompleted).
		Count(&count).Error
	return count, err
}
