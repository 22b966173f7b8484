package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines persistence operations for materials and the usage ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error)
	FindMaterials(ctx context.Context, ids []uuid.UUID) ([]models.Material, error)
	LockMaterials(ctx context.Context, ids []uuid.UUID) ([]models.Material, error)
	UpdateOnHand(ctx context.Context, id uuid.UUID, onHand decimal.Decimal) error
	CreateUsage(ctx context.Context, usage *models.InventoryUsage) error
	ListUsageSince(ctx context.Context, materialID uuid.UUID, since time.Time) ([]models.InventoryUsage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *repository) FindMaterials(ctx context.Context, ids []uuid.UUID) ([]models.Material, error) {
	ids = SortedIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var materials []models.Material
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}

// LockMaterials selects the rows FOR UPDATE in ascending id order so that
// concurrent consumers always acquire locks in the same sequence.
func (r *repository) LockMaterials(ctx context.Context, ids []uuid.UUID) ([]models.Material, error) {
	ids = SortedIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var materials []models.Material
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *repository) UpdateOnHand(ctx context.Context, id uuid.UUID, onHand decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.Material{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"on_hand":    onHand,
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

func (r *repository) CreateUsage(ctx context.Context, usage *models.InventoryUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) ListUsageSince(ctx context.Context, materialID uuid.UUID, since time.Time) ([]models.InventoryUsage, error) {
	var usages []models.InventoryUsage
	err := r.db.WithContext(ctx).
		Where("material_id = ? AND used_at >= ?", materialID, since).
		Order("used_at ASC").
		Find(&usages).Error
	if err != nil {
		return nil, err
	}
	return usages, nil
}

// SortedIDs returns the distinct ids in ascending order.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
