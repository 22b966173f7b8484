package bom

import (
	"context"
	"fmt"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Requirement is the material quantity needed to build a product quantity.
type Requirement struct {
	MaterialID  uuid.UUID       `json:"material_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	QtyPerUnit  decimal.Decimal `json:"qty_per_unit"`
	RequiredQty decimal.Decimal `json:"required_qty"`
}

// Repository reads bill-of-material lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLines(ctx context.Context, productID uuid.UUID) ([]models.BOMLine, error)
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

func (r *repository) FindLines(ctx context.Context, productID uuid.UUID) ([]models.BOMLine, error) {
	var lines []models.BOMLine
	err := r.db.WithContext(ctx).
		Preload("Material").
		Where("product_id = ?", productID).
		Order("position ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// Resolver expands a product BOM into material requirements.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("bom repository required")
	}
	return &Resolver{repo: repo}, nil
}

// Resolve returns one requirement per BOM line in BOM order. Each required
// quantity is qty_per_unit x quantity rounded half-up to the material's unit
// precision. A product without lines fails with BOM_NOT_FOUND.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) ([]Requirement, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	lines, err := r.repo.WithTx(tx).FindLines(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bom")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBomNotFound, "product has no bill of materials").
			WithDetails(map[string]any{"product_id": productID})
	}

	out := make([]Requirement, 0, len(lines))
	for _, line := range lines {
		if line.Material == nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "bom line %s references a missing material", line.ID)
		}
		out = append(out, Requirement{
			MaterialID:  line.MaterialID,
			SKU:         line.Material.SKU,
			Name:        line.Material.Name,
			Unit:        line.Material.Unit,
			QtyPerUnit:  line.QtyPerUnit,
			RequiredQty: RequiredQuantity(line.QtyPerUnit, quantity, line.Material.UnitPrecision),
		})
	}
	return out, nil
}

// RequiredQuantity is qtyPerUnit x quantity rounded half-up to precision places.
func RequiredQuantity(qtyPerUnit decimal.Decimal, quantity int, precision int32) decimal.Decimal {
	if precision < 0 {
		precision = 0
	}
	return qtyPerUnit.Mul(decimal.NewFromInt(int64(quantity))).Round(precision)
}
