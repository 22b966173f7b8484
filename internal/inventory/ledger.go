package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

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

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type lowStockRecorder interface {
	IncLowStock()
}

// Reference ties a ledger entry to what caused it.
type Reference struct {
	Reason       enums.InventoryUsageReason
	OrderID      *uuid.UUID
	ProductionID *uuid.UUID
	Actor        *outbox.ActorRef
	Notes        *string
}

// StockShortfall is the detail attached to INSUFFICIENT_STOCK errors.
type StockShortfall struct {
	MaterialID uuid.UUID       `json:"material_id"`
	SKU        string          `json:"sku"`
	Requested  decimal.Decimal `json:"requested"`
	Available  decimal.Decimal `json:"available"`
}

// Ledger is the only writer of materials.on_hand. Every change appends an
// inventory_usages row in the caller's transaction.
type Ledger struct {
	repo    Repository
	outbox  outboxEmitter
	logg    *logger.Logger
	metrics lowStockRecorder
	now     func() time.Time
}

func NewLedger(repo Repository, emitter outboxEmitter, logg *logger.Logger, metrics lowStockRecorder) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Ledger{
		repo:    repo,
		outbox:  emitter,
		logg:    logg,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Debit removes qty from the material. It fails with INSUFFICIENT_STOCK and
// changes nothing when on_hand would drop below zero.
func (l *Ledger) Debit(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, ref Reference) (*models.InventoryUsage, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for inventory debit")
	}
	if !qty.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit quantity must be positive")
	}

	material, err := l.lock(ctx, tx, materialID)
	if err != nil {
		return nil, err
	}

	before := material.OnHand
	after := before.Sub(qty)
	if after.IsNegative() {
		return nil, pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock for %s", material.SKU).
			WithDetails(StockShortfall{
				MaterialID: material.ID,
				SKU:        material.SKU,
				Requested:  qty,
				Available:  before,
			})
	}

	usage, err := l.apply(ctx, tx, material, qty.Neg(), after, ref)
	if err != nil {
		return nil, err
	}

	if crossedReorderPoint(before, after, material.ReorderPoint) {
		material.OnHand = after
		if err := l.emitLowStock(ctx, tx, material, ref.Actor); err != nil {
			return nil, err
		}
	}
	return usage, nil
}

// Credit adds qty to the material.
func (l *Ledger) Credit(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, ref Reference) (*models.InventoryUsage, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for inventory credit")
	}
	if !qty.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit quantity must be positive")
	}

	material, err := l.lock(ctx, tx, materialID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, material, qty, material.OnHand.Add(qty), ref)
}

func (l *Ledger) lock(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*models.Material, error) {
	rows, err := l.repo.WithTx(tx).LockMaterials(ctx, []uuid.UUID{materialID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock material")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
	}
	return &rows[0], nil
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, material *models.Material, signedQty, balance decimal.Decimal, ref Reference) (*models.InventoryUsage, error) {
	repo := l.repo.WithTx(tx)
	if err := repo.UpdateOnHand(ctx, material.ID, balance); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update on hand")
	}

	reason := ref.Reason
	if reason == "" {
		reason = enums.UsageReasonManualAdjustment
	}
	usage := &models.InventoryUsage{
		ID:           uuid.New(),
		MaterialID:   material.ID,
		Quantity:     signedQty,
		BalanceAfter: balance,
		UnitCost:     material.UnitCost,
		TotalCost:    signedQty.Abs().Mul(material.UnitCost).Round(4),
		Reason:       reason,
		OrderID:      ref.OrderID,
		ProductionID: ref.ProductionID,
		Notes:        ref.Notes,
		UsedAt:       l.now().UTC(),
	}
	if ref.Actor != nil && ref.Actor.UserID != uuid.Nil {
		actorID := ref.Actor.UserID
		usage.ActorID = &actorID
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append inventory usage")
	}
	return usage, nil
}

func (l *Ledger) emitLowStock(ctx context.Context, tx *gorm.DB, material *models.Material, actor *outbox.ActorRef) error {
	event := payloads.LowStockEvent{
		MaterialID:        material.ID,
		SKU:               material.SKU,
		Name:              material.Name,
		OnHand:            material.OnHand,
		ReorderPoint:      material.ReorderPoint,
		SafetyStock:       material.SafetyStock,
		SuggestedOrderQty: SuggestedOrderQty(*material),
	}
	if err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLowStock,
		AggregateType: enums.AggregateMaterial,
		AggregateID:   material.ID,
		Actor:         actor,
		Data:          event,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit low stock event")
	}

	if l.metrics != nil {
		l.metrics.IncLowStock()
	}
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"material_id":   material.ID.String(),
		"sku":           material.SKU,
		"on_hand":       material.OnHand.String(),
		"reorder_point": material.ReorderPoint.String(),
	})
	l.logg.Warn(logCtx, "low stock detected")
	return nil
}

// crossedReorderPoint is true only for the debit that moves stock from above
// the reorder point to at or below it.
func crossedReorderPoint(before, after, reorderPoint decimal.Decimal) bool {
	return before.GreaterThan(reorderPoint) && after.LessThanOrEqual(reorderPoint)
}

// SuggestedOrderQty tops stock up to twice the reorder point.
func SuggestedOrderQty(m models.Material) decimal.Decimal {
	target := m.ReorderPoint.Mul(decimal.NewFromInt(2))
	return decimal.Max(decimal.Zero, target.Sub(m.OnHand))
}
