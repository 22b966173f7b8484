package consumption

import (
	"context"
	"fmt"

	"github.com/angelmondragon/furniture-production-backend/internal/bom"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type requirementResolver interface {
	Resolve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) ([]bom.Requirement, error)
}

type stockDebitor interface {
	Debit(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, ref inventory.Reference) (*models.InventoryUsage, error)
}

// Item is one product quantity to build.
type Item struct {
	ProductID uuid.UUID
	Quantity  int
	Ref       inventory.Reference
}

// Shortage describes a material that cannot cover the requested build.
type Shortage struct {
	MaterialID uuid.UUID       `json:"material_id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Deficit    decimal.Decimal `json:"deficit"`
}

// ShortageDetails is attached to INSUFFICIENT_MATERIALS errors.
type ShortageDetails struct {
	Shortages []Shortage `json:"shortages"`
}

// ConsumedMaterial is one ledger debit made for an item.
type ConsumedMaterial struct {
	MaterialID   uuid.UUID       `json:"material_id"`
	SKU          string          `json:"sku"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// ConsumedMaterials is the result of consuming one item.
type ConsumedMaterials struct {
	ProductID uuid.UUID          `json:"product_id"`
	Materials []ConsumedMaterial `json:"materials"`
	TotalCost decimal.Decimal    `json:"total_cost"`
}

// Engine deducts BOM materials for builds, all or nothing.
type Engine struct {
	resolver requirementResolver
	repo     inventory.Repository
	ledger   stockDebitor
}

func NewEngine(resolver requirementResolver, repo inventory.Repository, ledger stockDebitor) (*Engine, error) {
	if resolver == nil {
		return nil, fmt.Errorf("bom resolver required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	return &Engine{resolver: resolver, repo: repo, ledger: ledger}, nil
}

// Consume deducts the materials for a single product build.
func (e *Engine) Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, ref inventory.Reference) (*ConsumedMaterials, error) {
	out, err := e.ConsumeAll(ctx, tx, []Item{{ProductID: productID, Quantity: quantity, Ref: ref}})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ConsumeAll resolves every item, locks the union of materials in ascending
// id order and checks the aggregated requirement against on-hand stock. If
// any material is short nothing is deducted and the full shortage list is
// returned. Otherwise each item is debited line by line inside tx.
func (e *Engine) ConsumeAll(ctx context.Context, tx *gorm.DB, items []Item) ([]ConsumedMaterials, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for consumption")
	}
	plans, totals, err := e.plan(ctx, tx, items)
	if err != nil {
		return nil, err
	}

	locked, err := e.repo.WithTx(tx).LockMaterials(ctx, materialIDs(totals))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock materials")
	}
	if shortages := findShortages(totals, locked); len(shortages) > 0 {
		return nil, insufficientMaterials(shortages)
	}

	out := make([]ConsumedMaterials, 0, len(plans))
	for i, reqs := range plans {
		consumed := ConsumedMaterials{ProductID: items[i].ProductID, TotalCost: decimal.Zero}
		for _, req := range reqs {
			if !req.RequiredQty.IsPositive() {
				continue
			}
			entry, err := e.ledger.Debit(ctx, tx, req.MaterialID, req.RequiredQty, items[i].Ref)
			if err != nil {
				return nil, err
			}
			consumed.Materials = append(consumed.Materials, ConsumedMaterial{
				MaterialID:   req.MaterialID,
				SKU:          req.SKU,
				Quantity:     req.RequiredQty,
				UnitCost:     entry.UnitCost,
				TotalCost:    entry.TotalCost,
				BalanceAfter: entry.BalanceAfter,
			})
			consumed.TotalCost = consumed.TotalCost.Add(entry.TotalCost)
		}
		out = append(out, consumed)
	}
	return out, nil
}

// Check runs the same requirement and stock comparison as ConsumeAll without
// locking or writing. An empty result means the items can be built now.
func (e *Engine) Check(ctx context.Context, items []Item) ([]Shortage, error) {
	_, totals, err := e.plan(ctx, nil, items)
	if err != nil {
		return nil, err
	}
	materials, err := e.repo.FindMaterials(ctx, materialIDs(totals))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load materials")
	}
	return findShortages(totals, materials), nil
}

type aggregate struct {
	req   bom.Requirement
	total decimal.Decimal
	order int
}

func (e *Engine) plan(ctx context.Context, tx *gorm.DB, items []Item) ([][]bom.Requirement, map[uuid.UUID]*aggregate, error) {
	if len(items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	plans := make([][]bom.Requirement, 0, len(items))
	totals := make(map[uuid.UUID]*aggregate)
	for _, item := range items {
		reqs, err := e.resolver.Resolve(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, nil, err
		}
		for _, req := range reqs {
			agg, ok := totals[req.MaterialID]
			if !ok {
				agg = &aggregate{req: req, total: decimal.Zero, order: len(totals)}
				totals[req.MaterialID] = agg
			}
			agg.total = agg.total.Add(req.RequiredQty)
		}
		plans = append(plans, reqs)
	}
	return plans, totals, nil
}

func materialIDs(totals map[uuid.UUID]*aggregate) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	return inventory.SortedIDs(ids)
}

// findShortages reports, in first-seen BOM order, every material whose
// on-hand stock is below the aggregated requirement.
func findShortages(totals map[uuid.UUID]*aggregate, materials []models.Material) []Shortage {
	onHand := make(map[uuid.UUID]models.Material, len(materials))
	for _, m := range materials {
		onHand[m.ID] = m
	}

	shortages := make([]Shortage, len(totals))
	n := 0
	for id, agg := range totals {
		available := decimal.Zero
		if m, ok := onHand[id]; ok {
			available = m.OnHand
		}
		if available.GreaterThanOrEqual(agg.total) {
			continue
		}
		shortages[agg.order] = Shortage{
			MaterialID: id,
			SKU:        agg.req.SKU,
			Name:       agg.req.Name,
			Required:   agg.total,
			Available:  available,
			Deficit:    agg.total.Sub(available),
		}
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]Shortage, 0, n)
	for _, s := range shortages {
		if s.MaterialID != uuid.Nil {
			out = append(out, s)
		}
	}
	return out
}

func insufficientMaterials(shortages []Shortage) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientMaterials, "%d material(s) short", len(shortages)).
		WithDetails(ShortageDetails{Shortages: shortages})
}
