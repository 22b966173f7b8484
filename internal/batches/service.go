package batches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/furniture-production-backend/internal/consumption"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxBatchQuantity = 100000
	defaultListLimit = 30
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type materialConsumer interface {
	Consume(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, ref inventory.Reference) (*consumption.ConsumedMaterials, error)
}

type stockCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, qty decimal.Decimal, ref inventory.Reference) (*models.InventoryUsage, error)
}

type rejectionRecorder interface {
	IncConsumptionRejected(code string)
}

// Service records production runs of stocked products, which are built in
// daily batches instead of per order.
type Service interface {
	RecordBatchOutput(ctx context.Context, input RecordInput) (*BatchResult, error)
	List(ctx context.Context, productID uuid.UUID, limit int) ([]BatchSnapshot, error)
}

// RecordInput is one finished batch. ProducedOn defaults to today (UTC).
type RecordInput struct {
	ProductID  uuid.UUID
	Quantity   int
	ProducedOn time.Time
	Notes      *string
	Actor      *outbox.ActorRef
}

// BatchSnapshot is the API view of a recorded batch.
type BatchSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Quantity      int             `json:"quantity"`
	ProducedOn    string          `json:"produced_on"`
	MaterialsCost decimal.Decimal `json:"materials_cost"`
	Notes         *string         `json:"notes,omitempty"`
	ProducedBy    *uuid.UUID      `json:"produced_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FinishedGoodsCredit is the ledger credit made for the batch.
type FinishedGoodsCredit struct {
	MaterialID   uuid.UUID       `json:"material_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// BatchResult is the recorded batch with its ledger movements.
type BatchResult struct {
	Batch         BatchSnapshot                 `json:"batch"`
	Consumed      consumption.ConsumedMaterials `json:"consumed_materials"`
	FinishedGoods FinishedGoodsCredit           `json:"finished_goods"`
}

type service struct {
	repo     Repository
	tx       txRunner
	consumer materialConsumer
	ledger   stockCreditor
	metrics  rejectionRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx txRunner, consumer materialConsumer, ledger stockCreditor, metrics rejectionRecorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("batch repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("material consumer required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, consumer: consumer, ledger: ledger, metrics: metrics, logg: logg, now: time.Now}, nil
}

// RecordBatchOutput deducts the batch's BOM materials and credits the
// product's finished goods in one transaction. A shortage on any material
// leaves every balance untouched.
func (s *service) RecordBatchOutput(ctx context.Context, input RecordInput) (*BatchResult, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 || input.Quantity > maxBatchQuantity {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", maxBatchQuantity).
			WithDetails(map[string]string{"quantity": "out of range"})
	}
	producedOn := input.ProducedOn
	if producedOn.IsZero() {
		producedOn = s.now()
	}
	producedOn = truncateDay(producedOn)

	batch := &models.BatchOutput{
		ID:         uuid.New(),
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		ProducedOn: producedOn,
		Notes:      trimmedOrNil(input.Notes),
		ProducedBy: actorUserID(input.Actor),
	}
	var result BatchResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.Category.RequiresProduction() {
			return pkgerrors.New(pkgerrors.CodeValidation, "made-to-order products are produced through orders").
				WithDetails(map[string]string{"product_id": "not a stocked product"})
		}
		if product.FinishedGoodsMaterialID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product has no finished goods item").
				WithDetails(map[string]string{"product_id": "missing finished goods item"})
		}

		note := "batch " + batch.ID.String()
		ref := inventory.Reference{Reason: enums.UsageReasonProductionOutput, Actor: input.Actor, Notes: &note}
		consumed, err := s.consumer.Consume(ctx, tx, product.ID, batch.Quantity, ref)
		if err != nil {
			if s.metrics != nil {
				if typed := pkgerrors.As(err); typed != nil {
					s.metrics.IncConsumptionRejected(string(typed.Code()))
				}
			}
			return err
		}
		entry, err := s.ledger.Credit(ctx, tx, *product.FinishedGoodsMaterialID, decimal.NewFromInt(int64(batch.Quantity)), ref)
		if err != nil {
			return err
		}

		batch.MaterialsCost = consumed.TotalCost
		if err := repo.Create(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record batch output")
		}
		result = BatchResult{
			Batch:    newBatchSnapshot(*batch),
			Consumed: *consumed,
			FinishedGoods: FinishedGoodsCredit{
				MaterialID:   entry.MaterialID,
				Quantity:     entry.Quantity,
				BalanceAfter: entry.BalanceAfter,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id":     batch.ProductID.String(),
		"quantity":       batch.Quantity,
		"materials_cost": batch.MaterialsCost.String(),
	}), "batch output recorded")
	return &result, nil
}

func (s *service) List(ctx context.Context, productID uuid.UUID, limit int) ([]BatchSnapshot, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.repo.ListByProduct(ctx, productID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batch outputs")
	}
	out := make([]BatchSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, newBatchSnapshot(row))
	}
	return out, nil
}

func newBatchSnapshot(b models.BatchOutput) BatchSnapshot {
	return BatchSnapshot{
		ID:            b.ID,
		ProductID:     b.ProductID,
		Quantity:      b.Quantity,
		ProducedOn:    b.ProducedOn.Format(time.DateOnly),
		MaterialsCost: b.MaterialsCost,
		Notes:         b.Notes,
		ProducedBy:    b.ProducedBy,
		CreatedAt:     b.CreatedAt,
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func actorUserID(actor *outbox.ActorRef) *uuid.UUID {
	if actor == nil || actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
