package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes material reads and manual adjustments.
type Service interface {
	GetMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error)
	Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error)
}

// AdjustInput is a signed manual correction of on-hand stock.
type AdjustInput struct {
	MaterialID uuid.UUID
	Quantity   decimal.Decimal
	Reason     string
	Actor      *outbox.ActorRef
}

// AdjustResult returns the material after the adjustment and its ledger entry.
type AdjustResult struct {
	Material models.Material       `json:"material"`
	Entry    models.InventoryUsage `json:"entry"`
}

type service struct {
	repo   Repository
	ledger *Ledger
	tx     txRunner
	logg   *logger.Logger
}

func NewService(repo Repository, ledger *Ledger, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, logg: logg}, nil
}

func (s *service) GetMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	material, err := s.repo.FindMaterial(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	return material, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error) {
	if input.MaterialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}
	if input.Quantity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be zero")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	ref := Reference{
		Reason: enums.UsageReasonManualAdjustment,
		Actor:  input.Actor,
		Notes:  &reason,
	}

	var result AdjustResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var (
			entry *models.InventoryUsage
			err   error
		)
		if input.Quantity.IsNegative() {
			entry, err = s.ledger.Debit(ctx, tx, input.MaterialID, input.Quantity.Abs(), ref)
		} else {
			entry, err = s.ledger.Credit(ctx, tx, input.MaterialID, input.Quantity, ref)
		}
		if err != nil {
			return err
		}
		material, err := s.repo.WithTx(tx).FindMaterial(ctx, input.MaterialID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload material")
		}
		result = AdjustResult{Material: *material, Entry: *entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"material_id": input.MaterialID.String(),
		"quantity":    input.Quantity.String(),
		"on_hand":     result.Material.OnHand.String(),
	})
	s.logg.Info(logCtx, "inventory adjusted")
	return &result, nil
}
