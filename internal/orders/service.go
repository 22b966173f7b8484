package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/angelmondragon/furniture-production-backend/internal/consumption"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type materialConsumer interface {
	ConsumeAll(ctx context.Context, tx *gorm.DB, items []consumption.Item) ([]consumption.ConsumedMaterials, error)
	Check(ctx context.Context, items []consumption.Item) ([]consumption.Shortage, error)
}

type productionStarter interface {
	Create(ctx context.Context, tx *gorm.DB, input production.CreateInput) (*models.ProductionJob, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]production.Snapshot, error)
	FinishForDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (int, error)
}

type stockedTracker interface {
	MarkStocked(ctx context.Context, tx *gorm.DB, line *models.OrderLineItem) (*models.OrderTracking, error)
	MarkOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.TrackingStatus) error
}

type trackingReader interface {
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderTracking, error)
}

type rejectionRecorder interface {
	IncConsumptionRejected(code string)
}

// Service runs the order acceptance workflow.
type Service interface {
	AcceptOrder(ctx context.Context, input AcceptInput) (*OrderSnapshot, error)
	RejectOrder(ctx context.Context, input RejectInput) (*OrderSnapshot, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderSnapshot, error)
	MaterialCheck(ctx context.Context, id uuid.UUID) (*MaterialCheck, error)
	MarkReadyForDelivery(ctx context.Context, input DeliveryInput) (*OrderSnapshot, error)
	MarkDelivered(ctx context.Context, input DeliveryInput) (*OrderSnapshot, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	outbox     outboxPublisher
	consumer   materialConsumer
	production productionStarter
	stocked    stockedTracker
	tracking   trackingReader
	metrics    rejectionRecorder
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the order acceptance service.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	consumer materialConsumer,
	productionSvc productionStarter,
	stocked stockedTracker,
	tracking trackingReader,
	metrics rejectionRecorder,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("material consumer required")
	}
	if productionSvc == nil {
		return nil, fmt.Errorf("production service required")
	}
	if stocked == nil {
		return nil, fmt.Errorf("tracking syncer required")
	}
	if tracking == nil {
		return nil, fmt.Errorf("tracking reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		outbox:     publisher,
		consumer:   consumer,
		production: productionSvc,
		stocked:    stocked,
		tracking:   tracking,
		metrics:    metrics,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// AcceptOrder consumes materials and starts production for every
// made-to-order line in one transaction. Any failure leaves the order pending.
func (s *service) AcceptOrder(ctx context.Context, input AcceptInput) (*OrderSnapshot, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var consumed []consumption.ConsumedMaterials
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockPending(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if len(order.LineItems) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order has no line items")
		}

		jobIDs := make(map[uuid.UUID]uuid.UUID)
		var items []consumption.Item
		for _, line := range order.LineItems {
			if line.Product == nil {
				return pkgerrors.Newf(pkgerrors.CodeDependency, "product %s missing for line %s", line.ProductID, line.ID)
			}
			if !line.Product.Category.RequiresProduction() {
				continue
			}
			orderID, jobID := order.ID, uuid.New()
			jobIDs[line.ID] = jobID
			items = append(items, consumption.Item{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Ref: inventory.Reference{
					Reason:       enums.UsageReasonOrderAcceptance,
					OrderID:      &orderID,
					ProductionID: &jobID,
					Actor:        input.Actor,
				},
			})
		}

		if len(items) > 0 {
			consumed, err = s.consumer.ConsumeAll(ctx, tx, items)
			if err != nil {
				if s.metrics != nil {
					if typed := pkgerrors.As(err); typed != nil {
						s.metrics.IncConsumptionRejected(string(typed.Code()))
					}
				}
				return err
			}
		}

		now := s.now().UTC()
		decision := Decision{ActorID: actorUserID(input.Actor), At: now, Notes: trimmedOrNil(input.AdminNotes)}
		if err := repo.MarkAccepted(ctx, order.ID, decision); err != nil {
			return decisionError(err, order)
		}
		order.AcceptanceStatus = enums.OrderAcceptanceAccepted
		order.Status = enums.OrderStatusProcessing

		var (
			stage    enums.Stage
			firstJob *uuid.UUID
		)
		for i := range order.LineItems {
			line := &order.LineItems[i]
			jobID, ok := jobIDs[line.ID]
			if !ok {
				if _, err := s.stocked.MarkStocked(ctx, tx, line); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "track stocked line")
				}
				continue
			}
			job, err := s.production.Create(ctx, tx, production.CreateInput{
				ID:              jobID,
				OrderID:         order.ID,
				OrderLineItemID: line.ID,
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				Actor:           input.Actor,
			})
			if err != nil {
				return err
			}
			if firstJob == nil {
				firstJob = &job.ID
				stage = job.CurrentStage
			}
		}

		if err := s.emitStageChanged(ctx, tx, order, firstJob, stage, "", input.Actor); err != nil {
			return err
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":        order.ID.String(),
			"line_items":      len(order.LineItems),
			"production_jobs": len(jobIDs),
		})
		s.logg.Info(logCtx, "order accepted")
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	snap.Consumed = consumed
	return snap, nil
}

// RejectOrder closes a pending order without touching stock or production.
func (s *service) RejectOrder(ctx context.Context, input RejectInput) (*OrderSnapshot, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required").
			WithDetails(map[string]string{"rejection_reason": "required"})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockPending(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		decision := Decision{ActorID: actorUserID(input.Actor), At: s.now().UTC(), Notes: trimmedOrNil(input.AdminNotes), Reason: &reason}
		if err := repo.MarkRejected(ctx, order.ID, decision); err != nil {
			return decisionError(err, order)
		}
		order.AcceptanceStatus = enums.OrderAcceptanceRejected
		if err := s.emitStageChanged(ctx, tx, order, nil, "", reason, input.Actor); err != nil {
			return err
		}
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order rejected")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

// MarkReadyForDelivery releases a processing order whose production has
// finished. Orders with running jobs are released by their last job instead.
func (s *service) MarkReadyForDelivery(ctx context.Context, input DeliveryInput) (*OrderSnapshot, error) {
	return s.deliveryTransition(ctx, input, enums.OrderStatusReadyForDelivery, func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
		open, err := s.repo.WithTx(tx).CountOpenJobs(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open production jobs")
		}
		if open > 0 {
			return invalidOrderTransition(order, enums.OrderStatusReadyForDelivery, "production still running")
		}
		return s.stocked.MarkOrder(ctx, tx, order.ID, enums.TrackingStatusReadyForDelivery)
	}, enums.OrderStatusProcessing)
}

// MarkDelivered closes out an order handed to the customer. Any job still
// running is finished first so finished goods are credited before delivery.
func (s *service) MarkDelivered(ctx context.Context, input DeliveryInput) (*OrderSnapshot, error) {
	return s.deliveryTransition(ctx, input, enums.OrderStatusDelivered, func(ctx context.Context, tx *gorm.DB, order *models.Order) error {
		finished, err := s.production.FinishForDelivery(ctx, tx, order.ID, input.Actor)
		if err != nil {
			return err
		}
		if finished > 0 {
			s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, order.ID.String()), "production_jobs", finished), "production finished at delivery")
		}
		return s.stocked.MarkOrder(ctx, tx, order.ID, enums.TrackingStatusDelivered)
	}, enums.OrderStatusProcessing, enums.OrderStatusReadyForDelivery)
}

type deliveryStep func(ctx context.Context, tx *gorm.DB, order *models.Order) error

func (s *service) deliveryTransition(ctx context.Context, input DeliveryInput, to enums.OrderStatus, step deliveryStep, from ...enums.OrderStatus) (*OrderSnapshot, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, input.OrderID)
		if err != nil {
			return mapOrderError(err)
		}
		if order.AcceptanceStatus != enums.OrderAcceptanceAccepted || !slices.Contains(from, order.Status) {
			return invalidOrderTransition(order, to, fmt.Sprintf("order is %s", order.Status))
		}
		if err := step(ctx, tx, order); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, order.ID, to); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = to
		if err := s.emitStageChanged(ctx, tx, order, nil, enums.StageReadyForDelivery, "", input.Actor); err != nil {
			return err
		}
		s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, order.ID.String()), "status", string(to)), "order status changed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.OrderID)
}

// Get returns the order with its tracking rows and production jobs, applying
// any elapsed-time advance that is due.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderSnapshot, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	jobs, err := s.production.ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, mapOrderError(err)
	}
	trackings, err := s.tracking.FindByOrder(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order tracking")
	}
	return newSnapshot(order, trackings, jobs), nil
}

// MaterialCheck previews the shortages accepting the order would hit.
func (s *service) MaterialCheck(ctx context.Context, id uuid.UUID) (*MaterialCheck, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, mapOrderError(err)
	}

	var items []consumption.Item
	for _, line := range order.LineItems {
		if line.Product == nil || !line.Product.Category.RequiresProduction() {
			continue
		}
		items = append(items, consumption.Item{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	result := &MaterialCheck{OrderID: order.ID, Sufficient: true, Shortages: []consumption.Shortage{}}
	if len(items) == 0 {
		return result, nil
	}
	shortages, err := s.consumer.Check(ctx, items)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		result.Sufficient = false
		result.Shortages = shortages
	}
	return result, nil
}

func (s *service) lockPending(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, id)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if order.AcceptanceStatus.IsDecided() {
		return nil, alreadyDecided(order)
	}
	return order, nil
}

func (s *service) emitStageChanged(ctx context.Context, tx *gorm.DB, order *models.Order, productionID *uuid.UUID, stage enums.Stage, reason string, actor *outbox.ActorRef) error {
	event := payloads.OrderStageChangedEvent{
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		ProductionID:     productionID,
		Stage:            stage,
		Status:           order.Status,
		AcceptanceStatus: order.AcceptanceStatus,
		Reason:           reason,
	}
	if stage != "" {
		event.StageLabel = stage.Label()
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStageChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data:          event,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order stage changed")
	}
	return nil
}

func invalidOrderTransition(order *models.Order, to enums.OrderStatus, reason string) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move order to %s: %s", to, reason).
		WithDetails(StatusDetails{OrderID: order.ID, Status: order.Status, Target: to})
}

func alreadyDecided(order *models.Order) error {
	return pkgerrors.Newf(pkgerrors.CodeAlreadyDecided, "order already %s", order.AcceptanceStatus).
		WithDetails(DecisionDetails{OrderID: order.ID, AcceptanceStatus: order.AcceptanceStatus})
}

func decisionError(err error, order *models.Order) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return alreadyDecided(order)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order decision")
}

func mapOrderError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
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
