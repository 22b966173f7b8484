package production

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/internal/tracking"
	"github.com/angelmondragon/furniture-production-backend/pkg/db"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/dbtest"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/metrics"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	conn          *gorm.DB
	svc           *service
	clock         time.Time
	order         *models.Order
	finishedGoods *models.Material
	job           *models.ProductionJob
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "production-test", Output: io.Discard})
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn), publisher, logg, nil)
	require.NoError(t, err)
	syncer, err := tracking.NewSyncer(tracking.NewRepository(conn))
	require.NoError(t, err)

	built, err := NewService(NewRepository(conn), db.NewFromConn(conn), publisher, ledger, syncer, metrics.NewProductionMetrics(nil), logg, Options{})
	require.NoError(t, err)

	f := &fixture{conn: conn, svc: built.(*service), clock: t0}
	f.svc.now = func() time.Time { return f.clock }

	f.finishedGoods = dbtest.Material(t, conn, "FG-OAK-TABLE", "0", "0", "450")
	table := dbtest.Product(t, conn, "OAK-TABLE", enums.ProductCategoryMadeToOrder)
	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", table.ID).Update("finished_goods_material_id", f.finishedGoods.ID).Error)

	f.order = dbtest.PendingOrder(t, conn, dbtest.LineSpec{Product: table, Quantity: 2})
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", f.order.ID).Updates(map[string]any{
		"acceptance_status": enums.OrderAcceptanceAccepted,
		"status":            enums.OrderStatusProcessing,
	}).Error)

	line := f.order.LineItems[0]
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		f.job, err = f.svc.Create(context.Background(), tx, CreateInput{
			OrderID:         f.order.ID,
			OrderLineItemID: line.ID,
			ProductID:       table.ID,
			Quantity:        line.Quantity,
		})
		return err
	}))
	return f
}

func (f *fixture) stepID(t *testing.T, stage enums.Stage) uuid.UUID {
	t.Helper()
	for _, step := range f.job.Steps {
		if step.Stage == stage {
			return step.ID
		}
	}
	t.Fatalf("no step for stage %s", stage)
	return uuid.Nil
}

func requireSingleActive(t *testing.T, snap *Snapshot) {
	t.Helper()
	active := 0
	for _, p := range snap.Processes {
		if p.Status.IsActive() {
			active++
		}
	}
	require.LessOrEqual(t, active, 1)
}

func requireStatuses(t *testing.T, snap *Snapshot, want ...enums.ProcessStatus) {
	t.Helper()
	require.Len(t, snap.Processes, len(want))
	for i, status := range want {
		require.Equalf(t, status, snap.Processes[i].Status, "step %d", i+1)
	}
}

func TestCreateStartsFirstStep(t *testing.T) {
	f := newFixture(t)

	snap, err := f.svc.Get(context.Background(), f.job.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ProductionStatusInProgress, snap.Status)
	require.Equal(t, enums.StageMaterialPreparation, snap.CurrentStage)
	require.True(t, snap.OverallProgress.IsZero())
	requireStatuses(t, snap,
		enums.ProcessStatusInProgress, enums.ProcessStatusPending, enums.ProcessStatusPending,
		enums.ProcessStatusPending, enums.ProcessStatusPending, enums.ProcessStatusPending,
	)
	require.WithinDuration(t, t0.Add(20160*time.Minute), snap.EstimatedCompletionDate, time.Second)
	require.Equal(t, 2016, snap.Processes[0].EstimatedDurationMinutes)

	rows, err := tracking.NewRepository(f.conn).FindByOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.TrackingStatusInProduction, rows[0].Status)
	require.Equal(t, int64(1), dbtest.Count(t, f.conn, "outbox_events", "event_type = ?", enums.EventProductionUpdated))
}

func TestCompletingLastStepCreditsFinishedGoodsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := &outbox.ActorRef{UserID: uuid.New(), Role: string(enums.RoleStaff)}

	var snap *Snapshot
	for i, stage := range enums.ProcessStages {
		f.clock = t0.Add(time.Duration(i+1) * time.Minute)
		var err error
		snap, err = f.svc.UpdateProcess(ctx, UpdateProcessInput{
			ProductionID: f.job.ID,
			ProcessID:    f.stepID(t, stage),
			Status:       enums.ProcessStatusCompleted,
			Actor:        actor,
		})
		require.NoError(t, err)
		requireSingleActive(t, snap)
	}

	require.Equal(t, enums.ProductionStatusCompleted, snap.Status)
	require.Equal(t, enums.StageReadyForDelivery, snap.CurrentStage)
	require.True(t, snap.OverallProgress.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, snap.ActualCompletionDate)
	require.NotNil(t, snap.Processes[5].CompletedBy)
	require.Equal(t, actor.UserID, *snap.Processes[5].CompletedBy)

	require.True(t, dbtest.OnHand(t, f.conn, f.finishedGoods.ID).Equal(decimal.NewFromInt(2)))
	require.Equal(t, int64(1), dbtest.Count(t, f.conn, "inventory_usages", "reason = ? AND production_job_id = ?", enums.UsageReasonProductionOutput, f.job.ID))

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.order.ID).Error)
	require.Equal(t, enums.OrderStatusReadyForDelivery, order.Status)

	_, err := f.svc.UpdateProcess(ctx, UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    f.stepID(t, enums.StageQualityCheck),
		Status:       enums.ProcessStatusInProgress,
		Force:        true,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.AutoAdvance(ctx, f.job.ID)
	require.NoError(t, err)
	require.True(t, dbtest.OnHand(t, f.conn, f.finishedGoods.ID).Equal(decimal.NewFromInt(2)))
	require.Equal(t, int64(6), dbtest.Count(t, f.conn, "process_steps", "production_job_id = ? AND status = ?", f.job.ID, enums.ProcessStatusCompleted))
}

func TestUpdateProcessRejectsOutOfOrderStep(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateProcess(context.Background(), UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    f.stepID(t, enums.StageAssembly),
		Status:       enums.ProcessStatusInProgress,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	details, ok := pkgerrors.As(err).Details().(TransitionDetails)
	require.True(t, ok)
	require.Equal(t, string(enums.ProcessStatusPending), details.From)

	_, err = f.svc.UpdateProcess(context.Background(), UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    uuid.New(),
		Status:       enums.ProcessStatusCompleted,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDelayedStepKeepsSingleActiveSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reason := "varnish shipment late"

	snap, err := f.svc.UpdateProcess(ctx, UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    f.stepID(t, enums.StageMaterialPreparation),
		Status:       enums.ProcessStatusDelayed,
		DelayReason:  &reason,
	})
	require.NoError(t, err)
	require.Equal(t, enums.ProcessStatusDelayed, snap.Processes[0].Status)
	require.Equal(t, reason, *snap.Processes[0].DelayReason)
	require.True(t, snap.OverallProgress.Equal(decimal.RequireFromString("8.33")))

	snap, err = f.svc.UpdateProcess(ctx, UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    f.stepID(t, enums.StageMaterialPreparation),
		Status:       enums.ProcessStatusCompleted,
	})
	require.NoError(t, err)
	requireSingleActive(t, snap)
	require.Equal(t, enums.StageCuttingShaping, snap.CurrentStage)
}

func TestJumpToStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateProcess(ctx, UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    f.stepID(t, enums.StageMaterialPreparation),
		Status:       enums.ProcessStatusCompleted,
	})
	require.NoError(t, err)

	f.clock = t0.Add(time.Hour)
	snap, err := f.svc.JumpToStage(ctx, JumpInput{ProductionID: f.job.ID, Stage: enums.StageSanding, Reason: "rush order"})
	require.NoError(t, err)
	requireStatuses(t, snap,
		enums.ProcessStatusCompleted, enums.ProcessStatusCompleted, enums.ProcessStatusCompleted,
		enums.ProcessStatusInProgress, enums.ProcessStatusPending, enums.ProcessStatusPending,
	)
	require.Equal(t, enums.StageSanding, snap.CurrentStage)
	require.True(t, snap.OverallProgress.Equal(decimal.RequireFromString("58.33")))
	require.NotNil(t, snap.Notes)
	require.Contains(t, *snap.Notes, "[Override] rush order")

	events := dbtest.Count(t, f.conn, "outbox_events", "")
	again, err := f.svc.JumpToStage(ctx, JumpInput{ProductionID: f.job.ID, Stage: enums.StageSanding, Reason: "again"})
	require.NoError(t, err)
	requireStatuses(t, again,
		enums.ProcessStatusCompleted, enums.ProcessStatusCompleted, enums.ProcessStatusCompleted,
		enums.ProcessStatusInProgress, enums.ProcessStatusPending, enums.ProcessStatusPending,
	)
	require.Equal(t, events, dbtest.Count(t, f.conn, "outbox_events", ""))
	require.Equal(t, 1, strings.Count(*again.Notes, "[Override]"))

	rows, err := tracking.NewRepository(f.conn).FindByOrder(ctx, f.order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.StageSanding, rows[0].CurrentStage)
	require.Equal(t, int64(2), dbtest.Count(t, f.conn, "outbox_events", "event_type = ? AND aggregate_id = ?", enums.EventOrderStageChanged, f.order.ID))
}

func TestJumpToTerminalStageCompletesJob(t *testing.T) {
	f := newFixture(t)

	snap, err := f.svc.JumpToStage(context.Background(), JumpInput{ProductionID: f.job.ID, Stage: enums.StageReadyForDelivery})
	require.NoError(t, err)
	require.Equal(t, enums.ProductionStatusCompleted, snap.Status)
	require.True(t, dbtest.OnHand(t, f.conn, f.finishedGoods.ID).Equal(decimal.NewFromInt(2)))

	_, err = f.svc.JumpToStage(context.Background(), JumpInput{ProductionID: f.job.ID, Stage: enums.StageAssembly})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestHoldBlocksUpdatesUntilJump(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Hold(ctx, HoldInput{ProductionID: f.job.ID, Reason: "awaiting customer fabric"})
	require.NoError(t, err)
	require.Equal(t, enums.ProductionStatusHold, snap.Status)

	_, err = f.svc.UpdateProcess(ctx, UpdateProcessInput{
		ProductionID: f.job.ID,
		ProcessID:    f.stepID(t, enums.StageMaterialPreparation),
		Status:       enums.ProcessStatusCompleted,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	f.clock = t0.Add(30 * 24 * time.Hour)
	snap, err = f.svc.Get(ctx, f.job.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ProcessStatusInProgress, snap.Processes[0].Status)

	snap, err = f.svc.JumpToStage(ctx, JumpInput{ProductionID: f.job.ID, Stage: enums.StageMaterialPreparation, Reason: "fabric arrived"})
	require.NoError(t, err)
	require.Equal(t, enums.ProductionStatusInProgress, snap.Status)
	require.Contains(t, *snap.Notes, "[Hold] awaiting customer fabric")
}

func TestGetAppliesElapsedAutoAdvance(t *testing.T) {
	f := newFixture(t)

	f.clock = t0.Add((2016 + 4032 + 10) * time.Minute)
	snap, err := f.svc.Get(context.Background(), f.job.ID)
	require.NoError(t, err)
	requireStatuses(t, snap,
		enums.ProcessStatusCompleted, enums.ProcessStatusCompleted, enums.ProcessStatusInProgress,
		enums.ProcessStatusPending, enums.ProcessStatusPending, enums.ProcessStatusPending,
	)
	require.Equal(t, enums.StageAssembly, snap.CurrentStage)
	require.True(t, snap.OverallProgress.Equal(decimal.RequireFromString("41.67")))
	require.WithinDuration(t, t0.Add(2016*time.Minute), *snap.Processes[0].CompletedAt, time.Second)
	require.Nil(t, snap.Processes[0].CompletedBy)

	var stored models.ProcessStep
	require.NoError(t, f.conn.First(&stored, "id = ?", snap.Processes[2].ID).Error)
	require.Equal(t, enums.ProcessStatusInProgress, stored.Status)
}

func TestBackwardJumpSurvivesLazyAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock = t0.Add(9 * 24 * time.Hour)
	snap, err := f.svc.Get(ctx, f.job.ID)
	require.NoError(t, err)
	require.Equal(t, enums.StageSanding, snap.CurrentStage)

	jumpedAt := f.clock
	_, err = f.svc.JumpToStage(ctx, JumpInput{ProductionID: f.job.ID, Stage: enums.StageCuttingShaping, Reason: "rework"})
	require.NoError(t, err)

	f.clock = jumpedAt.Add(time.Minute)
	snap, err = f.svc.Get(ctx, f.job.ID)
	require.NoError(t, err)
	require.Equal(t, enums.StageCuttingShaping, snap.CurrentStage)
	requireStatuses(t, snap,
		enums.ProcessStatusCompleted, enums.ProcessStatusInProgress, enums.ProcessStatusPending,
		enums.ProcessStatusPending, enums.ProcessStatusPending, enums.ProcessStatusPending,
	)
	require.Nil(t, snap.Processes[2].CompletedAt)

	f.clock = jumpedAt.Add((4032 + 5) * time.Minute)
	snap, err = f.svc.Get(ctx, f.job.ID)
	require.NoError(t, err)
	require.Equal(t, enums.StageAssembly, snap.CurrentStage)
	require.WithinDuration(t, jumpedAt.Add(4032*time.Minute), *snap.Processes[1].CompletedAt, time.Second)
}

func TestAutoAdvanceBatchCompletesElapsedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock = t0.Add(15 * 24 * time.Hour)
	result, err := f.svc.AutoAdvanceBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, BatchResult{Scanned: 1, Advanced: 1, Completed: 1}, result)

	snap, err := f.svc.Get(ctx, f.job.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ProductionStatusCompleted, snap.Status)
	require.WithinDuration(t, t0.Add(20160*time.Minute), *snap.ActualCompletionDate, time.Second)
	require.True(t, dbtest.OnHand(t, f.conn, f.finishedGoods.ID).Equal(decimal.NewFromInt(2)))

	result, err = f.svc.AutoAdvanceBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, BatchResult{}, result)
}

func TestOrderWaitsForEveryJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chair := dbtest.Product(t, f.conn, "OAK-CHAIR", enums.ProductCategoryMadeToOrder)
	second := models.OrderLineItem{ID: uuid.New(), OrderID: f.order.ID, ProductID: chair.ID, Quantity: 4}
	require.NoError(t, f.conn.Omit("Product").Create(&second).Error)
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Create(ctx, tx, CreateInput{OrderID: f.order.ID, OrderLineItemID: second.ID, ProductID: chair.ID, Quantity: 4})
		return err
	}))

	_, err := f.svc.JumpToStage(ctx, JumpInput{ProductionID: f.job.ID, Stage: enums.StageCompleted})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", f.order.ID).Error)
	require.Equal(t, enums.OrderStatusProcessing, order.Status)

	snaps, err := f.svc.ListByOrder(ctx, f.order.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
}
