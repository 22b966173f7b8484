package consumption

import (
	"context"
	"io"
	"testing"

	"github.com/angelmondragon/furniture-production-backend/internal/bom"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/pkg/db/dbtest"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestEngine(t *testing.T, conn *gorm.DB) *Engine {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "consumption-test", Output: io.Discard})
	invRepo := inventory.NewRepository(conn)
	ledger, err := inventory.NewLedger(invRepo, outbox.NewService(outbox.NewRepository(conn), logg), logg, nil)
	require.NoError(t, err)
	resolver, err := bom.NewResolver(bom.NewRepository(conn))
	require.NoError(t, err)
	engine, err := NewEngine(resolver, invRepo, ledger)
	require.NoError(t, err)
	return engine
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestConsumeShortageLeavesEveryLineUntouched(t *testing.T) {
	conn := dbtest.Open(t)
	engine := newTestEngine(t, conn)
	screws := dbtest.Material(t, conn, "SCREWS", "25", "5", "0.1")
	wood := dbtest.Material(t, conn, "WOOD", "3", "1", "12")
	chair := dbtest.Product(t, conn, "CHAIR", enums.ProductCategoryMadeToOrder,
		dbtest.BOMEntry{Material: screws, QtyPerUnit: "4"},
		dbtest.BOMEntry{Material: wood, QtyPerUnit: "2"},
	)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := engine.Consume(context.Background(), tx, chair.ID, 5, inventory.Reference{Reason: enums.UsageReasonOrderAcceptance})
		return err
	})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientMaterials))

	details, ok := pkgerrors.As(err).Details().(ShortageDetails)
	require.True(t, ok)
	require.Len(t, details.Shortages, 1)
	short := details.Shortages[0]
	require.Equal(t, wood.ID, short.MaterialID)
	require.True(t, short.Required.Equal(dec(10)))
	require.True(t, short.Available.Equal(dec(3)))
	require.True(t, short.Deficit.Equal(dec(7)))

	require.True(t, dbtest.OnHand(t, conn, screws.ID).Equal(dec(25)))
	require.True(t, dbtest.OnHand(t, conn, wood.ID).Equal(dec(3)))
	require.Equal(t, int64(0), dbtest.Count(t, conn, "inventory_usages", ""))
}

func TestConsumeDebitsEveryLine(t *testing.T) {
	conn := dbtest.Open(t)
	engine := newTestEngine(t, conn)
	screws := dbtest.Material(t, conn, "SCREWS", "25", "5", "0.1")
	wood := dbtest.Material(t, conn, "WOOD", "30", "1", "12")
	chair := dbtest.Product(t, conn, "CHAIR", enums.ProductCategoryMadeToOrder,
		dbtest.BOMEntry{Material: screws, QtyPerUnit: "4"},
		dbtest.BOMEntry{Material: wood, QtyPerUnit: "2"},
	)
	jobID := uuid.New()

	var consumed *ConsumedMaterials
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		consumed, err = engine.Consume(context.Background(), tx, chair.ID, 5, inventory.Reference{
			Reason:       enums.UsageReasonOrderAcceptance,
			ProductionID: &jobID,
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, consumed.Materials, 2)
	require.Equal(t, screws.ID, consumed.Materials[0].MaterialID)
	require.True(t, consumed.Materials[0].Quantity.Equal(dec(20)))
	// 20 x 0.1 + 10 x 12
	require.True(t, consumed.TotalCost.Equal(dec(122)))

	require.True(t, dbtest.OnHand(t, conn, screws.ID).Equal(dec(5)))
	require.True(t, dbtest.OnHand(t, conn, wood.ID).Equal(dec(20)))
	require.Equal(t, int64(2), dbtest.Count(t, conn, "inventory_usages", "production_job_id = ?", jobID))
}

func TestConsumeAllAggregatesSharedMaterials(t *testing.T) {
	conn := dbtest.Open(t)
	engine := newTestEngine(t, conn)
	wood := dbtest.Material(t, conn, "WOOD", "10", "1", "1")
	table := dbtest.Product(t, conn, "TABLE", enums.ProductCategoryMadeToOrder, dbtest.BOMEntry{Material: wood, QtyPerUnit: "4"})
	bench := dbtest.Product(t, conn, "BENCH", enums.ProductCategoryMadeToOrder, dbtest.BOMEntry{Material: wood, QtyPerUnit: "3"})

	items := []Item{{ProductID: table.ID, Quantity: 1}, {ProductID: bench.ID, Quantity: 3}}

	shortages, err := engine.Check(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	require.True(t, shortages[0].Required.Equal(dec(13)))
	require.True(t, shortages[0].Deficit.Equal(dec(3)))

	err = conn.Transaction(func(tx *gorm.DB) error {
		_, err := engine.ConsumeAll(context.Background(), tx, items)
		return err
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientMaterials))
	require.True(t, dbtest.OnHand(t, conn, wood.ID).Equal(dec(10)))

	shortages, err = engine.Check(context.Background(), items[:1])
	require.NoError(t, err)
	require.Empty(t, shortages)
}

func TestConsumeMissingBOM(t *testing.T) {
	conn := dbtest.Open(t)
	engine := newTestEngine(t, conn)
	bare := dbtest.Product(t, conn, "BARE", enums.ProductCategoryMadeToOrder)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := engine.Consume(context.Background(), tx, bare.ID, 1, inventory.Reference{})
		return err
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeBomNotFound))

	_, err = engine.Consume(context.Background(), nil, bare.ID, 1, inventory.Reference{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}
