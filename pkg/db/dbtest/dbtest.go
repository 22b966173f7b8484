// Package dbtest opens isolated sqlite databases carrying the production
// schema, for repository and service tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  acceptance_status TEXT NOT NULL DEFAULT 'pending',
  status TEXT NOT NULL DEFAULT 'pending',
  accepted_by TEXT,
  accepted_at DATETIME,
  rejected_by TEXT,
  rejected_at DATETIME,
  rejection_reason TEXT,
  admin_notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  finished_goods_material_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE bom_lines (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  material_id TEXT NOT NULL,
  qty_per_unit TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE materials (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  unit TEXT NOT NULL DEFAULT 'pcs',
  unit_precision INTEGER NOT NULL DEFAULT 0,
  on_hand TEXT NOT NULL,
  reorder_point TEXT NOT NULL,
  safety_stock TEXT NOT NULL,
  max_level TEXT NOT NULL,
  unit_cost TEXT NOT NULL,
  lead_time_days INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE inventory_usages (
  id TEXT PRIMARY KEY,
  material_id TEXT NOT NULL,
  quantity TEXT NOT NULL,
  balance_after TEXT NOT NULL,
  unit_cost TEXT NOT NULL,
  total_cost TEXT NOT NULL,
  reason TEXT NOT NULL,
  order_id TEXT,
  production_job_id TEXT,
  actor_id TEXT,
  notes TEXT,
  used_at DATETIME NOT NULL
);`,
	`CREATE TABLE production_jobs (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  order_line_item_id TEXT NOT NULL UNIQUE,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  current_stage TEXT NOT NULL,
  status TEXT NOT NULL,
  overall_progress TEXT NOT NULL,
  notes TEXT,
  production_started_at DATETIME NOT NULL,
  estimated_completion_date DATETIME NOT NULL,
  actual_completion_date DATETIME,
  finished_goods_credited_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE process_steps (
  id TEXT PRIMARY KEY,
  production_job_id TEXT NOT NULL,
  stage TEXT NOT NULL,
  order_index INTEGER NOT NULL,
  status TEXT NOT NULL,
  estimated_duration_minutes INTEGER NOT NULL,
  started_at DATETIME,
  completed_at DATETIME,
  delay_reason TEXT,
  remarks TEXT,
  completed_by TEXT,
  updated_at DATETIME,
  UNIQUE (production_job_id, order_index)
);`,
	`CREATE TABLE order_trackings (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  order_line_item_id TEXT NOT NULL UNIQUE,
  product_id TEXT NOT NULL,
  production_job_id TEXT,
  current_stage TEXT NOT NULL,
  status TEXT NOT NULL,
  progress TEXT NOT NULL,
  estimated_completion_date DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE batch_outputs (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  produced_on DATETIME NOT NULL,
  materials_cost TEXT,
  notes TEXT,
  produced_by TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  recipient_id TEXT,
  event_id TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL
);`,
}

// Open returns a fresh in-memory database with every table created. A single
// pooled connection serializes concurrent transactions the way row locks do
// on Postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Material inserts a material with the given on-hand quantity and reorder point.
func Material(t *testing.T, conn *gorm.DB, sku string, onHand, reorderPoint, unitCost string) *models.Material {
	t.Helper()
	m := &models.Material{
		ID:           uuid.New(),
		SKU:          sku,
		Name:         sku,
		Unit:         "pcs",
		OnHand:       decimal.RequireFromString(onHand),
		ReorderPoint: decimal.RequireFromString(reorderPoint),
		SafetyStock:  decimal.Zero,
		MaxLevel:     decimal.RequireFromString(reorderPoint).Mul(decimal.NewFromInt(2)),
		UnitCost:     decimal.RequireFromString(unitCost),
		LeadTimeDays: 7,
	}
	require.NoError(t, conn.Create(m).Error)
	return m
}

// BOMEntry describes one line passed to Product.
type BOMEntry struct {
	Material   *models.Material
	QtyPerUnit string
}

// Product inserts a product and its BOM lines in the given order.
func Product(t *testing.T, conn *gorm.DB, sku string, category enums.ProductCategory, bom ...BOMEntry) *models.Product {
	t.Helper()
	p := &models.Product{ID: uuid.New(), SKU: sku, Name: sku, Category: category}
	require.NoError(t, conn.Create(p).Error)
	for i, entry := range bom {
		line := &models.BOMLine{
			ID:         uuid.New(),
			ProductID:  p.ID,
			MaterialID: entry.Material.ID,
			QtyPerUnit: decimal.RequireFromString(entry.QtyPerUnit),
			Position:   i + 1,
		}
		require.NoError(t, conn.Create(line).Error)
	}
	return p
}

// LineSpec describes one line passed to PendingOrder.
type LineSpec struct {
	Product  *models.Product
	Quantity int
}

// PendingOrder inserts an order awaiting its acceptance decision.
func PendingOrder(t *testing.T, conn *gorm.DB, lines ...LineSpec) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:               uuid.New(),
		CustomerID:       uuid.New(),
		AcceptanceStatus: enums.OrderAcceptancePending,
		Status:           enums.OrderStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, conn.Omit("LineItems").Create(order).Error)
	for _, line := range lines {
		item := models.OrderLineItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
		}
		require.NoError(t, conn.Omit("Product").Create(&item).Error)
		order.LineItems = append(order.LineItems, item)
	}
	return order
}

// OnHand reloads a material's current on-hand quantity.
func OnHand(t *testing.T, conn *gorm.DB, materialID uuid.UUID) decimal.Decimal {
	t.Helper()
	var m models.Material
	require.NoError(t, conn.First(&m, "id = ?", materialID).Error)
	return m.OnHand
}

// Count returns the number of rows in table matching the optional condition.
func Count(t *testing.T, conn *gorm.DB, table string, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Table(table)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
