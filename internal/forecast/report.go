package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/furniture-production-backend/pkg/db/models"
	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/furniture-production-backend/pkg/errors"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultWindowDays = 30
	defaultCacheTTL   = 5 * time.Minute
	shortWindowDays   = 7
)

type materialReader interface {
	FindMaterial(ctx context.Context, id uuid.UUID) (*models.Material, error)
}

type usageReader interface {
	ListUsageSince(ctx context.Context, materialID uuid.UUID, since time.Time) ([]models.InventoryUsage, error)
}

type reportCache interface {
	CacheKey(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Report is the replenishment view of one material.
type Report struct {
	MaterialID          uuid.UUID       `json:"material_id"`
	SKU                 string          `json:"sku"`
	Name                string          `json:"name"`
	OnHand              decimal.Decimal `json:"on_hand"`
	ReorderPoint        decimal.Decimal `json:"reorder_point"`
	SafetyStock         decimal.Decimal `json:"safety_stock"`
	MaxLevel            decimal.Decimal `json:"max_level"`
	WindowDays          int             `json:"window_days"`
	DailyUsage          []float64       `json:"daily_usage"`
	AvgDailyUsage       float64         `json:"avg_daily_usage"`
	WeeklyMovingAverage float64         `json:"weekly_moving_average"`
	TrendSlope          float64         `json:"trend_slope"`
	Trend               Trend           `json:"trend"`
	DaysUntilStockout   int             `json:"days_until_stockout"`
	RecommendedOrderQty int             `json:"recommended_order_qty"`
	EconomicOrderQty    *float64        `json:"economic_order_qty,omitempty"`
	SuggestedOrderQty   float64         `json:"suggested_order_qty"`
	NeedsReorder        bool            `json:"needs_reorder"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// Options tunes the report window and cache.
type Options struct {
	WindowDays          int
	DefaultLeadTimeDays int
	CacheTTL            time.Duration
}

// Service builds replenishment reports from the usage ledger.
type Service struct {
	materials materialReader
	usage     usageReader
	cache     reportCache
	logg      *logger.Logger
	opts      Options
	now       func() time.Time
}

// NewService builds the report service. cache may be nil.
func NewService(materials materialReader, usage usageReader, cache reportCache, logg *logger.Logger, opts Options) (*Service, error) {
	if materials == nil {
		return nil, fmt.Errorf("material reader required")
	}
	if usage == nil {
		return nil, fmt.Errorf("usage reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = defaultWindowDays
	}
	if opts.DefaultLeadTimeDays <= 0 {
		opts.DefaultLeadTimeDays = defaultLeadTimeDays
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	return &Service{materials: materials, usage: usage, cache: cache, logg: logg, opts: opts, now: time.Now}, nil
}

// Report computes the replenishment figures for a material, serving a cached
// copy when one is fresh.
func (s *Service) Report(ctx context.Context, materialID uuid.UUID) (*Report, error) {
	if materialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id required")
	}

	var key string
	if s.cache != nil {
		key = s.cache.CacheKey("forecast", materialID.String())
		var cached Report
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "forecast cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	material, err := s.materials.FindMaterial(ctx, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}

	now := s.now().UTC()
	since := startOfDay(now).AddDate(0, 0, -(s.opts.WindowDays - 1))
	usages, err := s.usage.ListUsageSince(ctx, materialID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage history")
	}

	report := Build(material, DailySeries(usages, since, s.opts.WindowDays), s.opts.DefaultLeadTimeDays, now)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, report, s.opts.CacheTTL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "forecast cache write failed")
		}
	}
	return report, nil
}

// DailySeries buckets consumption debits into days starting at since.
// Credits and manual corrections are not usage.
func DailySeries(usages []models.InventoryUsage, since time.Time, days int) []float64 {
	series := make([]float64, days)
	for _, u := range usages {
		if u.Reason != enums.UsageReasonOrderAcceptance || !u.Quantity.IsNegative() {
			continue
		}
		idx := int(u.UsedAt.UTC().Sub(since).Hours() / 24)
		if idx < 0 || idx >= days {
			continue
		}
		qty, _ := u.Quantity.Abs().Float64()
		series[idx] += qty
	}
	return series
}

// Build derives the report from a material and its daily usage series.
func Build(material *models.Material, series []float64, defaultLead int, now time.Time) *Report {
	onHand, _ := material.OnHand.Float64()
	reorderPoint, _ := material.ReorderPoint.Float64()
	safety, _ := material.SafetyStock.Float64()
	maxLevel, _ := material.MaxLevel.Float64()
	unitCost, _ := material.UnitCost.Float64()

	avg := round(MovingAverage(series, len(series)), 4)
	slope := TrendSlope(series)
	lead := material.LeadTimeDays
	if lead <= 0 {
		lead = defaultLead
	}

	report := &Report{
		MaterialID:          material.ID,
		SKU:                 material.SKU,
		Name:                material.Name,
		OnHand:              material.OnHand,
		ReorderPoint:        material.ReorderPoint,
		SafetyStock:         material.SafetyStock,
		MaxLevel:            material.MaxLevel,
		WindowDays:          len(series),
		DailyUsage:          series,
		AvgDailyUsage:       avg,
		WeeklyMovingAverage: round(MovingAverage(series, shortWindowDays), 4),
		TrendSlope:          slope,
		Trend:               TrendOf(slope),
		DaysUntilStockout:   DaysUntilStockout(onHand, avg),
		RecommendedOrderQty: RecommendedOrderQuantity(ReorderInput{
			AvgDailyUsage: avg,
			LeadTimeDays:  lead,
			SafetyStock:   safety,
			MaxLevel:      maxLevel,
			ReorderPoint:  reorderPoint,
			UnitCost:      unitCost,
		}),
		SuggestedOrderQty: SuggestedOrder(onHand, reorderPoint),
		NeedsReorder:      material.AtOrBelowReorderPoint(),
		GeneratedAt:       now,
	}
	if eoq, ok := EconomicOrderQuantity(avg, unitCost); ok {
		eoq = round(eoq, 2)
		report.EconomicOrderQty = &eoq
	}
	return report
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
