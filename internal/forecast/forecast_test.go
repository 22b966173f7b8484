package forecast

import (
	"math"
	"testing"
)

func TestMovingAverage(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		window int
		want   float64
	}{
		{"empty", nil, 3, 0},
		{"trailing window", []float64{10, 2, 4, 6}, 3, 4},
		{"window larger than series", []float64{1, 2, 3}, 10, 2},
		{"zero window uses all", []float64{2, 4}, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MovingAverage(tt.series, tt.window); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestTrendSlope(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		want   float64
		trend  Trend
	}{
		{"single point", []float64{5}, 0, TrendStable},
		{"rising", []float64{1, 2, 3, 4}, 1, TrendIncreasing},
		{"falling", []float64{6, 4, 2}, -2, TrendDecreasing},
		{"flat", []float64{3, 3, 3}, 0, TrendStable},
		{"rounded", []float64{1, 1, 2}, 0.5, TrendIncreasing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrendSlope(tt.series)
			if got != tt.want {
				t.Fatalf("slope got %v want %v", got, tt.want)
			}
			if TrendOf(got) != tt.trend {
				t.Fatalf("trend got %s want %s", TrendOf(got), tt.trend)
			}
		})
	}
}

func TestDaysUntilStockout(t *testing.T) {
	if got := DaysUntilStockout(100, 0); got != NoStockoutDays {
		t.Fatalf("zero usage: got %d", got)
	}
	if got := DaysUntilStockout(100, 3); got != 33 {
		t.Fatalf("floor: got %d", got)
	}
	if got := DaysUntilStockout(0, 3); got != 0 {
		t.Fatalf("empty stock: got %d", got)
	}
	if got := DaysUntilStockout(1e6, 0.5); got != NoStockoutDays {
		t.Fatalf("cap: got %d", got)
	}
}

func TestRecommendedOrderQuantity(t *testing.T) {
	// lead demand 10*7 + 100 = 170; eoq = sqrt(73000) ~ 270.2 lies within (85, 340).
	got := RecommendedOrderQuantity(ReorderInput{AvgDailyUsage: 10, SafetyStock: 100, MaxLevel: 1000, UnitCost: 5})
	if got != 270 {
		t.Fatalf("expected eoq 270, got %d", got)
	}

	// lead demand 2*7 + 6 = 20; eoq ~ 120.8 is outside (10, 40).
	got = RecommendedOrderQuantity(ReorderInput{AvgDailyUsage: 2, SafetyStock: 6, MaxLevel: 100, UnitCost: 5})
	if got != 20 {
		t.Fatalf("expected lead-time demand 20, got %d", got)
	}

	// eoq ~ 604 is outside (50, 200) so the capped lead demand stands.
	got = RecommendedOrderQuantity(ReorderInput{AvgDailyUsage: 50, LeadTimeDays: 10, MaxLevel: 100, UnitCost: 1})
	if got != 100 {
		t.Fatalf("expected max-level cap 100, got %d", got)
	}

	// max level defaults to reorder point x2.
	got = RecommendedOrderQuantity(ReorderInput{AvgDailyUsage: 10, LeadTimeDays: 5, ReorderPoint: 10})
	if got != 20 {
		t.Fatalf("expected default max level 20, got %d", got)
	}

	if got := RecommendedOrderQuantity(ReorderInput{}); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestEconomicOrderQuantity(t *testing.T) {
	if _, ok := EconomicOrderQuantity(2, 0); ok {
		t.Fatalf("zero unit cost must be undefined")
	}
	eoq, ok := EconomicOrderQuantity(2, 5)
	if !ok || math.Abs(eoq-math.Sqrt(14600)) > 1e-9 {
		t.Fatalf("unexpected eoq %v", eoq)
	}
}

func TestSuggestedOrder(t *testing.T) {
	if got := SuggestedOrder(5, 10); got != 15 {
		t.Fatalf("got %v", got)
	}
	if got := SuggestedOrder(50, 10); got != 0 {
		t.Fatalf("got %v", got)
	}
}
