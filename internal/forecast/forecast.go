package forecast

import "math"

const (
	// NoStockoutDays is reported when usage is zero or the estimate exceeds it.
	NoStockoutDays = 999

	defaultLeadTimeDays = 7
	holdingCostRate     = 0.1
)

// Trend labels the direction of a usage series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// MovingAverage averages the last window values of series. A window outside
// 1..len(series) averages the whole series.
func MovingAverage(series []float64, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	if window <= 0 || window > len(series) {
		window = len(series)
	}
	tail := series[len(series)-window:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	return sum / float64(len(tail))
}

// TrendSlope is the least-squares slope of series over x = 0..n-1, rounded to
// four decimals. Fewer than two points yield 0.
func TrendSlope(series []float64) float64 {
	n := float64(len(series))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return round((n*sumXY-sumX*sumY)/denom, 4)
}

// TrendOf classifies a slope.
func TrendOf(slope float64) Trend {
	switch {
	case slope > 0:
		return TrendIncreasing
	case slope < 0:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// DaysUntilStockout is floor(onHand / avgDailyUsage) capped at NoStockoutDays.
func DaysUntilStockout(onHand, avgDailyUsage float64) int {
	if avgDailyUsage <= 0 {
		return NoStockoutDays
	}
	if onHand <= 0 {
		return 0
	}
	days := math.Floor(onHand / avgDailyUsage)
	if days > NoStockoutDays {
		return NoStockoutDays
	}
	return int(days)
}

// ReorderInput carries the material attributes used for the recommendation.
type ReorderInput struct {
	AvgDailyUsage float64
	LeadTimeDays  int
	SafetyStock   float64
	MaxLevel      float64
	ReorderPoint  float64
	UnitCost      float64
}

// RecommendedOrderQuantity covers lead-time demand plus safety stock, capped
// at the max level. The economic order quantity replaces it only when it
// falls within half to double of that figure. The result is at least 1.
func RecommendedOrderQuantity(in ReorderInput) int {
	lead := in.LeadTimeDays
	if lead <= 0 {
		lead = defaultLeadTimeDays
	}
	maxLevel := in.MaxLevel
	if maxLevel <= 0 {
		maxLevel = in.ReorderPoint * 2
	}

	recommended := in.AvgDailyUsage*float64(lead) + in.SafetyStock
	if maxLevel > 0 && recommended > maxLevel {
		recommended = maxLevel
	}

	if eoq, ok := EconomicOrderQuantity(in.AvgDailyUsage, in.UnitCost); ok {
		if eoq > recommended*0.5 && eoq < recommended*2 {
			recommended = eoq
		}
	}

	qty := int(math.Round(recommended))
	if qty < 1 {
		return 1
	}
	return qty
}

// EconomicOrderQuantity uses annualized demand and a 10% holding cost. It is
// undefined without a positive unit cost.
func EconomicOrderQuantity(avgDailyUsage, unitCost float64) (float64, bool) {
	if unitCost <= 0 || avgDailyUsage < 0 {
		return 0, false
	}
	annualDemand := avgDailyUsage * 365
	return math.Sqrt((2 * annualDemand * unitCost) / (unitCost * holdingCostRate)), true
}

// SuggestedOrder tops stock up to twice the reorder point.
func SuggestedOrder(onHand, reorderPoint float64) float64 {
	return math.Max(0, reorderPoint*2-onHand)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
