package engine

import (
	"github.com/shopspring/decimal"
)

// ============================================================================
// METRICS — Per-bucket reducers
// ============================================================================
// sum/avg/min/max read only values that coerce to finite numbers; anything
// else is excluded, never counted as zero. Sums accumulate in decimal so
// currency-style totals (0.1 + 0.2) come out exact.
//
// Empty input after exclusion yields 0 for every reducer.
// ============================================================================

// ComputeMetric reduces the view to a single value for m.
// Unknown aggregations fall back to sum.
func ComputeMetric(view RecordView, m Metric) float64 {
	if view == nil || view.Len() == 0 {
		return 0
	}

	switch m.Agg {
	case AggCount:
		return float64(view.Len())
	case AggUnique:
		return float64(countUnique(view, m.Field))
	}

	sum := decimal.Zero
	var n int64
	var lo, hi float64
	for i := 0; i < view.Len(); i++ {
		raw, _ := view.Value(i, m.Field)
		v, ok := ToNumber(raw)
		if !ok {
			continue
		}
		if m.Agg == AggNone {
			return v
		}
		if n == 0 || v < lo {
			lo = v
		}
		if n == 0 || v > hi {
			hi = v
		}
		sum = sum.Add(decimal.NewFromFloat(v))
		n++
	}

	if n == 0 {
		return 0
	}

	switch m.Agg {
	case AggAvg:
		return sum.Div(decimal.NewFromInt(n)).InexactFloat64()
	case AggMin:
		return lo
	case AggMax:
		return hi
	default:
		return sum.InexactFloat64()
	}
}

// computeValues evaluates every metric over the view, keyed by Metric.Key.
func computeValues(view RecordView, metrics []Metric) map[string]float64 {
	values := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		values[m.Key()] = ComputeMetric(view, m)
	}
	return values
}

func countUnique(view RecordView, field string) int {
	seen := make(map[string]struct{})
	for i := 0; i < view.Len(); i++ {
		raw, ok := view.Value(i, field)
		if IsNull(raw, ok) {
			continue
		}
		seen[ToText(raw)] = struct{}{}
	}
	return len(seen)
}
