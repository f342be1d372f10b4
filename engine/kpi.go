package engine

import (
	"math"
)

// ============================================================================
// KPI BUILDER — Scalar value + trend
// ============================================================================
// Value: the target bucket's metric value when buckets exist, otherwise the
// metric aggregated over the filtered records.
// Trend: current vs previous bucket. For histogram/date_histogram the most
// recent buckets are at the end (ascending order), otherwise at the front.
// ============================================================================

// Target bucket selectors besides a bucket key.
const (
	TargetFirst = "first"
	TargetLast  = "last"
)

// ComputeValue returns the KPI scalar for m.
func ComputeValue(m Metric, view RecordView, buckets []ProcessedBucket, target string) float64 {
	if len(buckets) == 0 {
		return ComputeMetric(view, m)
	}
	b, ok := targetBucket(buckets, target)
	if !ok {
		return 0
	}
	return bucketValue(b, m)
}

// ComputeTrend compares current with previous. Percent is 0 when previous
// is 0; Direction is nil when the values are equal.
func ComputeTrend(current, previous float64) Trend {
	t := Trend{
		Current:  current,
		Previous: previous,
		Value:    current - previous,
	}
	if previous != 0 {
		t.Percent = t.Value / previous * 100
	}
	if math.IsNaN(t.Percent) || math.IsInf(t.Percent, 0) {
		t.Percent = 0
	}

	var dir TrendDirection
	switch {
	case t.Value > 0:
		dir = TrendUp
	case t.Value < 0:
		dir = TrendDown
	default:
		return t
	}
	t.Direction = &dir
	return t
}

// BuildKPI derives the KPI for the widget's first metric.
// Returns nil when no metric is configured.
func BuildKPI(cfg WidgetConfig, view RecordView, buckets []ProcessedBucket) *KPIResult {
	if len(cfg.Metrics) == 0 {
		return nil
	}
	m := cfg.Metrics[0]
	params := cfg.Params.KPI

	value := ComputeValue(m, view, buckets, params.TargetBucket)
	count := 0
	if len(buckets) == 0 {
		if view != nil {
			count = view.Len()
		}
	} else if b, ok := targetBucket(buckets, params.TargetBucket); ok {
		count = b.Count
	}

	result := &KPIResult{
		Label:     m.DisplayLabel(),
		Value:     value,
		Formatted: FormatKPI(value, params),
		Count:     count,
	}

	if !params.HideTrend && len(buckets) >= 2 {
		current, previous := recentPair(buckets, cfg.Buckets)
		trend := ComputeTrend(bucketValue(current, m), bucketValue(previous, m))
		result.Trend = &trend
	}
	return result
}

// FormatKPI renders v with the KPI prefix, suffix and decimals. Without an
// explicit decimals setting, integral values get none and others get two.
func FormatKPI(v float64, params KPIParams) string {
	decimals := 2
	if v == math.Trunc(v) {
		decimals = 0
	}
	if params.Decimals != nil {
		decimals = *params.Decimals
	}
	return params.Prefix + FormatDecimal(v, decimals) + params.Suffix
}

func targetBucket(buckets []ProcessedBucket, target string) (ProcessedBucket, bool) {
	switch target {
	case "", TargetFirst:
		return buckets[0], true
	case TargetLast:
		return buckets[len(buckets)-1], true
	}
	for _, b := range buckets {
		if b.Key == target || b.Label == target {
			return b, true
		}
	}
	return ProcessedBucket{}, false
}

// recentPair returns the (current, previous) buckets. Requires len >= 2.
func recentPair(buckets []ProcessedBucket, specs []BucketSpec) (ProcessedBucket, ProcessedBucket) {
	n := len(buckets)
	if len(specs) > 0 && ascendingByKey(specs[0]) {
		return buckets[n-1], buckets[n-2]
	}
	return buckets[0], buckets[1]
}

// ascendingByKey reports whether an ordinal level ends up sorted oldest
// (or lowest) first, whether _key ordering is implicit or explicit.
func ascendingByKey(spec BucketSpec) bool {
	if !spec.Type.IsOrdinal() || spec.Order == OrderDesc {
		return false
	}
	return spec.OrderBy == "" || spec.OrderBy == OrderByKey
}

// bucketValue reads m from the bucket, computing it from the member view
// when the bucket was aggregated without it.
func bucketValue(b ProcessedBucket, m Metric) float64 {
	if v, ok := b.Values[m.Key()]; ok {
		return v
	}
	if m.Agg == AggCount {
		return float64(b.Count)
	}
	return ComputeMetric(b.View, m)
}
