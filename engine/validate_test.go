package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// VALIDATION TESTS
// ============================================================================

func containsMessage(messages []string, fragment string) bool {
	for _, m := range messages {
		if strings.Contains(m, fragment) {
			return true
		}
	}
	return false
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	v := Validate(WidgetConfig{
		Type:    ChartBar,
		Metrics: []Metric{{Field: "revenue", Agg: AggSum}, {Agg: AggCount}},
		Buckets: []BucketSpec{
			{Field: "created", Type: BucketDateHistogram, DateInterval: IntervalMonth},
			{Field: "region", Type: BucketSplitSeries, Size: 5, OrderBy: "revenue"},
		},
		Filters: []Filter{{Field: "status", Operator: OpEquals, Value: "paid"}},
	})

	assert.True(t, v.IsValid)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
	assert.NotNil(t, v.Errors)
	assert.NotNil(t, v.Warnings)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		cfg      WidgetConfig
		fragment string
	}{
		{
			name:     "unknown type",
			cfg:      WidgetConfig{Type: "gauge", Metrics: []Metric{{Agg: AggCount}}},
			fragment: "unknown widget type",
		},
		{
			name:     "chart without metrics",
			cfg:      WidgetConfig{Type: ChartBar},
			fragment: "at least one metric",
		},
		{
			name:     "metric without field",
			cfg:      WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggSum}}},
			fragment: "field is required for sum",
		},
		{
			name:     "duplicate metric keys",
			cfg:      WidgetConfig{Type: ChartBar, Metrics: []Metric{{Field: "v", Agg: AggSum}, {Field: "v", Agg: AggAvg}}},
			fragment: "duplicate metric key",
		},
		{
			name: "histogram without interval",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketHistogram}}},
			fragment: "interval must be positive",
		},
		{
			name: "bad date interval",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "at", Type: BucketDateHistogram, DateInterval: "fortnight"}}},
			fragment: "unknown date interval",
		},
		{
			name: "range without ranges",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketRange}}},
			fragment: "at least one range",
		},
		{
			name: "bucket without field",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Type: BucketTerms}}},
			fragment: "field is required",
		},
		{
			name: "negative size",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketTerms, Size: -1}}},
			fragment: "size must not be negative",
		},
		{
			name: "bad order",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketTerms, Order: "sideways"}}},
			fragment: "unknown order",
		},
		{
			name: "expression that does not compile",
			cfg: WidgetConfig{Type: ChartTable,
				Filters: []Filter{{Operator: OpExpression, Value: "record.v >"}}},
			fragment: "filter 1",
		},
		{
			name: "between with a scalar",
			cfg: WidgetConfig{Type: ChartTable,
				Filters: []Filter{{Field: "v", Operator: OpBetween, Value: 3}}},
			fragment: "filter 1",
		},
		{
			name:     "scatter without datasets",
			cfg:      WidgetConfig{Type: ChartScatter, Metrics: []Metric{{Field: "x", Agg: AggNone}}},
			fragment: "datasets or at least two metrics",
		},
		{
			name:     "scatter dataset without y",
			cfg:      WidgetConfig{Type: ChartScatter, Datasets: []DatasetSpec{{X: "x"}}},
			fragment: "x and y fields are required",
		},
		{
			name:     "radar dataset without fields",
			cfg:      WidgetConfig{Type: ChartRadar, Datasets: []DatasetSpec{{Label: "empty"}}},
			fragment: "needs at least one field",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Validate(tc.cfg)
			assert.False(t, v.IsValid)
			assert.True(t, containsMessage(v.Errors, tc.fragment), "errors: %v", v.Errors)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name     string
		cfg      WidgetConfig
		fragment string
	}{
		{
			name:     "kpi with several metrics",
			cfg:      WidgetConfig{Type: ChartKPI, Metrics: []Metric{{Field: "a", Agg: AggSum}, {Field: "b", Agg: AggSum}}},
			fragment: "only the first",
		},
		{
			name:     "unknown aggregation",
			cfg:      WidgetConfig{Type: ChartBar, Metrics: []Metric{{Field: "a", Agg: "median"}}},
			fragment: "unknown aggregation",
		},
		{
			name: "size on histogram",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketHistogram, Interval: 5, Size: 3}}},
			fragment: "size applies to terms",
		},
		{
			name: "inverted range",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketRange, Ranges: []RangeSpec{{From: ptr(10.0), To: ptr(5.0)}}}}},
			fragment: "can never match",
		},
		{
			name: "orderBy unknown metric",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "v", Type: BucketTerms, OrderBy: "revenue"}}},
			fragment: "not a metric key",
		},
		{
			name: "split_chart as inner bucket",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Buckets: []BucketSpec{{Field: "a", Type: BucketTerms}, {Field: "b", Type: BucketSplitChart}}},
			fragment: "outer bucket",
		},
		{
			name:     "unknown filter operator",
			cfg:      WidgetConfig{Type: ChartTable, Filters: []Filter{{Field: "a", Operator: "regex"}}},
			fragment: "matches nothing",
		},
		{
			name:     "non-numeric comparison",
			cfg:      WidgetConfig{Type: ChartTable, Filters: []Filter{{Field: "a", Operator: OpGreaterThan, Value: "lots"}}},
			fragment: "needs a numeric value",
		},
		{
			name: "buckets on scatter",
			cfg: WidgetConfig{Type: ChartScatter, Datasets: []DatasetSpec{{X: "x", Y: "y"}},
				Buckets: []BucketSpec{{Field: "a", Type: BucketTerms}}},
			fragment: "buckets are ignored",
		},
		{
			name:     "bubble without radius",
			cfg:      WidgetConfig{Type: ChartBubble, Datasets: []DatasetSpec{{X: "x", Y: "y"}}},
			fragment: "default radius",
		},
		{
			name: "datasets on bar",
			cfg: WidgetConfig{Type: ChartBar, Metrics: []Metric{{Agg: AggCount}},
				Datasets: []DatasetSpec{{X: "x", Y: "y"}}},
			fragment: "ignores dataset specs",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Validate(tc.cfg)
			assert.True(t, v.IsValid, "errors: %v", v.Errors)
			assert.True(t, containsMessage(v.Warnings, tc.fragment), "warnings: %v", v.Warnings)
		})
	}
}

func TestValidateRadarWithDatasetsNeedsNoMetrics(t *testing.T) {
	v := Validate(WidgetConfig{Type: ChartRadar, Datasets: []DatasetSpec{{Fields: []string{"speed"}}}})
	assert.True(t, v.IsValid, "errors: %v", v.Errors)
}
