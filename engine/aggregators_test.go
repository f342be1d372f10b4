package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// AGGREGATOR TESTS
// ============================================================================

func ptr[T any](v T) *T { return &v }

func bucketKeys(buckets []ProcessedBucket) []string {
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = b.Key
	}
	return keys
}

func TestAggregateTermsSum(t *testing.T) {
	view := NewSliceView([]Record{
		{"cat": "a", "v": 10},
		{"cat": "a", "v": 5},
		{"cat": "b", "v": 3},
	})

	buckets, err := Aggregate(view,
		[]BucketSpec{{Field: "cat", Type: BucketTerms}},
		[]Metric{{Field: "v", Agg: AggSum}},
	)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "a", buckets[0].Key)
	assert.Equal(t, "a", buckets[0].Label)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, map[string]float64{"v": 15}, buckets[0].Values)

	assert.Equal(t, "b", buckets[1].Key)
	assert.Equal(t, 1, buckets[1].Count)
	assert.Equal(t, map[string]float64{"v": 3}, buckets[1].Values)
}

func TestAggregateReturnsNilWithoutSpecsOrRecords(t *testing.T) {
	metrics := []Metric{{Field: "v", Agg: AggSum}}

	buckets, err := Aggregate(NewSliceView([]Record{{"v": 1}}), nil, metrics)
	assert.NoError(t, err)
	assert.Nil(t, buckets)

	buckets, err = Aggregate(NewSliceView(nil), []BucketSpec{{Field: "cat", Type: BucketTerms}}, metrics)
	assert.NoError(t, err)
	assert.Nil(t, buckets)
}

func TestAggregateTermsOrdering(t *testing.T) {
	view := NewSliceView([]Record{
		{"cat": "b", "v": 1},
		{"cat": "c", "v": 100},
		{"cat": "a", "v": 2},
		{"cat": "a", "v": 2},
		{"cat": "c", "v": 1},
		{"cat": "d", "v": 7},
	})
	metrics := []Metric{{Field: "v", Agg: AggSum}}

	tests := []struct {
		name     string
		spec     BucketSpec
		expected []string
	}{
		{
			name:     "count desc, ties keep first-seen order",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms},
			expected: []string{"c", "a", "b", "d"},
		},
		{
			name:     "count asc",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, Order: OrderAsc},
			expected: []string{"b", "d", "c", "a"},
		},
		{
			name:     "key asc by default",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, OrderBy: OrderByKey},
			expected: []string{"a", "b", "c", "d"},
		},
		{
			name:     "key desc",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, OrderBy: OrderByKey, Order: OrderDesc},
			expected: []string{"d", "c", "b", "a"},
		},
		{
			name:     "metric desc",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, OrderBy: "v"},
			expected: []string{"c", "d", "a", "b"},
		},
		{
			name:     "size truncates after ordering",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, OrderBy: "v", Size: 2},
			expected: []string{"c", "d"},
		},
		{
			name:     "min doc count prunes",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, MinDocCount: 2},
			expected: []string{"c", "a"},
		},
		{
			name:     "min doc count prunes before size truncates",
			spec:     BucketSpec{Field: "cat", Type: BucketTerms, OrderBy: OrderByKey, MinDocCount: 2, Size: 2},
			expected: []string{"a", "c"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buckets, err := Aggregate(view, []BucketSpec{tc.spec}, metrics)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, bucketKeys(buckets))
		})
	}
}

func TestAggregateTermsSizeInvariant(t *testing.T) {
	records := make([]Record, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, Record{"id": i % 17})
	}
	view := NewSliceView(records)

	for _, size := range []int{1, 3, 16, 17, 40} {
		buckets, err := Aggregate(view, []BucketSpec{{Field: "id", Type: BucketTerms, Size: size}}, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(buckets), size)
	}
}

func TestAggregateSumProperty(t *testing.T) {
	view := NewSliceView([]Record{
		{"category": "a", "x": 1.1},
		{"category": "b", "x": 2.2},
		{"category": "a", "x": "3.3"},
		{"category": nil, "x": 100},
		{"x": 50},
		{"category": "c", "x": "bad"},
		{"category": "c", "x": 0.4},
	})

	buckets, err := Aggregate(view,
		[]BucketSpec{{Field: "category", Type: BucketTerms}},
		[]Metric{{Field: "x", Agg: AggSum}},
	)
	require.NoError(t, err)

	var total float64
	for _, b := range buckets {
		total += b.Values["x"]
	}
	// a: 4.4, b: 2.2, c: 0.4; records without a category are excluded.
	assert.InDelta(t, 7.0, total, 1e-9)
	assert.Equal(t, []string{"a", "c", "b"}, bucketKeys(buckets))
}

func TestAggregateTermsCustomLabels(t *testing.T) {
	view := NewSliceView([]Record{{"status": "1"}, {"status": 2}, {"status": "1"}})

	buckets, err := Aggregate(view, []BucketSpec{{
		Field:  "status",
		Type:   BucketTerms,
		Labels: map[string]string{"1": "Open", "2": "Closed"},
	}}, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "Open", buckets[0].Label)
	assert.Equal(t, "Closed", buckets[1].Label)
}

func TestAggregateHistogram(t *testing.T) {
	view := NewSliceView([]Record{
		{"price": 3}, {"price": 25}, {"price": 7}, {"price": "12"}, {"price": -1}, {"price": "free"},
	})

	buckets, err := Aggregate(view, []BucketSpec{{Field: "price", Type: BucketHistogram, Interval: 10}},
		[]Metric{{Agg: AggCount}})
	require.NoError(t, err)

	assert.Equal(t, []string{"-10", "0", "10", "20"}, bucketKeys(buckets))
	assert.Equal(t, 2, buckets[1].Count)
	assert.Equal(t, float64(2), buckets[1].Values["count"])

	desc, err := Aggregate(view, []BucketSpec{{Field: "price", Type: BucketHistogram, Interval: 10, Order: OrderDesc}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"20", "10", "0", "-10"}, bucketKeys(desc))
}

func TestAggregateHistogramFractionalInterval(t *testing.T) {
	view := NewSliceView([]Record{
		{"ratio": 0.35}, {"ratio": 0.3}, {"ratio": 0.71}, {"ratio": "0.05"},
	})

	buckets, err := Aggregate(view, []BucketSpec{{Field: "ratio", Type: BucketHistogram, Interval: 0.1}}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "0.3", "0.7"}, bucketKeys(buckets))
	assert.Equal(t, "0.3", buckets[1].Label)
	assert.Equal(t, 2, buckets[1].Count)
}

func TestAggregateDateHistogram(t *testing.T) {
	view := NewSliceView([]Record{
		{"day": "2024-02-01T10:00:00Z", "v": 5},
		{"day": "2024-01-15", "v": 1},
		{"day": "not a date", "v": 100},
		{"day": "2024-01-20", "v": 2},
	})

	buckets, err := Aggregate(view,
		[]BucketSpec{{Field: "day", Type: BucketDateHistogram, DateInterval: IntervalMonth}},
		[]Metric{{Field: "v", Agg: AggSum}},
	)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "2024-01-01T00:00:00Z", buckets[0].Key)
	assert.Equal(t, "Jan 2024", buckets[0].Label)
	assert.Equal(t, float64(3), buckets[0].Values["v"])
	assert.Equal(t, "Feb 2024", buckets[1].Label)
	assert.Equal(t, float64(5), buckets[1].Values["v"])
}

func TestAggregateDateHistogramWeeksStartMonday(t *testing.T) {
	view := NewSliceView([]Record{
		{"day": "2024-01-03"}, // Wednesday
		{"day": "2024-01-07"}, // Sunday
		{"day": "2024-01-08"}, // Monday
	})

	buckets, err := Aggregate(view,
		[]BucketSpec{{Field: "day", Type: BucketDateHistogram, DateInterval: IntervalWeek}}, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-01-01", buckets[0].Label)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, "2024-01-08", buckets[1].Label)
}

func TestAggregateDateHistogramLocation(t *testing.T) {
	view := NewSliceView([]Record{{"ts": "2024-03-01T02:00:00Z"}})
	loc := time.FixedZone("UTC-5", -5*3600)

	buckets, err := Aggregate(view,
		[]BucketSpec{{Field: "ts", Type: BucketDateHistogram, DateInterval: IntervalDay}},
		nil, WithLocation(loc))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-02-29", buckets[0].Label)
}

func TestAggregateDateHistogramEpochMillis(t *testing.T) {
	view := NewSliceView([]Record{{"ts": 1704067200000.0}, {"ts": 1704067200}})

	buckets, err := Aggregate(view,
		[]BucketSpec{{Field: "ts", Type: BucketDateHistogram, DateInterval: IntervalYear}}, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "2024", buckets[0].Label)
	assert.Equal(t, 2, buckets[0].Count)
}

func TestAggregateRange(t *testing.T) {
	view := NewSliceView([]Record{
		{"age": 5}, {"age": 15}, {"age": 25}, {"age": "x"}, {"age": nil}, {"age": 12}, {"age": 10},
	})

	buckets, err := Aggregate(view, []BucketSpec{{
		Field: "age",
		Type:  BucketRange,
		Ranges: []RangeSpec{
			{To: ptr(10.0), Label: "child"},
			{From: ptr(10.0), To: ptr(20.0)},
			{From: ptr(100.0), To: ptr(200.0)},
			{From: ptr(20.0)},
		},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"*-10", "10-20", "20-*"}, bucketKeys(buckets))
	assert.Equal(t, "child", buckets[0].Label)
	assert.Equal(t, "10-20", buckets[1].Label)
	assert.Equal(t, []int{1, 3, 1}, []int{buckets[0].Count, buckets[1].Count, buckets[2].Count})
}

func TestAggregateNested(t *testing.T) {
	view := NewSliceView(orders)

	buckets, err := Aggregate(view,
		[]BucketSpec{
			{Field: "region", Type: BucketTerms},
			{Field: "product", Type: BucketTerms, OrderBy: OrderByKey},
		},
		[]Metric{{Field: "units", Agg: AggSum}},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"EU", "US", "APAC"}, bucketKeys(buckets))

	eu := buckets[0]
	assert.Equal(t, float64(3), eu.Values["units"])
	assert.Equal(t, []string{"Laptop", "Monitor"}, bucketKeys(eu.Children))
	assert.Equal(t, float64(2), eu.Children[0].Values["units"])

	us := buckets[1]
	assert.Equal(t, []string{"Keyboard", "Mouse"}, bucketKeys(us.Children))
	assert.Equal(t, float64(10), us.Children[1].Values["units"])

	// Children hold only their parent's member records.
	assert.Equal(t, 1, us.Children[1].View.Len())
	assert.Equal(t, "Mouse", us.Children[1].View.Record(0)["product"])
}

func TestAggregateNestedMinDocCount(t *testing.T) {
	view := NewSliceView([]Record{
		{"region": "EU", "product": "Laptop"},
		{"region": "EU", "product": "Laptop"},
		{"region": "EU", "product": "Mouse"},
		{"region": "US", "product": "Mouse"},
		{"region": "US", "product": "Mouse"},
		{"region": "US", "product": "Laptop"},
		{"region": "US", "product": "Keyboard"},
		{"region": "APAC", "product": "Laptop"},
	})

	buckets, err := Aggregate(view,
		[]BucketSpec{
			{Field: "region", Type: BucketTerms, MinDocCount: 2},
			{Field: "product", Type: BucketTerms, MinDocCount: 2, Size: 1},
		},
		[]Metric{{Agg: AggCount}},
	)
	require.NoError(t, err)

	require.Equal(t, []string{"US", "EU"}, bucketKeys(buckets))
	assert.Equal(t, []string{"Mouse"}, bucketKeys(buckets[0].Children))
	assert.Equal(t, []string{"Laptop"}, bucketKeys(buckets[1].Children))
	assert.Equal(t, 4, buckets[0].Count, "pruning children leaves the parent's count alone")

	sparse, err := Aggregate(view,
		[]BucketSpec{
			{Field: "region", Type: BucketTerms},
			{Field: "product", Type: BucketTerms, MinDocCount: 3},
		},
		nil,
	)
	require.NoError(t, err)
	for _, b := range sparse {
		assert.Empty(t, b.Children, "region %s", b.Key)
	}
}

func TestAggregateInvalidConfiguration(t *testing.T) {
	view := NewSliceView([]Record{{"v": 1}})

	tests := []struct {
		name string
		spec BucketSpec
	}{
		{name: "histogram without interval", spec: BucketSpec{Field: "v", Type: BucketHistogram}},
		{name: "unknown date interval", spec: BucketSpec{Field: "v", Type: BucketDateHistogram, DateInterval: "fortnight"}},
		{name: "range without ranges", spec: BucketSpec{Field: "v", Type: BucketRange}},
		{name: "unknown type", spec: BucketSpec{Field: "v", Type: "geohash"}},
		{name: "missing field", spec: BucketSpec{Type: BucketTerms}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buckets, err := Aggregate(view, []BucketSpec{tc.spec}, nil)
			assert.ErrorIs(t, err, ErrInvalidBucket)
			assert.Nil(t, buckets)
		})
	}
}

func TestComputeMetric(t *testing.T) {
	view := NewSliceView([]Record{
		{"v": 4, "tag": "x"},
		{"v": "1.5", "tag": "y"},
		{"v": "n/a", "tag": "x"},
		{"v": nil},
		{"v": 0.1},
		{"v": 0.2},
	})

	tests := []struct {
		agg      AggType
		expected float64
	}{
		{AggSum, 5.8},
		{AggAvg, 1.45},
		{AggMin, 0.1},
		{AggMax, 4},
		{AggCount, 6},
		{AggNone, 4},
		{"median", 5.8},
	}
	for _, tc := range tests {
		t.Run(string(tc.agg), func(t *testing.T) {
			assert.InDelta(t, tc.expected, ComputeMetric(view, Metric{Field: "v", Agg: tc.agg}), 1e-9)
		})
	}

	assert.Equal(t, float64(2), ComputeMetric(view, Metric{Field: "tag", Agg: AggUnique}))
}

func TestComputeMetricExactDecimalSum(t *testing.T) {
	view := NewSliceView([]Record{{"v": 0.1}, {"v": 0.2}})
	assert.Equal(t, 0.3, ComputeMetric(view, Metric{Field: "v", Agg: AggSum}))
}

func TestComputeMetricEmptyIsZero(t *testing.T) {
	view := NewSliceView([]Record{{"v": "a"}, {"v": nil}})
	for _, agg := range []AggType{AggSum, AggAvg, AggMin, AggMax, AggNone} {
		assert.Equal(t, float64(0), ComputeMetric(view, Metric{Field: "v", Agg: agg}), string(agg))
	}
	assert.Equal(t, float64(0), ComputeMetric(NewSliceView(nil), Metric{Field: "v", Agg: AggCount}))
}

func TestRangeKey(t *testing.T) {
	assert.Equal(t, "*-*", RangeKey(RangeSpec{}))
	assert.Equal(t, "0.5-*", RangeKey(RangeSpec{From: ptr(0.5)}))
	assert.Equal(t, "*-100", RangeKey(RangeSpec{To: ptr(100.0)}))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatInt(1234567))
	assert.Equal(t, "-1,000", FormatInt(-1000))
	assert.Equal(t, "1,234.50", FormatDecimal(1234.5, 2))
	assert.Equal(t, "-12", FormatDecimal(-12.4, 0))
	assert.Equal(t, "0", FormatDecimal(-0.1, 0))
	assert.Equal(t, "Order Total", LabelForField("order_total"))
	assert.Equal(t, "Customer Tier", LabelForField("customer.tier"))
	assert.Equal(t, "Échéance Date", LabelForField("échéance_date"))
	assert.Equal(t, "Ünits", LabelForField("ünits"))
	assert.Equal(t, "Average", LabelForAggregation(AggAvg))
}
