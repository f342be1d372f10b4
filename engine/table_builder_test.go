package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TABLE BUILDER TESTS
// ============================================================================

func TestShapeTableBuckets(t *testing.T) {
	view := NewSliceView(sales)
	cfg := WidgetConfig{
		Type:    ChartTable,
		Metrics: []Metric{{Field: "revenue", Agg: AggSum}},
		Buckets: []BucketSpec{
			{Field: "month", Type: BucketTerms, OrderBy: OrderByKey},
			{Field: "region", Type: BucketSplitRows, Label: "Sales Region"},
		},
	}
	buckets := aggregateFor(t, view, cfg.Buckets, cfg.Metrics)

	table := ShapeTable(view, buckets, cfg)

	assert.Equal(t, []Column{
		{Key: "month", Label: "Month", Type: "text", Align: "left"},
		{Key: "region", Label: "Sales Region", Type: "text", Align: "left"},
		{Key: CountColumn, Label: "Count", Type: "number", Align: "right"},
		{Key: "revenue", Label: "Sum of Revenue", Type: "number", Align: "right"},
	}, table.Columns)

	require.Len(t, table.DisplayData, 5)
	assert.Equal(t, Record{"month": "2024-01", "region": "EU", CountColumn: 1, "revenue": 100.0}, table.DisplayData[0])
	assert.Equal(t, Record{"month": "2024-01", "region": "US", CountColumn: 1, "revenue": 150.0}, table.DisplayData[1])
	assert.Equal(t, Record{"month": "2024-02", "region": "EU", CountColumn: 1, "revenue": 120.0}, table.DisplayData[2])
	assert.Equal(t, "APAC", table.DisplayData[4]["region"])
}

func TestShapeTableBucketColumnCollision(t *testing.T) {
	view := NewSliceView([]Record{{"score": 5}, {"score": 15}, {"score": 12}})
	cfg := WidgetConfig{
		Type:    ChartTable,
		Metrics: []Metric{{Field: "score", Agg: AggAvg}},
		Buckets: []BucketSpec{{Field: "score", Type: BucketHistogram, Interval: 10}},
	}
	buckets := aggregateFor(t, view, cfg.Buckets, cfg.Metrics)

	table := ShapeTable(view, buckets, cfg)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "score_bucket", table.Columns[0].Key)
	assert.Equal(t, "number", table.Columns[0].Type)
	assert.Equal(t, "score", table.Columns[2].Key)

	require.Len(t, table.DisplayData, 2)
	assert.Equal(t, Record{"score_bucket": "0", CountColumn: 1, "score": 5.0}, table.DisplayData[0])
	assert.Equal(t, Record{"score_bucket": "10", CountColumn: 2, "score": 13.5}, table.DisplayData[1])
}

func TestShapeTableRawRecords(t *testing.T) {
	rows := []Record{
		{"name": "Laptop", "price": 999.0, "sold": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "extra": true},
		{"name": "Mouse", "price": 19.0},
	}
	view := NewSliceView(rows, "price", "name")

	table := ShapeTable(view, nil, WidgetConfig{Type: ChartTable})

	assert.Equal(t, []Column{
		{Key: "price", Label: "Price", Type: "number", Align: "right"},
		{Key: "name", Label: "Name", Type: "text", Align: "left"},
		{Key: "extra", Label: "Extra", Type: "text", Align: "left"},
		{Key: "sold", Label: "Sold", Type: "date", Align: "left"},
	}, table.Columns)
	require.Len(t, table.DisplayData, 2)
	assert.Equal(t, rows[1], table.DisplayData[1])
}

func TestShapeTableEmpty(t *testing.T) {
	table := ShapeTable(NewSliceView(nil), nil, WidgetConfig{Type: ChartTable})
	assert.NotNil(t, table.Columns)
	assert.NotNil(t, table.DisplayData)
	assert.Empty(t, table.Columns)
	assert.Empty(t, table.DisplayData)
}
