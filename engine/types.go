package engine

// ============================================================================
// DASHLENS ENGINE TYPES — Widget configuration and render-ready output
// ============================================================================
// Configuration shapes are closed: every enum has a Valid() check and the
// config package rejects unknown values when decoding files.
//
// Output shapes follow what chart/KPI/table components consume:
//   ChartData → Chart.js {labels, datasets}
//   KPIResult → scalar + trend
//   TableData → {columns, displayData}
// ============================================================================

// ============================================================================
// RECORD
// ============================================================================

// Record is a single raw data row as fetched from a source.
// Values are whatever the source decoded: strings, float64, bool, nil,
// json.Number or nested maps for document stores.
type Record map[string]any

// ============================================================================
// METRICS
// ============================================================================

// AggType names a metric aggregation.
type AggType string

const (
	AggSum    AggType = "sum"
	AggAvg    AggType = "avg"
	AggCount  AggType = "count"
	AggMin    AggType = "min"
	AggMax    AggType = "max"
	AggNone   AggType = "none"
	AggUnique AggType = "unique"
)

// Valid reports whether a is a known aggregation.
func (a AggType) Valid() bool {
	switch a {
	case AggSum, AggAvg, AggCount, AggMin, AggMax, AggNone, AggUnique:
		return true
	}
	return false
}

// Metric computes Agg over Field across whatever grouping is in effect.
type Metric struct {
	ID    string  `json:"id,omitempty" yaml:"id,omitempty"`
	Field string  `json:"field" yaml:"field"`
	Agg   AggType `json:"agg" yaml:"agg"`
	Label string  `json:"label,omitempty" yaml:"label,omitempty"`
	Type  string  `json:"type,omitempty" yaml:"type,omitempty"` // per-metric chart type override (mixed charts)
}

// Key is the identifier used in ProcessedBucket.Values.
func (m Metric) Key() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Field != "" {
		return m.Field
	}
	return string(AggCount)
}

// DisplayLabel returns the metric label, or a generated one.
func (m Metric) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	if m.Field == "" {
		return LabelForAggregation(m.Agg)
	}
	return LabelForAggregation(m.Agg) + " of " + LabelForField(m.Field)
}

// ============================================================================
// BUCKETS
// ============================================================================

// BucketType names a grouping strategy.
type BucketType string

const (
	BucketTerms         BucketType = "terms"
	BucketHistogram     BucketType = "histogram"
	BucketDateHistogram BucketType = "date_histogram"
	BucketRange         BucketType = "range"
	BucketSplitSeries   BucketType = "split_series"
	BucketSplitRows     BucketType = "split_rows"
	BucketSplitChart    BucketType = "split_chart"
)

// Valid reports whether b is a known bucket type.
func (b BucketType) Valid() bool {
	switch b {
	case BucketTerms, BucketHistogram, BucketDateHistogram, BucketRange,
		BucketSplitSeries, BucketSplitRows, BucketSplitChart:
		return true
	}
	return false
}

// IsSplit reports whether b is one of the split_* types.
func (b BucketType) IsSplit() bool {
	return b == BucketSplitSeries || b == BucketSplitRows || b == BucketSplitChart
}

// IsOrdinal reports whether b produces naturally ordered (numeric/time) keys.
func (b BucketType) IsOrdinal() bool {
	return b == BucketHistogram || b == BucketDateHistogram
}

// DateInterval is the window size of a date_histogram.
type DateInterval string

const (
	IntervalMinute DateInterval = "minute"
	IntervalHour   DateInterval = "hour"
	IntervalDay    DateInterval = "day"
	IntervalWeek   DateInterval = "week"
	IntervalMonth  DateInterval = "month"
	IntervalYear   DateInterval = "year"
)

// Valid reports whether d is a known interval.
func (d DateInterval) Valid() bool {
	switch d {
	case IntervalMinute, IntervalHour, IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// SortOrder is asc or desc. Empty means the bucket type's default.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SplitType tells presentation how to render split buckets.
type SplitType string

const (
	SplitSeries SplitType = "series"
	SplitRows   SplitType = "rows"
	SplitChart  SplitType = "chart"
)

// Ordering keys accepted by BucketSpec.OrderBy besides metric keys.
const (
	OrderByCount = "_count"
	OrderByKey   = "_key"
)

// RangeSpec is a half-open interval [From, To). Nil bounds are open.
type RangeSpec struct {
	From  *float64 `json:"from,omitempty" yaml:"from,omitempty"`
	To    *float64 `json:"to,omitempty" yaml:"to,omitempty"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// BucketSpec is one level of grouping. A list of specs nests outer → inner.
type BucketSpec struct {
	Field        string            `json:"field" yaml:"field"`
	Type         BucketType        `json:"type" yaml:"type"`
	Order        SortOrder         `json:"order,omitempty" yaml:"order,omitempty"`
	OrderBy      string            `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	Size         int               `json:"size,omitempty" yaml:"size,omitempty"`
	MinDocCount  int               `json:"minDocCount,omitempty" yaml:"minDocCount,omitempty"`
	Interval     float64           `json:"interval,omitempty" yaml:"interval,omitempty"`
	DateInterval DateInterval      `json:"dateInterval,omitempty" yaml:"dateInterval,omitempty"`
	Ranges       []RangeSpec       `json:"ranges,omitempty" yaml:"ranges,omitempty"`
	SplitType    SplitType         `json:"splitType,omitempty" yaml:"splitType,omitempty"`
	Label        string            `json:"label,omitempty" yaml:"label,omitempty"`
	Labels       map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"` // terms key → display label
}

// EffectiveSplit returns how the bucket should be presented.
// split_* types imply their split; SplitType can tag any bucket explicitly.
func (b BucketSpec) EffectiveSplit() SplitType {
	if b.SplitType != "" {
		return b.SplitType
	}
	switch b.Type {
	case BucketSplitSeries:
		return SplitSeries
	case BucketSplitRows:
		return SplitRows
	case BucketSplitChart:
		return SplitChart
	}
	return ""
}

// DisplayLabel returns the bucket label, or a generated one.
func (b BucketSpec) DisplayLabel() string {
	if b.Label != "" {
		return b.Label
	}
	return LabelForField(b.Field)
}

// ============================================================================
// FILTERS
// ============================================================================

// FilterOperator names a filter predicate.
type FilterOperator string

const (
	OpEquals         FilterOperator = "equals"
	OpNotEquals      FilterOperator = "not_equals"
	OpContains       FilterOperator = "contains"
	OpNotContains    FilterOperator = "not_contains"
	OpGreaterThan    FilterOperator = "greater_than"
	OpLessThan       FilterOperator = "less_than"
	OpGreaterOrEqual FilterOperator = "greater_or_equal"
	OpLessOrEqual    FilterOperator = "less_or_equal"
	OpStartsWith     FilterOperator = "starts_with"
	OpEndsWith       FilterOperator = "ends_with"
	OpIn             FilterOperator = "in"
	OpNotIn          FilterOperator = "not_in"
	OpIsNull         FilterOperator = "is_null"
	OpIsNotNull      FilterOperator = "is_not_null"
	OpBetween        FilterOperator = "between"
	OpExpression     FilterOperator = "expression"
)

// Valid reports whether o is a known operator.
func (o FilterOperator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual,
		OpStartsWith, OpEndsWith, OpIn, OpNotIn, OpIsNull, OpIsNotNull,
		OpBetween, OpExpression:
		return true
	}
	return false
}

// Filter is a pure predicate over one record field.
// For OpExpression, Field is ignored and Value holds a CEL expression
// evaluated against the variable `record`.
type Filter struct {
	Field    string         `json:"field" yaml:"field"`
	Operator FilterOperator `json:"operator" yaml:"operator"`
	Value    any            `json:"value,omitempty" yaml:"value,omitempty"`
}

// ============================================================================
// WIDGET CONFIGURATION
// ============================================================================

// ChartType is the widget's visual type.
type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartArea      ChartType = "area"
	ChartPie       ChartType = "pie"
	ChartDoughnut  ChartType = "doughnut"
	ChartPolarArea ChartType = "polarArea"
	ChartScatter   ChartType = "scatter"
	ChartBubble    ChartType = "bubble"
	ChartRadar     ChartType = "radar"
	ChartKPI       ChartType = "kpi"
	ChartTable     ChartType = "table"
)

// Valid reports whether c is a known widget type.
func (c ChartType) Valid() bool {
	switch c {
	case ChartBar, ChartLine, ChartArea, ChartPie, ChartDoughnut, ChartPolarArea,
		ChartScatter, ChartBubble, ChartRadar, ChartKPI, ChartTable:
		return true
	}
	return false
}

// IsXY reports whether c plots raw points instead of bucket labels.
func (c ChartType) IsXY() bool { return c == ChartScatter || c == ChartBubble }

// IsPieFamily reports whether c colours each slice individually.
func (c ChartType) IsPieFamily() bool {
	return c == ChartPie || c == ChartDoughnut || c == ChartPolarArea
}

// IsChart reports whether c renders labels + datasets.
func (c ChartType) IsChart() bool { return c.Valid() && c != ChartKPI && c != ChartTable }

// Style overrides dataset colours and line settings.
type Style struct {
	BackgroundColor string   `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	BorderColor     string   `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	BorderWidth     *float64 `json:"borderWidth,omitempty" yaml:"borderWidth,omitempty"`
	Fill            *bool    `json:"fill,omitempty" yaml:"fill,omitempty"`
	Tension         *float64 `json:"tension,omitempty" yaml:"tension,omitempty"`
	PointRadius     *float64 `json:"pointRadius,omitempty" yaml:"pointRadius,omitempty"`
}

// DatasetSpec configures one dataset of a scatter, bubble or radar widget.
// Scatter uses X/Y, bubble X/Y/R, radar Fields (one axis per field).
type DatasetSpec struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty"`
	Label   string   `json:"label,omitempty" yaml:"label,omitempty"`
	X       string   `json:"x,omitempty" yaml:"x,omitempty"`
	Y       string   `json:"y,omitempty" yaml:"y,omitempty"`
	R       string   `json:"r,omitempty" yaml:"r,omitempty"`
	Fields  []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Agg     AggType  `json:"agg,omitempty" yaml:"agg,omitempty"` // radar axis aggregation, default avg
	Filters []Filter `json:"filters,omitempty" yaml:"filters,omitempty"`
	Style   *Style   `json:"style,omitempty" yaml:"style,omitempty"`
}

// KPIParams tunes KPI derivation.
type KPIParams struct {
	TargetBucket string `json:"targetBucket,omitempty" yaml:"targetBucket,omitempty"` // "", "first", "last" or a bucket key
	HideTrend    bool   `json:"hideTrend,omitempty" yaml:"hideTrend,omitempty"`
	Prefix       string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix       string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Decimals     *int   `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// WidgetParams are widget-level presentation defaults.
type WidgetParams struct {
	BackgroundColor string         `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	BorderColor     string         `json:"borderColor,omitempty" yaml:"borderColor,omitempty"`
	BorderWidth     *float64       `json:"borderWidth,omitempty" yaml:"borderWidth,omitempty"`
	Stacked         bool           `json:"stacked,omitempty" yaml:"stacked,omitempty"`
	ShowLegend      *bool          `json:"showLegend,omitempty" yaml:"showLegend,omitempty"`
	LegendPosition  string         `json:"legendPosition,omitempty" yaml:"legendPosition,omitempty"`
	XAxisLabel      string         `json:"xAxisLabel,omitempty" yaml:"xAxisLabel,omitempty"`
	YAxisLabel      string         `json:"yAxisLabel,omitempty" yaml:"yAxisLabel,omitempty"`
	LabelField      string         `json:"labelField,omitempty" yaml:"labelField,omitempty"` // raw-path label source
	DefaultRadius   float64        `json:"defaultRadius,omitempty" yaml:"defaultRadius,omitempty"`
	KPI             KPIParams      `json:"kpi,omitempty" yaml:"kpi,omitempty"`
	Options         map[string]any `json:"options,omitempty" yaml:"options,omitempty"` // user chart option overrides
}

// WidgetConfig is everything the pipeline needs to render one widget.
type WidgetConfig struct {
	ID           string           `json:"id,omitempty" yaml:"id,omitempty"`
	Title        string           `json:"title,omitempty" yaml:"title,omitempty"`
	Type         ChartType        `json:"type" yaml:"type"`
	Source       string           `json:"source,omitempty" yaml:"source,omitempty"`
	Metrics      []Metric         `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Buckets      []BucketSpec     `json:"buckets,omitempty" yaml:"buckets,omitempty"`
	Filters      []Filter         `json:"filters,omitempty" yaml:"filters,omitempty"`
	Datasets     []DatasetSpec    `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	MetricStyles map[string]Style `json:"metricStyles,omitempty" yaml:"metricStyles,omitempty"`
	Params       WidgetParams     `json:"params,omitempty" yaml:"params,omitempty"`
}

// ============================================================================
// AGGREGATION OUTPUT
// ============================================================================

// ProcessedBucket is one group produced by the Bucket Aggregator.
// Created fresh on every call; View gives builders the member records.
type ProcessedBucket struct {
	Key      string             `json:"key"`
	Label    string             `json:"label"`
	Count    int                `json:"count"`
	Values   map[string]float64 `json:"values"`
	Children []ProcessedBucket  `json:"children,omitempty"`
	View     RecordView         `json:"-"`
}

// ============================================================================
// CHART OUTPUT
// ============================================================================

// ChartData is the Chart.js-compatible {labels, datasets} structure.
type ChartData struct {
	Title    string         `json:"title,omitempty"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// Point is one scatter/bubble datum.
type Point struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	R *float64 `json:"r,omitempty"`
}

// ChartDataset is one series. Exactly one of Data or Points is used.
type ChartDataset struct {
	Label           string
	Type            string
	Data            []float64
	Points          []Point
	BackgroundColor Colors
	BorderColor     Colors
	BorderWidth     float64
	Fill            *bool
	Tension         *float64
	PointRadius     *float64
	Stack           string
	Hidden          bool
}

// ============================================================================
// KPI OUTPUT
// ============================================================================

// TrendDirection is "up" or "down".
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
)

// Trend compares a current value with a previous one.
// Direction is nil when the values are equal.
type Trend struct {
	Current   float64         `json:"current"`
	Previous  float64         `json:"previous"`
	Value     float64         `json:"trendValue"`
	Percent   float64         `json:"trendPercent"`
	Direction *TrendDirection `json:"trend"`
}

// KPIResult is the scalar shown by a KPI widget.
type KPIResult struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
	Count     int     `json:"count"`
	Trend     *Trend  `json:"trend,omitempty"`
}

// ============================================================================
// TABLE OUTPUT
// ============================================================================

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "date"
	Align string `json:"align"` // "left", "right"
}

// TableData is the {columns, displayData} structure consumed by tables.
type TableData struct {
	Columns     []Column `json:"columns"`
	DisplayData []Record `json:"displayData"`
}

// ============================================================================
// VALIDATION + RESULT
// ============================================================================

// Validation is a structured validity report. It is never an error value.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Result is the pipeline's render-ready output for one widget.
type Result struct {
	WidgetID    string            `json:"widgetId,omitempty"`
	Type        ChartType         `json:"type"`
	Title       string            `json:"title,omitempty"`
	Valid       bool              `json:"valid"`
	Errors      []string          `json:"errors,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	RecordCount int               `json:"recordCount"`
	Chart       *ChartData        `json:"chart,omitempty"`
	Charts      []ChartData       `json:"charts,omitempty"` // split_chart output
	Options     map[string]any    `json:"options,omitempty"`
	KPI         *KPIResult        `json:"kpi,omitempty"`
	Table       *TableData        `json:"table,omitempty"`
	Buckets     []ProcessedBucket `json:"buckets,omitempty"`
}
