package engine

import (
	"context"
	"fmt"
)

// ============================================================================
// EXECUTOR — Widget pipeline
// ============================================================================
// Entry point: Execute(ctx, cfg, view, opts...)
//
// Pipeline:
//   1. Validate the configuration (invalid → Result with errors, no output)
//   2. Apply global filters → SubView
//   3. Aggregate (failures and panics degrade to the raw path + warning)
//   4. Dispatch to builder (chart / kpi / table)
//   5. Return Result
//
// The engine reads consumer data through RecordView.
// ============================================================================

// Execute renders one widget over view. It never returns nil and never
// panics on bad configuration or data.
//
// Options:
//   - WithLocation(loc) — time zone for date_histogram windows
//   - WithLogger(l) — logger for debug output
//   - WithDefaultRadius(r) — bubble radius when a point has none
func Execute(ctx context.Context, cfg WidgetConfig, view RecordView, opts ...Option) *Result {
	c := applyOptions(opts)
	log := c.Logger

	validation := Validate(cfg)
	result := &Result{
		WidgetID: cfg.ID,
		Type:     cfg.Type,
		Title:    cfg.Title,
		Valid:    validation.IsValid,
		Errors:   validation.Errors,
		Warnings: validation.Warnings,
	}
	if !validation.IsValid {
		log.DebugContext(ctx, "widget configuration invalid",
			"widget_id", cfg.ID,
			"errors", validation.Errors,
		)
		return result
	}
	if err := ctx.Err(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("render cancelled: %v", err))
		return result
	}

	if view == nil {
		view = NewSliceView(nil)
	}

	// 1. Global filters → SubView (zero-copy)
	filtered, err := ApplyFilters(view, cfg.Filters)
	result.Warnings = append(result.Warnings, errorLines(err)...)
	result.RecordCount = filtered.Len()

	log.DebugContext(ctx, "widget records filtered",
		"widget_id", cfg.ID,
		"records", view.Len(),
		"matched", filtered.Len(),
	)

	// 2. Aggregate
	var buckets []ProcessedBucket
	if usesBuckets(cfg) {
		var warning string
		buckets, warning = safeAggregate(filtered, cfg, c)
		if warning != "" {
			log.WarnContext(ctx, "aggregation degraded to raw records",
				"widget_id", cfg.ID,
				"reason", warning,
			)
			result.Warnings = append(result.Warnings, warning)
		}
	}
	result.Buckets = buckets

	// 3. Dispatch to builder
	switch cfg.Type {
	case ChartKPI:
		result.KPI = BuildKPI(cfg, filtered, buckets)

	case ChartTable:
		table := ShapeTable(filtered, buckets, cfg)
		result.Table = &table

	default:
		dc := DatasetContext{
			Type:          cfg.Type,
			Metrics:       cfg.Metrics,
			MetricStyles:  cfg.MetricStyles,
			Params:        cfg.Params,
			BucketSpecs:   cfg.Buckets,
			Buckets:       buckets,
			View:          filtered,
			Datasets:      cfg.Datasets,
			DefaultRadius: c.DefaultRadius,
		}
		if len(buckets) > 0 && cfg.Buckets[0].EffectiveSplit() == SplitChart {
			charts, err := BuildSplitCharts(dc)
			result.Warnings = append(result.Warnings, errorLines(err)...)
			result.Charts = charts
		} else {
			chart, err := buildChart(cfg, dc)
			result.Warnings = append(result.Warnings, errorLines(err)...)
			result.Chart = chart
		}
		result.Options = BuildChartOptions(cfg.Type, cfg.Params)
	}

	log.DebugContext(ctx, "widget rendered",
		"widget_id", cfg.ID,
		"type", cfg.Type,
		"buckets", len(buckets),
		"warnings", len(result.Warnings),
	)
	return result
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func buildChart(cfg WidgetConfig, dc DatasetContext) (*ChartData, error) {
	datasets, err := BuildDatasets(dc)

	var labels []string
	switch {
	case cfg.Type.IsXY():
		labels = PointLabels(datasets)
	case cfg.Type == ChartRadar && len(cfg.Datasets) > 0:
		axes := RadarAxes(cfg.Datasets)
		labels = make([]string, len(axes))
		for i, a := range axes {
			labels[i] = LabelForField(a)
		}
	default:
		labels = BuildLabels(dc.Buckets, dc.View, cfg.Params.LabelField)
	}

	return &ChartData{Title: cfg.Title, Labels: labels, Datasets: datasets}, err
}

// usesBuckets reports whether the widget type consumes aggregated buckets.
func usesBuckets(cfg WidgetConfig) bool {
	if len(cfg.Buckets) == 0 || cfg.Type.IsXY() {
		return false
	}
	return !(cfg.Type == ChartRadar && len(cfg.Datasets) > 0)
}

// safeAggregate runs the aggregator, turning errors and panics into a
// warning and nil buckets.
func safeAggregate(view RecordView, cfg WidgetConfig, c *config) (buckets []ProcessedBucket, warning string) {
	defer func() {
		if r := recover(); r != nil {
			buckets = nil
			warning = fmt.Sprintf("aggregation failed: %v", r)
		}
	}()

	if view.Len() == 0 {
		return nil, ""
	}
	buckets, err := aggregateLevel(view, cfg.Buckets, cfg.Metrics, c)
	if err != nil {
		return nil, fmt.Sprintf("aggregation failed: %v", err)
	}
	return buckets, ""
}

// errorLines flattens a (possibly joined) error into messages.
func errorLines(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, errorLines(e)...)
		}
		return lines
	}
	return []string{err.Error()}
}
