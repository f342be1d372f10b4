package engine

import (
	"fmt"
)

// ============================================================================
// VALIDATION — Structural checks before rendering
// ============================================================================
// Errors make the widget unrenderable; warnings describe config the pipeline
// tolerates (ignored settings, fail-closed filters). Validate never panics
// and never returns an error value.
// ============================================================================

// Validate checks a widget configuration.
func Validate(cfg WidgetConfig) Validation {
	v := &validator{}

	if !cfg.Type.Valid() {
		v.errorf("unknown widget type %q", cfg.Type)
	}

	v.checkMetrics(cfg)
	v.checkBuckets(cfg)
	for i, f := range cfg.Filters {
		v.checkFilter(fmt.Sprintf("filter %d", i+1), f)
	}
	v.checkDatasets(cfg)

	return v.result()
}

type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) result() Validation {
	out := Validation{IsValid: len(v.errors) == 0, Errors: v.errors, Warnings: v.warnings}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}

// ============================================================================
// METRICS
// ============================================================================

func (v *validator) checkMetrics(cfg WidgetConfig) {
	needsMetric := cfg.Type == ChartKPI ||
		(cfg.Type.IsChart() && !cfg.Type.IsXY() && !(cfg.Type == ChartRadar && len(cfg.Datasets) > 0))
	if needsMetric && len(cfg.Metrics) == 0 {
		v.errorf("%s widget needs at least one metric", cfg.Type)
	}
	if cfg.Type == ChartKPI && len(cfg.Metrics) > 1 {
		v.warnf("kpi widget shows only the first of %d metrics", len(cfg.Metrics))
	}

	seen := make(map[string]bool, len(cfg.Metrics))
	for i, m := range cfg.Metrics {
		name := fmt.Sprintf("metric %d", i+1)
		if !m.Agg.Valid() {
			v.warnf("%s: unknown aggregation %q, using sum", name, m.Agg)
		}
		if m.Field == "" && m.Agg != AggCount {
			v.errorf("%s: field is required for %s", name, m.Agg)
		}
		if seen[m.Key()] {
			v.errorf("%s: duplicate metric key %q, set a distinct id", name, m.Key())
		}
		seen[m.Key()] = true
	}
}

// ============================================================================
// BUCKETS
// ============================================================================

func (v *validator) checkBuckets(cfg WidgetConfig) {
	if cfg.Type.IsXY() && len(cfg.Buckets) > 0 {
		v.warnf("%s widget plots raw points, buckets are ignored", cfg.Type)
	}

	metricKeys := make(map[string]bool, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		metricKeys[m.Key()] = true
	}

	for i, b := range cfg.Buckets {
		name := fmt.Sprintf("bucket %d", i+1)
		if b.Field == "" {
			v.errorf("%s: field is required", name)
		}
		if !b.Type.Valid() {
			v.errorf("%s: unknown bucket type %q", name, b.Type)
			continue
		}

		switch b.Type {
		case BucketHistogram:
			if b.Interval <= 0 {
				v.errorf("%s: histogram interval must be positive", name)
			}
		case BucketDateHistogram:
			if !b.DateInterval.Valid() {
				v.errorf("%s: unknown date interval %q", name, b.DateInterval)
			}
		case BucketRange:
			if len(b.Ranges) == 0 {
				v.errorf("%s: range bucket needs at least one range", name)
			}
			for j, r := range b.Ranges {
				if r.From != nil && r.To != nil && *r.From >= *r.To {
					v.warnf("%s: range %d [%s) can never match", name, j+1, RangeKey(r))
				}
			}
		}

		if b.Size < 0 {
			v.errorf("%s: size must not be negative", name)
		} else if b.Size > 0 && b.Type != BucketTerms && !b.Type.IsSplit() {
			v.warnf("%s: size applies to terms buckets only", name)
		}
		if b.MinDocCount < 0 {
			v.errorf("%s: minDocCount must not be negative", name)
		}
		if b.Order != "" && b.Order != OrderAsc && b.Order != OrderDesc {
			v.errorf("%s: unknown order %q", name, b.Order)
		}
		if b.OrderBy != "" && b.OrderBy != OrderByCount && b.OrderBy != OrderByKey && !metricKeys[b.OrderBy] {
			v.warnf("%s: orderBy %q is not a metric key", name, b.OrderBy)
		}
		if b.Type == BucketSplitChart && i > 0 {
			v.warnf("%s: split_chart only splits charts as the outer bucket", name)
		}
	}
}

// ============================================================================
// FILTERS
// ============================================================================

func (v *validator) checkFilter(name string, f Filter) {
	if !f.Operator.Valid() {
		v.warnf("%s: unknown operator %q matches nothing", name, f.Operator)
		return
	}
	if f.Operator == OpExpression {
		if err := ExpressionError(ToText(f.Value)); err != nil {
			v.errorf("%s: %v", name, err)
		}
		return
	}
	if f.Field == "" {
		v.errorf("%s: field is required", name)
		return
	}

	switch f.Operator {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		if _, ok := ToNumber(f.Value); !ok {
			v.warnf("%s: %s needs a numeric value, got %v", name, f.Operator, f.Value)
		}
	case OpBetween:
		if _, err := compileFilter(f); err != nil {
			v.errorf("%s: %v", name, err)
		}
	}
}

// ============================================================================
// DATASETS (scatter / bubble / radar)
// ============================================================================

func (v *validator) checkDatasets(cfg WidgetConfig) {
	switch {
	case cfg.Type.IsXY():
		if len(cfg.Datasets) == 0 && len(cfg.Metrics) < 2 {
			v.errorf("%s widget needs datasets or at least two metrics (x, y)", cfg.Type)
		}
		for i, d := range cfg.Datasets {
			name := fmt.Sprintf("dataset %d", i+1)
			if d.X == "" || d.Y == "" {
				v.errorf("%s: x and y fields are required", name)
			}
			if cfg.Type == ChartBubble && d.R == "" {
				v.warnf("%s: no r field, using the default radius", name)
			}
			for j, f := range d.Filters {
				v.checkFilter(fmt.Sprintf("%s filter %d", name, j+1), f)
			}
		}

	case cfg.Type == ChartRadar:
		for i, d := range cfg.Datasets {
			name := fmt.Sprintf("dataset %d", i+1)
			if len(d.Fields) == 0 {
				v.errorf("%s: radar dataset needs at least one field", name)
			}
			if d.Agg != "" && !d.Agg.Valid() {
				v.warnf("%s: unknown aggregation %q, using sum", name, d.Agg)
			}
			for j, f := range d.Filters {
				v.checkFilter(fmt.Sprintf("%s filter %d", name, j+1), f)
			}
		}

	default:
		if len(cfg.Datasets) > 0 {
			v.warnf("%s widget ignores dataset specs", cfg.Type)
		}
	}
}
