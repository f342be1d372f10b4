package engine

import (
	"encoding/json"
	"errors"
	"strconv"
)

// ============================================================================
// CHART BUILDER — Chart.js {labels, datasets} from buckets or raw rows
// ============================================================================
// Bucketed charts: labels = outermost bucket labels, one dataset per metric
// (or per metric × series key when the second bucket splits series), every
// data array aligned with labels.
// XY charts: points read from each dataset's own filtered view.
// Radar with dataset specs: one axis per field, one dataset per spec.
// ============================================================================

// DatasetContext bundles what BuildDatasets needs.
type DatasetContext struct {
	Type          ChartType
	Metrics       []Metric
	MetricStyles  map[string]Style
	Params        WidgetParams
	BucketSpecs   []BucketSpec
	Buckets       []ProcessedBucket
	View          RecordView // globally filtered records
	Datasets      []DatasetSpec
	DefaultRadius float64
}

// BuildLabels returns the chart labels. With buckets these are the outer
// bucket labels; otherwise one label per row, read from fallbackField or
// numbered from 1.
func BuildLabels(buckets []ProcessedBucket, view RecordView, fallbackField string) []string {
	if len(buckets) > 0 {
		labels := make([]string, len(buckets))
		for i, b := range buckets {
			labels[i] = b.Label
		}
		return labels
	}
	if view == nil {
		return []string{}
	}

	labels := make([]string, view.Len())
	for i := range labels {
		if fallbackField != "" {
			if raw, ok := view.Value(i, fallbackField); !IsNull(raw, ok) {
				labels[i] = ToText(raw)
				continue
			}
		}
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}

// BuildDatasets builds every dataset for a chart widget.
// The error joins dataset filter problems and is a warning; the datasets are
// usable regardless.
func BuildDatasets(dc DatasetContext) ([]ChartDataset, error) {
	switch {
	case dc.Type.IsXY():
		return buildPointDatasets(dc)
	case dc.Type == ChartRadar && len(dc.Datasets) > 0:
		return buildRadarDatasets(dc)
	case len(dc.Buckets) > 0 && splitsSeries(dc.BucketSpecs):
		return buildSeriesDatasets(dc), nil
	case len(dc.Buckets) > 0:
		return buildMetricDatasets(dc), nil
	}
	return buildRawDatasets(dc), nil
}

// BuildSplitCharts renders one chart per outer bucket of a split_chart
// widget, each built from that bucket's children.
func BuildSplitCharts(dc DatasetContext) ([]ChartData, error) {
	charts := make([]ChartData, 0, len(dc.Buckets))
	var errs []error

	for _, outer := range dc.Buckets {
		sub := dc
		sub.View = outer.View
		if len(outer.Children) > 0 {
			sub.Buckets = outer.Children
			sub.BucketSpecs = dc.BucketSpecs[1:]
		} else {
			sub.Buckets = []ProcessedBucket{outer}
			sub.BucketSpecs = dc.BucketSpecs[:1]
		}

		datasets, err := BuildDatasets(sub)
		if err != nil {
			errs = append(errs, err)
		}
		charts = append(charts, ChartData{
			Title:    outer.Label,
			Labels:   BuildLabels(sub.Buckets, sub.View, dc.Params.LabelField),
			Datasets: datasets,
		})
	}
	return charts, errors.Join(errs...)
}

// ============================================================================
// BUCKETED DATASETS
// ============================================================================

func buildMetricDatasets(dc DatasetContext) []ChartDataset {
	datasets := make([]ChartDataset, 0, len(dc.Metrics))
	for i, m := range dc.Metrics {
		data := make([]float64, len(dc.Buckets))
		for j, b := range dc.Buckets {
			data[j] = b.Values[m.Key()]
		}
		ds := ChartDataset{Label: m.DisplayLabel(), Type: m.Type, Data: data}
		applyStyle(&ds, metricStyle(dc.MetricStyles, m), dc.Params, dc.Type, i, len(data))
		datasets = append(datasets, ds)
	}
	return datasets
}

// buildSeriesDatasets emits one dataset per (metric, child key). Child keys
// are collected in first-seen order across all outer buckets; an outer
// bucket without a given child contributes 0.
func buildSeriesDatasets(dc DatasetContext) []ChartDataset {
	type series struct {
		key   string
		label string
	}
	var keys []series
	seen := make(map[string]bool)
	for _, outer := range dc.Buckets {
		for _, child := range outer.Children {
			if !seen[child.Key] {
				seen[child.Key] = true
				keys = append(keys, series{key: child.Key, label: child.Label})
			}
		}
	}

	datasets := make([]ChartDataset, 0, len(keys)*len(dc.Metrics))
	for _, m := range dc.Metrics {
		for _, s := range keys {
			data := make([]float64, len(dc.Buckets))
			for j, outer := range dc.Buckets {
				for _, child := range outer.Children {
					if child.Key == s.key {
						data[j] = child.Values[m.Key()]
						break
					}
				}
			}

			label := s.label
			if len(dc.Metrics) > 1 {
				label = s.label + " (" + m.DisplayLabel() + ")"
			}
			ds := ChartDataset{Label: label, Type: m.Type, Data: data}
			if dc.Params.Stacked && len(dc.Metrics) > 1 {
				ds.Stack = m.Key()
			}

			// Series colours are positional, a single metric style would
			// flatten them.
			var style *Style
			if len(keys) == 1 {
				style = metricStyle(dc.MetricStyles, m)
			}
			applyStyle(&ds, style, dc.Params, dc.Type, len(datasets), len(data))
			datasets = append(datasets, ds)
		}
	}
	return datasets
}

func splitsSeries(specs []BucketSpec) bool {
	return len(specs) > 1 && specs[1].EffectiveSplit() == SplitSeries
}

// ============================================================================
// RAW DATASETS (no buckets)
// ============================================================================

// buildRawDatasets plots one point per row. Non-numeric values plot as 0 so
// data stays aligned with the per-row labels.
func buildRawDatasets(dc DatasetContext) []ChartDataset {
	n := 0
	if dc.View != nil {
		n = dc.View.Len()
	}

	datasets := make([]ChartDataset, 0, len(dc.Metrics))
	for i, m := range dc.Metrics {
		data := make([]float64, n)
		for r := 0; r < n; r++ {
			if m.Agg == AggCount {
				data[r] = 1
				continue
			}
			raw, _ := dc.View.Value(r, m.Field)
			if v, ok := ToNumber(raw); ok {
				data[r] = v
			}
		}
		ds := ChartDataset{Label: m.DisplayLabel(), Type: m.Type, Data: data}
		applyStyle(&ds, metricStyle(dc.MetricStyles, m), dc.Params, dc.Type, i, n)
		datasets = append(datasets, ds)
	}
	return datasets
}

// ============================================================================
// XY + RADAR DATASETS
// ============================================================================

func buildPointDatasets(dc DatasetContext) ([]ChartDataset, error) {
	specs := xySpecs(dc)
	radius := dc.DefaultRadius
	if dc.Params.DefaultRadius > 0 {
		radius = dc.Params.DefaultRadius
	}

	datasets := make([]ChartDataset, 0, len(specs))
	var errs []error
	for i, spec := range specs {
		// Each dataset filters the global view on its own.
		view, err := ApplyFilters(dc.View, spec.Filters)
		if err != nil {
			errs = append(errs, err)
		}

		points := make([]Point, 0)
		for r := 0; view != nil && r < view.Len(); r++ {
			xv, _ := view.Value(r, spec.X)
			x, ok := ToNumber(xv)
			if !ok {
				continue
			}
			yv, _ := view.Value(r, spec.Y)
			y, ok := ToNumber(yv)
			if !ok {
				continue
			}
			p := Point{X: x, Y: y}
			if dc.Type == ChartBubble {
				rad := radius
				if spec.R != "" {
					rv, _ := view.Value(r, spec.R)
					if v, ok := ToNumber(rv); ok {
						rad = v
					}
				}
				p.R = &rad
			}
			points = append(points, p)
		}

		ds := ChartDataset{Label: datasetLabel(spec, i), Points: points}
		applyStyle(&ds, spec.Style, dc.Params, dc.Type, i, len(points))
		datasets = append(datasets, ds)
	}
	return datasets, errors.Join(errs...)
}

// xySpecs returns the configured dataset specs, or one derived from the
// metric fields (x, y, r in order) when none are configured.
func xySpecs(dc DatasetContext) []DatasetSpec {
	if len(dc.Datasets) > 0 {
		return dc.Datasets
	}
	if len(dc.Metrics) < 2 {
		return nil
	}
	spec := DatasetSpec{
		Label: dc.Metrics[1].DisplayLabel(),
		X:     dc.Metrics[0].Field,
		Y:     dc.Metrics[1].Field,
	}
	if len(dc.Metrics) > 2 {
		spec.R = dc.Metrics[2].Field
	}
	return []DatasetSpec{spec}
}

func buildRadarDatasets(dc DatasetContext) ([]ChartDataset, error) {
	axes := RadarAxes(dc.Datasets)

	datasets := make([]ChartDataset, 0, len(dc.Datasets))
	var errs []error
	for i, spec := range dc.Datasets {
		view, err := ApplyFilters(dc.View, spec.Filters)
		if err != nil {
			errs = append(errs, err)
		}

		agg := spec.Agg
		if agg == "" {
			agg = AggAvg
		}
		own := make(map[string]bool, len(spec.Fields))
		for _, f := range spec.Fields {
			own[f] = true
		}

		data := make([]float64, len(axes))
		for a, field := range axes {
			if own[field] {
				data[a] = ComputeMetric(view, Metric{Field: field, Agg: agg})
			}
		}

		ds := ChartDataset{Label: datasetLabel(spec, i), Data: data}
		applyStyle(&ds, spec.Style, dc.Params, dc.Type, i, len(data))
		datasets = append(datasets, ds)
	}
	return datasets, errors.Join(errs...)
}

// RadarAxes returns the union of dataset fields in first-seen order.
func RadarAxes(specs []DatasetSpec) []string {
	var axes []string
	seen := make(map[string]bool)
	for _, s := range specs {
		for _, f := range s.Fields {
			if !seen[f] {
				seen[f] = true
				axes = append(axes, f)
			}
		}
	}
	return axes
}

// PointLabels lists the distinct x values of point datasets in first-seen
// order.
func PointLabels(datasets []ChartDataset) []string {
	labels := make([]string, 0)
	seen := make(map[float64]bool)
	for _, ds := range datasets {
		for _, p := range ds.Points {
			if !seen[p.X] {
				seen[p.X] = true
				labels = append(labels, FormatNumber(p.X))
			}
		}
	}
	return labels
}

func datasetLabel(spec DatasetSpec, i int) string {
	switch {
	case spec.Label != "":
		return spec.Label
	case spec.ID != "":
		return spec.ID
	}
	return "Dataset " + strconv.Itoa(i+1)
}

func metricStyle(styles map[string]Style, m Metric) *Style {
	if s, ok := styles[m.Key()]; ok {
		return &s
	}
	if s, ok := styles[m.Field]; ok && m.Field != "" {
		return &s
	}
	return nil
}

// ============================================================================
// JSON
// ============================================================================

// MarshalJSON emits Chart.js dataset keys. "data" holds Points for XY
// datasets and Data otherwise.
func (d ChartDataset) MarshalJSON() ([]byte, error) {
	type wire struct {
		Label           string   `json:"label"`
		Type            string   `json:"type,omitempty"`
		Data            any      `json:"data"`
		BackgroundColor Colors   `json:"backgroundColor,omitempty"`
		BorderColor     Colors   `json:"borderColor,omitempty"`
		BorderWidth     float64  `json:"borderWidth"`
		Fill            *bool    `json:"fill,omitempty"`
		Tension         *float64 `json:"tension,omitempty"`
		PointRadius     *float64 `json:"pointRadius,omitempty"`
		Stack           string   `json:"stack,omitempty"`
		Hidden          bool     `json:"hidden,omitempty"`
	}

	w := wire{
		Label:           d.Label,
		Type:            d.Type,
		BackgroundColor: d.BackgroundColor,
		BorderColor:     d.BorderColor,
		BorderWidth:     d.BorderWidth,
		Fill:            d.Fill,
		Tension:         d.Tension,
		PointRadius:     d.PointRadius,
		Stack:           d.Stack,
		Hidden:          d.Hidden,
	}
	switch {
	case d.Points != nil:
		w.Data = d.Points
	case d.Data != nil:
		w.Data = d.Data
	default:
		w.Data = []float64{}
	}
	return json.Marshal(w)
}
