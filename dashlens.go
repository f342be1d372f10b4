// Package dashlens turns raw records into dashboard widgets.
//
// Usage:
//
//	import "github.com/spektr-org/dashlens/engine"
//
//	view := engine.NewSliceView(records)
//	result := engine.Execute(ctx, widget, view,
//	    engine.WithLocation(time.UTC),
//	)
//
// The engine takes a WidgetConfig (filters, buckets, metrics) and a
// RecordView over the consumer's records, and returns render-ready output:
// Chart.js {labels, datasets}, a KPI value with trend, or table rows.
//
// Loading data is handled separately by the source package (CSV, JSON,
// OpenSearch). The engine never calls any external service.
package dashlens
