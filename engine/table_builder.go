package engine

import (
	"encoding/json"
	"sort"
	"time"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from buckets or raw records
// ============================================================================
// Bucketed: one column per bucket level, a count column, one column per
// metric; one row per leaf bucket.
// Raw: columns from the first record's keys in source column order; rows are
// the input records themselves, never copied or mutated.
// ============================================================================

// CountColumn is the row key holding a leaf bucket's document count.
const CountColumn = "_count"

// ShapeTable produces the table for a widget.
func ShapeTable(view RecordView, buckets []ProcessedBucket, cfg WidgetConfig) TableData {
	if len(buckets) > 0 {
		return buildBucketTable(buckets, cfg)
	}
	return buildRawTable(view)
}

// ============================================================================
// BUCKET TABLE — Row per leaf bucket
// ============================================================================

func buildBucketTable(buckets []ProcessedBucket, cfg WidgetConfig) TableData {
	metricKeys := make(map[string]bool, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		metricKeys[m.Key()] = true
	}

	levelKeys := make([]string, len(cfg.Buckets))
	columns := make([]Column, 0, len(cfg.Buckets)+len(cfg.Metrics)+1)
	for i, spec := range cfg.Buckets {
		key := spec.Field
		if metricKeys[key] || key == CountColumn {
			key += "_bucket"
		}
		levelKeys[i] = key

		colType := "text"
		switch spec.Type {
		case BucketHistogram:
			colType = "number"
		case BucketDateHistogram:
			colType = "date"
		}
		columns = append(columns, Column{Key: key, Label: spec.DisplayLabel(), Type: colType, Align: "left"})
	}

	columns = append(columns, Column{Key: CountColumn, Label: "Count", Type: "number", Align: "right"})
	for _, m := range cfg.Metrics {
		columns = append(columns, Column{Key: m.Key(), Label: m.DisplayLabel(), Type: "number", Align: "right"})
	}

	rows := make([]Record, 0, len(buckets))
	var walk func(level []ProcessedBucket, depth int, prefix Record)
	walk = func(level []ProcessedBucket, depth int, prefix Record) {
		for _, b := range level {
			row := make(Record, len(prefix)+1)
			for k, v := range prefix {
				row[k] = v
			}
			if depth < len(levelKeys) {
				row[levelKeys[depth]] = b.Label
			}

			if len(b.Children) > 0 {
				walk(b.Children, depth+1, row)
				continue
			}

			row[CountColumn] = b.Count
			for _, m := range cfg.Metrics {
				row[m.Key()] = b.Values[m.Key()]
			}
			rows = append(rows, row)
		}
	}
	walk(buckets, 0, Record{})

	return TableData{Columns: columns, DisplayData: rows}
}

// ============================================================================
// RAW TABLE — Row per record
// ============================================================================

func buildRawTable(view RecordView) TableData {
	if view == nil || view.Len() == 0 {
		return TableData{Columns: []Column{}, DisplayData: []Record{}}
	}

	first := view.Record(0)
	keys := recordKeys(first, view.Keys())

	columns := make([]Column, 0, len(keys))
	for _, key := range keys {
		colType, align := "text", "left"
		switch first[key].(type) {
		case float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
			colType, align = "number", "right"
		case time.Time:
			colType = "date"
		}
		columns = append(columns, Column{Key: key, Label: LabelForField(key), Type: colType, Align: align})
	}

	rows := make([]Record, view.Len())
	for i := range rows {
		rows[i] = view.Record(i)
	}
	return TableData{Columns: columns, DisplayData: rows}
}

// recordKeys returns rec's keys ordered as in order, then any remaining keys
// sorted.
func recordKeys(rec Record, order []string) []string {
	keys := make([]string, 0, len(rec))
	seen := make(map[string]bool, len(rec))
	for _, k := range order {
		if _, ok := rec[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range rec {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
