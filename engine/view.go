package engine

import (
	"sort"
	"strings"
)

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns source data and never mutates it. It reads through
// this interface.
//
// Implementations:
//   SliceView      — wraps []Record (CSV, JSON, search hits)
//   DomainView[T]  — reads typed structs via accessor functions (zero-copy)
//   SubView        — filtered or grouped subset (indices into parent)
//
// Filters and buckets produce SubViews, so a bucket's member set costs one
// []int, not a copy of its records.
// ============================================================================

// RecordView provides indexed access to a dataset.
type RecordView interface {
	Len() int
	// Value returns the field value at index i. ok is false for missing fields.
	Value(i int, field string) (any, bool)
	// Record returns the whole row at index i.
	Record(i int) Record
	// Keys lists the known fields in source column order.
	Keys() []string
}

// ============================================================================
// SLICE VIEW
// ============================================================================

// SliceView wraps a []Record slice as a RecordView.
type SliceView struct {
	records []Record
	keys    []string
}

// NewSliceView creates a RecordView from records. keys fixes the column
// order; when empty, keys are collected from the records in sorted order
// since map iteration carries no order.
func NewSliceView(records []Record, keys ...string) RecordView {
	v := &SliceView{records: records, keys: keys}
	if len(v.keys) == 0 {
		v.keys = collectKeys(records)
	}
	return v
}

func collectKeys(records []Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) Value(i int, field string) (any, bool) {
	if i < 0 || i >= len(v.records) {
		return nil, false
	}
	return Lookup(v.records[i], field)
}

func (v *SliceView) Record(i int) Record {
	if i < 0 || i >= len(v.records) {
		return nil
	}
	return v.records[i]
}

func (v *SliceView) Keys() []string { return v.keys }

// ============================================================================
// SUB VIEW
// ============================================================================

// SubView is a subset of a parent RecordView.
// Holds indices into the parent, not records.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	// Flatten nested sub-views so lookups stay one hop deep.
	if sv, ok := parent.(*SubView); ok {
		flat := make([]int, len(indices))
		for i, idx := range indices {
			flat[i] = sv.indices[idx]
		}
		return &SubView{parent: sv.parent, indices: flat}
	}
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Value(i int, field string) (any, bool) {
	if i < 0 || i >= len(v.indices) {
		return nil, false
	}
	return v.parent.Value(v.indices[i], field)
}

func (v *SubView) Record(i int) Record {
	if i < 0 || i >= len(v.indices) {
		return nil
	}
	return v.parent.Record(v.indices[i])
}

func (v *SubView) Keys() []string { return v.parent.Keys() }

// Records materializes a view into a slice of its rows.
// Rows are shared with the source, not copied.
func Records(view RecordView) []Record {
	if view == nil {
		return nil
	}
	out := make([]Record, view.Len())
	for i := range out {
		out[i] = view.Record(i)
	}
	return out
}

// ============================================================================
// FIELD LOOKUP
// ============================================================================

// Lookup reads field from rec. A literal key wins; otherwise a dotted path
// walks nested maps ("user.address.city").
func Lookup(rec Record, field string) (any, bool) {
	if rec == nil {
		return nil, false
	}
	if v, ok := rec[field]; ok {
		return v, true
	}
	if !strings.Contains(field, ".") {
		return nil, false
	}

	var cur any = map[string]any(rec)
	for _, part := range strings.Split(field, ".") {
		switch m := cur.(type) {
		case map[string]any:
			next, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = next
		case Record:
			next, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, true
}

// ============================================================================
// DOMAIN ADAPTER — Zero-copy typed struct access
// ============================================================================
//
// Usage:
//
//	adapter := engine.NewDomainAdapter[Order]().
//	    Field("region", func(o Order) any { return o.Region }).
//	    Field("revenue", func(o Order) any { return o.Revenue })
//
//	view := adapter.Bind(orders)
//	result := engine.Execute(ctx, widget, view)
//
// ============================================================================

// DomainAdapter builds a RecordView from typed structs.
// Declare once, bind many times.
type DomainAdapter[T any] struct {
	order  []string
	fields map[string]func(T) any
}

// NewDomainAdapter creates a new adapter for type T.
func NewDomainAdapter[T any]() *DomainAdapter[T] {
	return &DomainAdapter[T]{fields: make(map[string]func(T) any)}
}

// Field registers a field accessor.
func (a *DomainAdapter[T]) Field(key string, fn func(T) any) *DomainAdapter[T] {
	if _, exists := a.fields[key]; !exists {
		a.order = append(a.order, key)
	}
	a.fields[key] = fn
	return a
}

// Bind creates a RecordView from a data slice. Holds a reference, no copy.
func (a *DomainAdapter[T]) Bind(data []T) RecordView {
	return &DomainView[T]{data: data, fields: a.fields, keys: a.order}
}

// DomainView reads typed struct fields via registered accessor functions.
type DomainView[T any] struct {
	data   []T
	fields map[string]func(T) any
	keys   []string
}

func (v *DomainView[T]) Len() int { return len(v.data) }

func (v *DomainView[T]) Value(i int, field string) (any, bool) {
	if i < 0 || i >= len(v.data) {
		return nil, false
	}
	fn, ok := v.fields[field]
	if !ok {
		return nil, false
	}
	return fn(v.data[i]), true
}

// Record builds a map for row i. Unlike SliceView this allocates.
func (v *DomainView[T]) Record(i int) Record {
	if i < 0 || i >= len(v.data) {
		return nil
	}
	rec := make(Record, len(v.keys))
	for _, k := range v.keys {
		rec[k] = v.fields[k](v.data[i])
	}
	return rec
}

func (v *DomainView[T]) Keys() []string { return v.keys }
