package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// FILTERS — Predicate evaluation via RecordView
// ============================================================================
// Every filter is compiled once into a predicate, then a single pass over the
// view keeps the rows where all predicates hold. Returns a SubView (index
// list into parent); records are never copied or mutated.
//
// Misconfigured filters fail closed: the predicate is false and the problem
// is reported as a *FilterError, which callers surface as a warning.
// ============================================================================

// FilterError reports a filter that could not be evaluated as configured.
type FilterError struct {
	Field    string
	Operator FilterOperator
	Reason   string
	Err      error
}

func (e *FilterError) Error() string {
	msg := fmt.Sprintf("filter %q on field %q: %s", e.Operator, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FilterError) Unwrap() error { return e.Err }

type predicate func(view RecordView, i int) bool

func never(RecordView, int) bool { return false }

// Match evaluates a single filter against a single record.
// A non-nil error means the filter is misconfigured; the result is then false.
func Match(rec Record, f Filter) (bool, error) {
	pred, err := compileFilter(f)
	if err != nil {
		return false, err
	}
	return pred(NewSliceView([]Record{rec}), 0), nil
}

// ApplyFilters returns a view of the records matching every filter.
// An empty filter list returns the input view unchanged. The returned view is
// always usable; a non-nil error joins the *FilterError of every filter that
// failed closed and should be treated as a warning.
func ApplyFilters(view RecordView, filters []Filter) (RecordView, error) {
	if len(filters) == 0 || view == nil {
		return view, nil
	}

	preds := make([]predicate, 0, len(filters))
	var errs []error
	for _, f := range filters {
		pred, err := compileFilter(f)
		if err != nil {
			errs = append(errs, err)
		}
		preds = append(preds, pred)
	}

	// Single pass: a record passes if it matches ALL filters
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for _, pred := range preds {
			if !pred(view, i) {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices), errors.Join(errs...)
}

// ApplyAllFilters applies global filters, then dataset filters to what
// survived. An empty intermediate result skips the second pass.
func ApplyAllFilters(view RecordView, global, dataset []Filter) (RecordView, error) {
	filtered, globalErr := ApplyFilters(view, global)
	if filtered == nil || filtered.Len() == 0 {
		return filtered, globalErr
	}
	filtered, datasetErr := ApplyFilters(filtered, dataset)
	return filtered, errors.Join(globalErr, datasetErr)
}

// ============================================================================
// PREDICATE COMPILATION
// ============================================================================

func compileFilter(f Filter) (predicate, error) {
	field := f.Field
	if field == "" && f.Operator != OpExpression {
		return never, &FilterError{Field: field, Operator: f.Operator, Reason: "missing field"}
	}

	switch f.Operator {
	case OpEquals:
		return func(v RecordView, i int) bool {
			val, ok := v.Value(i, field)
			return valuesEqual(val, ok, f.Value)
		}, nil

	case OpNotEquals:
		return func(v RecordView, i int) bool {
			val, ok := v.Value(i, field)
			return !valuesEqual(val, ok, f.Value)
		}, nil

	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		needle := strings.ToLower(ToText(f.Value))
		var test func(haystack string) bool
		switch f.Operator {
		case OpContains:
			test = func(h string) bool { return strings.Contains(h, needle) }
		case OpNotContains:
			test = func(h string) bool { return !strings.Contains(h, needle) }
		case OpStartsWith:
			test = func(h string) bool { return strings.HasPrefix(h, needle) }
		default:
			test = func(h string) bool { return strings.HasSuffix(h, needle) }
		}
		return func(v RecordView, i int) bool {
			val, _ := v.Value(i, field)
			return test(strings.ToLower(ToText(val)))
		}, nil

	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		want, ok := ToNumber(f.Value)
		if !ok {
			return never, &FilterError{Field: field, Operator: f.Operator,
				Reason: fmt.Sprintf("value %v is not numeric", f.Value)}
		}
		var cmp func(a float64) bool
		switch f.Operator {
		case OpGreaterThan:
			cmp = func(a float64) bool { return a > want }
		case OpLessThan:
			cmp = func(a float64) bool { return a < want }
		case OpGreaterOrEqual:
			cmp = func(a float64) bool { return a >= want }
		default:
			cmp = func(a float64) bool { return a <= want }
		}
		return func(v RecordView, i int) bool {
			val, _ := v.Value(i, field)
			n, ok := ToNumber(val)
			return ok && cmp(n)
		}, nil

	case OpIn, OpNotIn:
		list := ToList(f.Value)
		negate := f.Operator == OpNotIn
		return func(v RecordView, i int) bool {
			val, ok := v.Value(i, field)
			found := false
			for _, want := range list {
				if valuesEqual(val, ok, want) {
					found = true
					break
				}
			}
			return found != negate
		}, nil

	case OpIsNull:
		return func(v RecordView, i int) bool {
			return IsNull(v.Value(i, field))
		}, nil

	case OpIsNotNull:
		return func(v RecordView, i int) bool {
			return !IsNull(v.Value(i, field))
		}, nil

	case OpBetween:
		bounds := ToList(f.Value)
		if len(bounds) != 2 {
			return never, &FilterError{Field: field, Operator: f.Operator,
				Reason: "value must be a [low, high] pair"}
		}
		lo, okLo := ToNumber(bounds[0])
		hi, okHi := ToNumber(bounds[1])
		if !okLo || !okHi {
			return never, &FilterError{Field: field, Operator: f.Operator,
				Reason: "bounds must be numeric"}
		}
		return func(v RecordView, i int) bool {
			val, _ := v.Value(i, field)
			n, ok := ToNumber(val)
			return ok && n >= lo && n <= hi
		}, nil

	case OpExpression:
		return compileExpression(f)
	}

	return never, &FilterError{Field: field, Operator: f.Operator, Reason: "unknown operator"}
}

// valuesEqual compares a field value with a filter value.
// Both numeric → numeric equality, otherwise stringified equality.
// A null field equals only a nil filter value.
func valuesEqual(field any, present bool, want any) bool {
	if IsNull(field, present) {
		return want == nil
	}
	if want == nil {
		return false
	}
	if a, ok := ToNumber(field); ok {
		if b, ok := ToNumber(want); ok {
			return a == b
		}
	}
	return ToText(field) == ToText(want)
}
