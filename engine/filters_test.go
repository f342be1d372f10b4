package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// FILTER TESTS
// ============================================================================

var orders = []Record{
	{"region": "EU", "product": "Laptop", "revenue": 1200.0, "units": 2, "channel": "web"},
	{"region": "US", "product": "Mouse", "revenue": 25.5, "units": "10", "channel": nil},
	{"region": "EU", "product": "Monitor", "revenue": "340", "units": 1},
	{"region": "APAC", "product": "laptop sleeve", "revenue": "n/a", "units": 4, "channel": ""},
	{"region": "US", "product": "Keyboard", "revenue": 80.0, "units": 3, "channel": "retail"},
}

func filteredProducts(t *testing.T, filters ...Filter) []string {
	t.Helper()
	view, err := ApplyFilters(NewSliceView(orders), filters)
	require.NoError(t, err)
	products := make([]string, view.Len())
	for i := range products {
		products[i] = ToText(view.Record(i)["product"])
	}
	return products
}

func TestApplyFiltersOperators(t *testing.T) {
	tests := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{
			name:     "equals string",
			filter:   Filter{Field: "region", Operator: OpEquals, Value: "EU"},
			expected: []string{"Laptop", "Monitor"},
		},
		{
			name:     "equals numeric across string and number",
			filter:   Filter{Field: "units", Operator: OpEquals, Value: 10},
			expected: []string{"Mouse"},
		},
		{
			name:     "not equals",
			filter:   Filter{Field: "region", Operator: OpNotEquals, Value: "US"},
			expected: []string{"Laptop", "Monitor", "laptop sleeve"},
		},
		{
			name:     "contains is case-insensitive",
			filter:   Filter{Field: "product", Operator: OpContains, Value: "LAPTOP"},
			expected: []string{"Laptop", "laptop sleeve"},
		},
		{
			name:     "not contains",
			filter:   Filter{Field: "product", Operator: OpNotContains, Value: "top"},
			expected: []string{"Mouse", "Monitor", "Keyboard"},
		},
		{
			name:     "starts with",
			filter:   Filter{Field: "product", Operator: OpStartsWith, Value: "m"},
			expected: []string{"Mouse", "Monitor"},
		},
		{
			name:     "ends with",
			filter:   Filter{Field: "product", Operator: OpEndsWith, Value: "OARD"},
			expected: []string{"Keyboard"},
		},
		{
			name:     "greater than skips non-numeric values",
			filter:   Filter{Field: "revenue", Operator: OpGreaterThan, Value: 50},
			expected: []string{"Laptop", "Monitor", "Keyboard"},
		},
		{
			name:     "less than with string filter value",
			filter:   Filter{Field: "revenue", Operator: OpLessThan, Value: "100"},
			expected: []string{"Mouse", "Keyboard"},
		},
		{
			name:     "greater or equal",
			filter:   Filter{Field: "units", Operator: OpGreaterOrEqual, Value: 3},
			expected: []string{"Mouse", "laptop sleeve", "Keyboard"},
		},
		{
			name:     "less or equal",
			filter:   Filter{Field: "units", Operator: OpLessOrEqual, Value: 2},
			expected: []string{"Laptop", "Monitor"},
		},
		{
			name:     "in list",
			filter:   Filter{Field: "region", Operator: OpIn, Value: []string{"US", "APAC"}},
			expected: []string{"Mouse", "laptop sleeve", "Keyboard"},
		},
		{
			name:     "in scalar is a one-element list",
			filter:   Filter{Field: "region", Operator: OpIn, Value: "APAC"},
			expected: []string{"laptop sleeve"},
		},
		{
			name:     "not in numeric list",
			filter:   Filter{Field: "units", Operator: OpNotIn, Value: []any{1, 2, 3}},
			expected: []string{"Mouse", "laptop sleeve"},
		},
		{
			name:     "is null covers missing and nil",
			filter:   Filter{Field: "channel", Operator: OpIsNull},
			expected: []string{"Mouse", "Monitor"},
		},
		{
			name:     "empty string is not null",
			filter:   Filter{Field: "channel", Operator: OpIsNotNull},
			expected: []string{"Laptop", "laptop sleeve", "Keyboard"},
		},
		{
			name:     "between is inclusive",
			filter:   Filter{Field: "revenue", Operator: OpBetween, Value: []any{80, 340}},
			expected: []string{"Monitor", "Keyboard"},
		},
		{
			name: "expression",
			filter: Filter{Operator: OpExpression,
				Value: `record.region == "EU" && record.units == 1`},
			expected: []string{"Monitor"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, filteredProducts(t, tc.filter))
		})
	}
}

func TestApplyFiltersCombinesWithAnd(t *testing.T) {
	got := filteredProducts(t,
		Filter{Field: "region", Operator: OpEquals, Value: "US"},
		Filter{Field: "revenue", Operator: OpGreaterThan, Value: 50},
	)
	assert.Equal(t, []string{"Keyboard"}, got)
}

func TestApplyFiltersEmptyListReturnsInput(t *testing.T) {
	view := NewSliceView(orders)
	got, err := ApplyFilters(view, nil)
	require.NoError(t, err)
	assert.Same(t, view, got)
}

func TestApplyFiltersIsIdempotent(t *testing.T) {
	filters := []Filter{
		{Field: "region", Operator: OpIn, Value: []string{"EU", "US"}},
		{Field: "revenue", Operator: OpGreaterOrEqual, Value: 25.5},
	}

	once, err := ApplyFilters(NewSliceView(orders), filters)
	require.NoError(t, err)
	twice, err := ApplyFilters(once, filters)
	require.NoError(t, err)

	assert.Equal(t, Records(once), Records(twice))
}

func TestApplyFiltersFailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		reason string
	}{
		{
			name:   "greater than with non-numeric value",
			filter: Filter{Field: "revenue", Operator: OpGreaterThan, Value: "abc"},
			reason: "not numeric",
		},
		{
			name:   "unknown operator",
			filter: Filter{Field: "region", Operator: "regex", Value: "E.*"},
			reason: "unknown operator",
		},
		{
			name:   "missing field",
			filter: Filter{Operator: OpEquals, Value: "EU"},
			reason: "missing field",
		},
		{
			name:   "between with one bound",
			filter: Filter{Field: "revenue", Operator: OpBetween, Value: []any{1}},
			reason: "[low, high]",
		},
		{
			name:   "expression that does not compile",
			filter: Filter{Operator: OpExpression, Value: "record.region =="},
			reason: "invalid expression",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view, err := ApplyFilters(NewSliceView(orders), []Filter{tc.filter})
			require.Error(t, err)
			assert.Equal(t, 0, view.Len())

			var fe *FilterError
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, fe.Error(), tc.reason)
		})
	}
}

func TestApplyFiltersDoesNotMutateRecords(t *testing.T) {
	rec := Record{"region": "EU", "revenue": "12"}
	_, err := ApplyFilters(NewSliceView([]Record{rec}), []Filter{
		{Field: "revenue", Operator: OpGreaterThan, Value: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, Record{"region": "EU", "revenue": "12"}, rec)
}

func TestApplyAllFiltersIsolatesDatasets(t *testing.T) {
	global := []Filter{{Field: "region", Operator: OpNotEquals, Value: "APAC"}}
	view := NewSliceView(orders)

	eu, err := ApplyAllFilters(view, global, []Filter{{Field: "region", Operator: OpEquals, Value: "EU"}})
	require.NoError(t, err)
	us, err := ApplyAllFilters(view, global, []Filter{{Field: "region", Operator: OpEquals, Value: "US"}})
	require.NoError(t, err)

	assert.Equal(t, 2, eu.Len())
	assert.Equal(t, 2, us.Len())
	for i := 0; i < us.Len(); i++ {
		assert.Equal(t, "US", us.Record(i)["region"])
	}
}

func TestMatchNestedField(t *testing.T) {
	rec := Record{"customer": map[string]any{"tier": "gold"}}

	ok, err := Match(rec, Filter{Field: "customer.tier", Operator: OpEquals, Value: "gold"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(rec, Filter{Field: "customer.region", Operator: OpIsNull})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchNullEquality(t *testing.T) {
	rec := Record{"channel": nil}

	ok, err := Match(rec, Filter{Field: "channel", Operator: OpEquals, Value: nil})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(rec, Filter{Field: "channel", Operator: OpEquals, Value: ""})
	require.NoError(t, err)
	assert.False(t, ok)
}
