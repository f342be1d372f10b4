package source

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
)

func TestParseCSV(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		input        string
		opts         CSVOptions
		expectedKeys []string
		expected     []engine.Record
	}{
		{
			name:         "typed cells",
			input:        "Name,Story Points,Code\nAlpha,3,007\nBeta,,12\n",
			opts:         CSVOptions{SnakeCaseHeaders: true},
			expectedKeys: []string{"name", "story_points", "code"},
			expected: []engine.Record{
				{"name": "Alpha", "story_points": 3.0, "code": "007"},
				{"name": "Beta", "code": 12.0},
			},
		},
		{
			name:         "raw strings",
			input:        "month,revenue\nJan-2024,1200.50\n",
			opts:         CSVOptions{RawStrings: true},
			expectedKeys: []string{"month", "revenue"},
			expected: []engine.Record{
				{"month": "Jan-2024", "revenue": "1200.50"},
			},
		},
		{
			name:         "byte order mark and blank header",
			input:        "\ufeffid, ,status\n1,x,open\n",
			expectedKeys: []string{"id", "column_2", "status"},
			expected: []engine.Record{
				{"id": 1.0, "column_2": "x", "status": "open"},
			},
		},
		{
			name:         "semicolon delimiter",
			input:        "region;amount\nEU;10\nUS; 20 \n",
			opts:         CSVOptions{Comma: ';'},
			expectedKeys: []string{"region", "amount"},
			expected: []engine.Record{
				{"region": "EU", "amount": 10.0},
				{"region": "US", "amount": 20.0},
			},
		},
		{
			name:         "short and long rows",
			input:        "a,b\n1\n2,3,4\n",
			expectedKeys: []string{"a", "b"},
			expected: []engine.Record{
				{"a": 1.0},
				{"a": 2.0, "b": 3.0},
			},
		},
		{
			name:         "header only",
			input:        "a,b\n",
			expectedKeys: []string{"a", "b"},
			expected:     []engine.Record{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view, err := ParseCSV(ctx, strings.NewReader(tc.input), tc.opts)
			require.NoError(t, err)

			assert.Equal(t, tc.expectedKeys, view.Keys())
			assert.Equal(t, tc.expected, engine.Records(view))
		})
	}
}

func TestParseCSVSkipsMalformedRows(t *testing.T) {
	input := "name,points\nAlpha,1\nBe\"ta,2\nGamma,3\n"

	view, err := ParseCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	require.Equal(t, 2, view.Len())
	assert.Equal(t, "Alpha", view.Record(0)["name"])
	assert.Equal(t, "Gamma", view.Record(1)["name"])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.Error(t, err)

	var validation errors.Validation
	assert.ErrorAs(t, err, &validation)
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in       string
		raw      bool
		expected any
	}{
		{"42", false, 42.0},
		{"-3.5", false, -3.5},
		{"0", false, 0.0},
		{"0.25", false, 0.25},
		{"007", false, "007"},
		{"NaN", false, "NaN"},
		{"Inf", false, "Inf"},
		{"1,200", false, "1,200"},
		{"42", true, "42"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, cellValue(tc.in, tc.raw), tc.in)
	}
}
