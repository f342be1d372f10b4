package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
)

// ============================================================================
// CSV — Parses CSV data into engine.Records
// ============================================================================
// Header order becomes the view's column order. Empty cells are left out of
// the record so is_null matches them; numeric cells become float64 unless
// RawStrings is set. Malformed rows are skipped and counted.
// ============================================================================

// CSVOptions tunes ParseCSV.
type CSVOptions struct {
	Comma            rune // default ','
	SnakeCaseHeaders bool // "Story Points" → "story_points"
	RawStrings       bool // keep every cell as a string
}

// ParseCSV reads CSV with a header row into a RecordView.
func ParseCSV(ctx context.Context, r io.Reader, opts CSVOptions) (engine.RecordView, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewValidation("csv has no header row")
		}
		return nil, errors.NewUnexpected("failed to read csv headers", err)
	}

	keys := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if opts.SnakeCaseHeaders {
			h = ToSnakeCase(h)
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		keys[i] = h
	}

	var records []engine.Record
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		rec := make(engine.Record, len(keys))
		for i, val := range row {
			if i >= len(keys) {
				break
			}
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			rec[keys[i]] = cellValue(val, opts.RawStrings)
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		slog.WarnContext(ctx, "skipped malformed csv rows",
			"skipped", skipped,
			"records", len(records),
		)
	}
	return engine.NewSliceView(records, keys...), nil
}

func cellValue(val string, raw bool) any {
	if raw {
		return val
	}
	if f, ok := engine.ToNumber(val); ok && !isPaddedInteger(val) {
		return f
	}
	return val
}

// isPaddedInteger reports codes like "007" or "01234" that must keep their
// leading zeros.
func isPaddedInteger(s string) bool {
	return len(s) > 1 && s[0] == '0' && !strings.ContainsAny(s, ".eE")
}
