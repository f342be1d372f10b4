package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
)

// ============================================================================
// JSON — Arrays, envelopes and NDJSON into engine.Records
// ============================================================================
// Accepted shapes:
//   [ {...}, {...} ]                 array of objects
//   { "data": [ {...}, ... ] }       envelope (data, records, rows, items, results)
//   {...}\n{...}\n                   newline-delimited objects
//   {...}                            a single record
//
// Numbers decode as json.Number so large integers survive. Column order
// follows the first object's key order, then keys first seen later.
// ============================================================================

// envelopeKeys are checked in order for an array of records.
var envelopeKeys = []string{"data", "records", "rows", "items", "results"}

// JSONOptions tunes ParseJSON.
type JSONOptions struct {
	SnakeCaseHeaders bool
}

// ParseJSON reads JSON or NDJSON records into a RecordView.
func ParseJSON(ctx context.Context, r io.Reader, opts JSONOptions) (engine.RecordView, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewUnexpected("failed to read json", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.NewValidation("json input is empty")
	}

	values, err := decodeValues(data)
	if err != nil {
		return nil, err
	}

	raws, err := recordList(values)
	if err != nil {
		return nil, err
	}

	records := make([]engine.Record, 0, len(raws))
	var keys []string
	seen := make(map[string]bool)
	for i, raw := range raws {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, errors.NewUnexpected(fmt.Sprintf("record %d is not a json object", i+1), err)
		}
		for _, k := range objectKeys(raw) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		records = append(records, rec)
	}

	if opts.SnakeCaseHeaders {
		records, keys = renameKeys(records, keys)
	}

	slog.DebugContext(ctx, "parsed json records",
		"records", len(records),
		"fields", len(keys),
	)
	return engine.NewSliceView(records, keys...), nil
}

// decodeValues splits data into its top-level JSON values (more than one
// for NDJSON).
func decodeValues(data []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var values []json.RawMessage
	for {
		var v json.RawMessage
		err := dec.Decode(&v)
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return nil, errors.NewUnexpected(fmt.Sprintf("invalid json near value %d", len(values)+1), err)
		}
		values = append(values, v)
	}
}

// recordList resolves the accepted shapes to a list of raw objects.
func recordList(values []json.RawMessage) ([]json.RawMessage, error) {
	if len(values) > 1 {
		return values, nil
	}

	v := values[0]
	switch v[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(v, &list); err != nil {
			return nil, errors.NewUnexpected("invalid json array", err)
		}
		return list, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(v, &envelope); err != nil {
			return nil, errors.NewUnexpected("invalid json object", err)
		}
		for _, key := range envelopeKeys {
			if inner, ok := envelope[key]; ok && len(inner) > 0 && inner[0] == '[' {
				var list []json.RawMessage
				if err := json.Unmarshal(inner, &list); err != nil {
					return nil, errors.NewUnexpected(fmt.Sprintf("invalid %q array", key), err)
				}
				return list, nil
			}
		}
		return values, nil
	}
	return nil, errors.NewValidation("json input must be an object, an array of objects or ndjson")
}

func decodeRecord(raw json.RawMessage) (engine.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("got null")
	}
	return engine.Record(rec), nil
}

// objectKeys lists the top-level keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

func renameKeys(records []engine.Record, keys []string) ([]engine.Record, []string) {
	renamed := make(map[string]string, len(keys))
	outKeys := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		nk := ToSnakeCase(k)
		renamed[k] = nk
		if !seen[nk] {
			seen[nk] = true
			outKeys = append(outKeys, nk)
		}
	}

	for i, rec := range records {
		out := make(engine.Record, len(rec))
		for k, v := range rec {
			nk, ok := renamed[k]
			if !ok {
				nk = ToSnakeCase(k)
			}
			out[nk] = v
		}
		records[i] = out
	}
	return records, outKeys
}
