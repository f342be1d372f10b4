package engine

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ============================================================================
// COERCION — Explicit, total conversion rules shared by filters and metrics
// ============================================================================
// A value is numeric iff it is a Go number, a json.Number, or a non-empty
// string that parses as a finite float. nil, bools, NaN and ±Inf are never
// numeric. Nothing here panics.
// ============================================================================

// ToNumber converts v to a finite float64.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case time.Time, []any, map[string]any, Record:
		return 0, false
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToText stringifies v. nil becomes "", floats use the shortest form
// (3 not 3.000000), times use RFC3339.
func ToText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339)
	case json.Number:
		return t.String()
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		b, jerr := json.Marshal(v)
		if jerr != nil {
			return ""
		}
		return string(b)
	}
	return s
}

// IsNull reports whether v is absent or nil.
func IsNull(v any, present bool) bool {
	return !present || v == nil
}

// ToList converts slices of any element type to []any.
// A non-slice value becomes a one-element list; nil becomes empty.
func ToList(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// ToTime parses v as a timestamp in loc. Strings use cast's multi-format
// parser; numbers are epoch seconds, or epoch milliseconds above 1e11.
func ToTime(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch t := v.(type) {
	case nil, bool:
		return time.Time{}, false
	case time.Time:
		return t.In(loc), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if parsed, err := cast.ToTimeInDefaultLocationE(s, loc); err == nil {
			return parsed.In(loc), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(f, loc)
		}
		return time.Time{}, false
	}
	if f, ok := ToNumber(v); ok {
		return epochToTime(f, loc)
	}
	return time.Time{}, false
}

func epochToTime(f float64, loc *time.Location) (time.Time, bool) {
	if math.Abs(f) > 1e11 {
		return time.UnixMilli(int64(f)).In(loc), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).In(loc), true
}
