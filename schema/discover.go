package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
)

// ============================================================================
// AUTO-DISCOVERY — Heuristic field classification
// ============================================================================
// Inspects a RecordView and generates a Schema. No configuration needed.
//
// Classification pipeline per field:
//   1. Sample values → detect type (number, date, boolean, string)
//   2. Type + cardinality → classify role (dimension, measure, skip)
//   3. Pattern matching → temporal string formats ("Jan-2026", "Q1 2026")
//   4. Parent/child detection between dimensions (country → city)
// ============================================================================

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize int      // Max rows to inspect (0 = all). Default: 1000
	Recover    []string // Force-include fields that were auto-skipped
	Name       string   // Dataset name override
	Source     string   // Recorded as DiscoveredFrom ("csv", "opensearch", ...)
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		SampleSize: 1000,
	}
}

// Discover generates a Schema by inspecting the records of view.
func Discover(view engine.RecordView, opts ...DiscoverOptions) (*Schema, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	if view == nil || view.Len() == 0 {
		return nil, errors.NewValidation("dataset has no records")
	}
	keys := view.Keys()
	if len(keys) == 0 {
		return nil, errors.NewValidation("dataset has no fields")
	}

	rows := view.Len()
	if opt.SampleSize > 0 && opt.SampleSize < rows {
		rows = opt.SampleSize
	}

	recoverSet := make(map[string]bool, len(opt.Recover))
	for _, k := range opt.Recover {
		recoverSet[strings.ToLower(k)] = true
	}

	s := &Schema{
		Name:           opt.Name,
		Records:        view.Len(),
		DiscoveredFrom: opt.Source,
		DiscoveredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if s.Name == "" {
		s.Name = "Auto-discovered Dataset"
	}

	columns := make([]*fieldAnalysis, 0, len(keys))
	for _, key := range keys {
		col := analyzeField(view, key, rows)
		switch {
		case col.role != RoleSkipped:
		case recoverSet[strings.ToLower(key)]:
			col.role = RoleDimension
		default:
			s.Skipped = append(s.Skipped, SkippedField{
				Key:         key,
				Reason:      col.skipReason,
				Recoverable: col.recoverable,
			})
			continue
		}
		columns = append(columns, col)
		s.Fields = append(s.Fields, col.toField())
	}

	detectHierarchies(s.Fields, columns)
	return s, nil
}

// ============================================================================
// FIELD ANALYSIS
// ============================================================================

type fieldAnalysis struct {
	key         string
	fieldType   FieldType
	role        Role
	skipReason  string
	recoverable bool

	// Stats
	values      []string // per sampled row, "" for null
	uniqueCount int
	totalCount  int
	nullCount   int
	sampleVals  []string
	hasDecimals bool

	isTemporal     bool
	temporalFormat string
}

// analyzeField inspects the first rows values of key and classifies it.
func analyzeField(view engine.RecordView, key string, rows int) *fieldAnalysis {
	col := &fieldAnalysis{
		key:        key,
		totalCount: rows,
		values:     make([]string, rows),
	}

	var kinds []FieldType
	uniqueSet := make(map[string]bool)
	nested := 0

	for i := 0; i < rows; i++ {
		raw, ok := view.Value(i, key)
		if engine.IsNull(raw, ok) {
			col.nullCount++
			continue
		}

		var kind FieldType
		switch v := raw.(type) {
		case map[string]any, engine.Record, []any:
			nested++
			continue
		case bool:
			kind = TypeBoolean
		case time.Time:
			kind = TypeDate
		case string:
			v = strings.TrimSpace(v)
			if isNullText(v) {
				col.nullCount++
				continue
			}
			kind = detectStringType(v)
		case json.Number:
			kind = TypeNumber
		default:
			if _, ok := engine.ToNumber(v); ok {
				kind = TypeNumber
			} else {
				kind = TypeString
			}
		}

		text := strings.TrimSpace(engine.ToText(raw))
		if kind == TypeNumber && strings.Contains(text, ".") {
			col.hasDecimals = true
		}
		col.values[i] = text
		uniqueSet[text] = true
		kinds = append(kinds, kind)
	}

	col.uniqueCount = len(uniqueSet)

	if nested > 0 && len(kinds) == 0 {
		col.role = RoleSkipped
		col.skipReason = "Nested object — reference its sub-fields with dotted keys"
		return col
	}
	if len(kinds) == 0 {
		col.role = RoleSkipped
		col.skipReason = "All values are empty/null"
		return col
	}

	col.sampleVals = collectSamples(uniqueSet, 10)
	col.fieldType = majorityType(kinds)

	switch col.fieldType {
	case TypeString:
		col.isTemporal, col.temporalFormat = detectTemporalPattern(col.sampleVals)
	case TypeDate:
		col.isTemporal = true
	}

	col.classifyRole()
	return col
}

// classifyRole determines dimension vs measure vs skip.
func (col *fieldAnalysis) classifyRole() {
	nonNull := col.totalCount - col.nullCount

	switch col.fieldType {
	case TypeNumber:
		if col.uniqueCount == nonNull && nonNull > 10 && !col.hasDecimals {
			// Every value unique integer → likely an ID
			col.role = RoleSkipped
			col.skipReason = "Unique per row — likely an ID field"
			col.recoverable = true
			return
		}
		if col.hasDecimals {
			col.role = RoleMeasure
			return
		}
		// Few distinct integers relative to rows → coded dimension (priority 1-5)
		uniqueRatio := float64(col.uniqueCount) / float64(nonNull)
		if col.uniqueCount < 20 && uniqueRatio < 0.3 {
			col.role = RoleDimension
			return
		}
		col.role = RoleMeasure

	case TypeDate, TypeBoolean:
		col.role = RoleDimension

	case TypeString:
		if col.uniqueCount == nonNull && nonNull > 10 {
			col.role = RoleSkipped
			col.skipReason = "Unique per row — likely an identifier"
			col.recoverable = true
			return
		}
		if col.uniqueCount > nonNull/2 && col.uniqueCount > 50 {
			col.role = RoleSkipped
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values) — not useful for grouping", col.uniqueCount)
			col.recoverable = true
			return
		}
		col.role = RoleDimension
	}
}

func (col *fieldAnalysis) toField() Field {
	f := Field{
		Key:            col.key,
		DisplayName:    engine.LabelForField(col.key),
		Type:           col.fieldType,
		Role:           col.role,
		SampleValues:   col.sampleVals,
		Unique:         col.uniqueCount,
		Nulls:          col.nullCount,
		IsTemporal:     col.isTemporal,
		TemporalFormat: col.temporalFormat,
	}
	if f.SampleValues == nil {
		f.SampleValues = []string{}
	}
	switch {
	case col.uniqueCount <= 10:
		f.Cardinality = "low"
	case col.uniqueCount <= 100:
		f.Cardinality = "medium"
	default:
		f.Cardinality = "high"
	}
	return f
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// majorityType returns the type at least 80% of values agree on, checked
// boolean → date → number; anything else is a string.
func majorityType(kinds []FieldType) FieldType {
	counts := make(map[FieldType]int, 4)
	for _, k := range kinds {
		counts[k]++
	}
	threshold := int(float64(len(kinds)) * 0.8)
	if threshold == 0 {
		threshold = 1
	}
	for _, t := range []FieldType{TypeBoolean, TypeDate, TypeNumber} {
		if counts[t] >= threshold {
			return t
		}
	}
	return TypeString
}

// detectStringType classifies s the way the engine will read it: a value
// typed number or date here is one engine.ToNumber or engine.ToTime accepts.
// Numbers are checked first since ToTime also reads numeric strings as epochs.
func detectStringType(s string) FieldType {
	if isBool(s) {
		return TypeBoolean
	}
	if _, ok := engine.ToNumber(s); ok {
		return TypeNumber
	}
	if _, ok := engine.ToTime(s, nil); ok {
		return TypeDate
	}
	return TypeString
}

func isNullText(s string) bool {
	switch s {
	case "", "null", "NULL", "N/A", "n/a":
		return true
	}
	return false
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

var temporalPatterns = []struct {
	re     *regexp.Regexp
	format string
}{
	{regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`), "MMM-yyyy"}, // Jan-2026
	{regexp.MustCompile(`^\d{4}-\d{2}$`), "yyyy-MM"},          // 2026-01
	{regexp.MustCompile(`^Q[1-4]-\d{4}$`), "QN-yyyy"},         // Q1-2026
	{regexp.MustCompile(`^Q[1-4]\s+\d{4}$`), "QN yyyy"},       // Q1 2026
	{regexp.MustCompile(`^[A-Z][a-z]+ \d{4}$`), "MMMM yyyy"},  // January 2026
}

// detectTemporalPattern checks if values match known month/quarter patterns.
func detectTemporalPattern(samples []string) (bool, string) {
	if len(samples) == 0 {
		return false, ""
	}
	for _, pattern := range temporalPatterns {
		matches := 0
		for _, s := range samples {
			if pattern.re.MatchString(s) {
				matches++
			}
		}
		if float64(matches)/float64(len(samples)) >= 0.8 {
			return true, pattern.format
		}
	}
	return false, ""
}

// ============================================================================
// HIERARCHY DETECTION
// ============================================================================

// detectHierarchies finds parent/child relationships between dimensions.
// If every value of B maps to exactly one value of A and A has fewer unique
// values, A is a parent of B. Among several parents the closest (highest
// cardinality) wins.
func detectHierarchies(fields []Field, columns []*fieldAnalysis) {
	dims := make(map[string]*fieldAnalysis)
	for _, col := range columns {
		if col.role == RoleDimension {
			dims[col.key] = col
		}
	}

	for i := range fields {
		child, ok := dims[fields[i].Key]
		if !ok {
			continue
		}

		bestParent := ""
		bestUniques := 0
		for _, parent := range columns {
			if parent == child || dims[parent.key] == nil || parent.uniqueCount >= child.uniqueCount {
				continue
			}
			if mapsToOne(child.values, parent.values) && parent.uniqueCount > bestUniques {
				bestParent = parent.key
				bestUniques = parent.uniqueCount
			}
		}
		fields[i].Parent = bestParent
	}
}

// mapsToOne reports whether every child value co-occurs with exactly one
// parent value, across at least two child values.
func mapsToOne(child, parent []string) bool {
	childToParent := make(map[string]string)
	for i := range child {
		c, p := child[i], parent[i]
		if c == "" || p == "" {
			continue
		}
		if existing, ok := childToParent[c]; ok {
			if existing != p {
				return false
			}
			continue
		}
		childToParent[c] = p
	}
	return len(childToParent) > 1
}

// collectSamples picks up to maxSamples values in sorted order.
func collectSamples(uniqueSet map[string]bool, maxSamples int) []string {
	samples := make([]string, 0, len(uniqueSet))
	for v := range uniqueSet {
		samples = append(samples, v)
	}
	sort.Strings(samples)
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}
