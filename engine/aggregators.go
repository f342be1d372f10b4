package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ============================================================================
// AGGREGATORS — Bucketing, Aggregation, and Sorting via RecordView
// ============================================================================
// Pipeline per bucket level: group → aggregate → sort → prune → limit → recurse.
// Grouping produces SubViews (index lists into the parent view), so nested
// levels re-group the member rows of their parent without copying them.
// ============================================================================

// ErrInvalidBucket is wrapped by every configuration error Aggregate returns.
var ErrInvalidBucket = errors.New("invalid bucket configuration")

// Aggregate groups the view by specs (outer → inner) and computes every
// metric per bucket.
//
// Returns nil, nil when there is nothing to bucket (no specs or no records);
// callers fall back to the raw presentation. An error means the bucket
// configuration itself is unusable.
func Aggregate(view RecordView, specs []BucketSpec, metrics []Metric, opts ...Option) ([]ProcessedBucket, error) {
	if len(specs) == 0 || view == nil || view.Len() == 0 {
		return nil, nil
	}
	cfg := applyOptions(opts)
	return aggregateLevel(view, specs, metrics, cfg)
}

// group is a bucket under construction plus what ordering needs.
type group struct {
	bucket  ProcessedBucket
	indices []int
	sortKey float64
}

func aggregateLevel(view RecordView, specs []BucketSpec, metrics []Metric, cfg *config) ([]ProcessedBucket, error) {
	spec := specs[0]

	// 1. Group
	groups, err := groupView(view, spec, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Aggregate
	for i := range groups {
		g := &groups[i]
		g.bucket.View = newSubView(view, g.indices)
		g.bucket.Count = len(g.indices)
		g.bucket.Values = computeValues(g.bucket.View, metrics)
	}

	// 3. Sort
	sortGroups(groups, spec)

	// 4. Prune sparse buckets, then 5. limit
	if spec.MinDocCount > 0 {
		kept := groups[:0]
		for _, g := range groups {
			if g.bucket.Count >= spec.MinDocCount {
				kept = append(kept, g)
			}
		}
		groups = kept
	}
	if spec.Size > 0 && (spec.Type == BucketTerms || spec.Type.IsSplit()) && len(groups) > spec.Size {
		groups = groups[:spec.Size]
	}

	// 6. Recurse into member sets
	buckets := make([]ProcessedBucket, 0, len(groups))
	for _, g := range groups {
		b := g.bucket
		if len(specs) > 1 {
			children, err := aggregateLevel(b.View, specs[1:], metrics, cfg)
			if err != nil {
				return nil, err
			}
			if len(children) > 0 {
				b.Children = children
			}
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

// ============================================================================
// GROUPING
// ============================================================================

func groupView(view RecordView, spec BucketSpec, cfg *config) ([]group, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("%w: %s bucket has no field", ErrInvalidBucket, spec.Type)
	}

	switch spec.Type {
	case BucketTerms, BucketSplitSeries, BucketSplitRows, BucketSplitChart:
		return groupTerms(view, spec), nil
	case BucketHistogram:
		if spec.Interval <= 0 || math.IsNaN(spec.Interval) || math.IsInf(spec.Interval, 0) {
			return nil, fmt.Errorf("%w: histogram on %q needs a positive interval", ErrInvalidBucket, spec.Field)
		}
		return groupHistogram(view, spec), nil
	case BucketDateHistogram:
		if !spec.DateInterval.Valid() {
			return nil, fmt.Errorf("%w: date_histogram on %q has unknown interval %q", ErrInvalidBucket, spec.Field, spec.DateInterval)
		}
		return groupDateHistogram(view, spec, cfg.Location), nil
	case BucketRange:
		if len(spec.Ranges) == 0 {
			return nil, fmt.Errorf("%w: range on %q has no ranges", ErrInvalidBucket, spec.Field)
		}
		return groupRanges(view, spec), nil
	}
	return nil, fmt.Errorf("%w: unknown bucket type %q", ErrInvalidBucket, spec.Type)
}

// groupTerms groups by the stringified field value in first-seen order.
// Missing and null values belong to no bucket.
func groupTerms(view RecordView, spec BucketSpec) []group {
	index := make(map[string]int)
	var groups []group

	for i := 0; i < view.Len(); i++ {
		raw, ok := view.Value(i, spec.Field)
		if IsNull(raw, ok) {
			continue
		}
		key := ToText(raw)
		pos, exists := index[key]
		if !exists {
			pos = len(groups)
			index[key] = pos
			label := key
			if custom, ok := spec.Labels[key]; ok {
				label = custom
			}
			sortKey, _ := ToNumber(raw)
			groups = append(groups, group{
				bucket:  ProcessedBucket{Key: key, Label: label},
				sortKey: sortKey,
			})
		}
		groups[pos].indices = append(groups[pos].indices, i)
	}
	return groups
}

// groupHistogram assigns each numeric value to floor(v/interval)*interval.
// Window starts are computed in decimal so fractional intervals give keys
// like "0.3" rather than "0.30000000000000004". Only populated intervals
// are emitted.
func groupHistogram(view RecordView, spec BucketSpec) []group {
	interval := decimal.NewFromFloat(spec.Interval)
	index := make(map[string]int)
	var groups []group

	for i := 0; i < view.Len(); i++ {
		raw, _ := view.Value(i, spec.Field)
		v, ok := ToNumber(raw)
		if !ok {
			continue
		}
		start := decimal.NewFromFloat(v).Div(interval).Floor().Mul(interval)
		key := start.String()
		pos, exists := index[key]
		if !exists {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, group{
				bucket:  ProcessedBucket{Key: key, Label: key},
				sortKey: start.InexactFloat64(),
			})
		}
		groups[pos].indices = append(groups[pos].indices, i)
	}
	return groups
}

// groupDateHistogram assigns each parsable timestamp to its window start.
// Unparsable dates belong to no bucket.
func groupDateHistogram(view RecordView, spec BucketSpec, loc *time.Location) []group {
	index := make(map[int64]int)
	var groups []group

	for i := 0; i < view.Len(); i++ {
		raw, _ := view.Value(i, spec.Field)
		t, ok := ToTime(raw, loc)
		if !ok {
			continue
		}
		start, _ := WindowStart(t, spec.DateInterval)
		unix := start.Unix()
		pos, exists := index[unix]
		if !exists {
			pos = len(groups)
			index[unix] = pos
			groups = append(groups, group{
				bucket: ProcessedBucket{
					Key:   start.Format(time.RFC3339),
					Label: FormatWindow(start, spec.DateInterval),
				},
				sortKey: float64(unix),
			})
		}
		groups[pos].indices = append(groups[pos].indices, i)
	}
	return groups
}

// groupRanges puts each record into the first range [from, to) containing
// it. Empty ranges are not emitted; output follows declaration order.
func groupRanges(view RecordView, spec BucketSpec) []group {
	members := make([][]int, len(spec.Ranges))

	for i := 0; i < view.Len(); i++ {
		raw, _ := view.Value(i, spec.Field)
		v, ok := ToNumber(raw)
		if !ok {
			continue
		}
		for r, rng := range spec.Ranges {
			if rng.From != nil && v < *rng.From {
				continue
			}
			if rng.To != nil && v >= *rng.To {
				continue
			}
			members[r] = append(members[r], i)
			break
		}
	}

	var groups []group
	for r, rng := range spec.Ranges {
		if len(members[r]) == 0 {
			continue
		}
		key := RangeKey(rng)
		label := rng.Label
		if label == "" {
			label = key
		}
		groups = append(groups, group{
			bucket:  ProcessedBucket{Key: key, Label: label},
			indices: members[r],
			sortKey: float64(r),
		})
	}
	return groups
}

// RangeKey renders a range as "from-to", with "*" for an open bound.
func RangeKey(r RangeSpec) string {
	from, to := "*", "*"
	if r.From != nil {
		from = FormatNumber(*r.From)
	}
	if r.To != nil {
		to = FormatNumber(*r.To)
	}
	return from + "-" + to
}

// ============================================================================
// SORTING
// ============================================================================

// sortGroups orders one bucket level. Sorting is stable over first-seen
// order, so ties keep the order records were encountered in.
//
//   terms/split  → count desc by default
//   histogram    → key asc by default
//   range        → declaration order by default
//
// OrderBy ("_count", "_key" or a metric key) and Order override the defaults.
func sortGroups(groups []group, spec BucketSpec) {
	orderBy := spec.OrderBy
	if orderBy == "" {
		switch {
		case spec.Type.IsOrdinal():
			orderBy = OrderByKey
		case spec.Type == BucketRange:
			if spec.Order == OrderDesc {
				reverseGroups(groups)
			}
			return
		default:
			orderBy = OrderByCount
		}
	}

	desc := orderBy != OrderByKey
	switch spec.Order {
	case OrderAsc:
		desc = false
	case OrderDesc:
		desc = true
	}

	var less func(a, b *group) bool
	switch orderBy {
	case OrderByCount:
		less = func(a, b *group) bool { return a.bucket.Count < b.bucket.Count }
	case OrderByKey:
		if spec.Type == BucketTerms || spec.Type.IsSplit() {
			less = func(a, b *group) bool { return compareKeys(a.bucket.Key, b.bucket.Key) < 0 }
		} else {
			less = func(a, b *group) bool { return a.sortKey < b.sortKey }
		}
	default:
		less = func(a, b *group) bool { return a.bucket.Values[orderBy] < b.bucket.Values[orderBy] }
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if desc {
			return less(&groups[j], &groups[i])
		}
		return less(&groups[i], &groups[j])
	})
}

func reverseGroups(groups []group) {
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
}

// compareKeys orders numerically when both keys are numbers, otherwise
// case-insensitively.
func compareKeys(a, b string) int {
	fa, okA := ToNumber(a)
	fb, okB := ToNumber(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatNumber renders f in its shortest exact form ("10", "2.5").
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// FormatDecimal formats v with comma separators and a fixed number of decimals.
func FormatDecimal(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	negative := v < 0
	if negative {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	n, err := strconv.Atoi(intPart)
	if err == nil {
		intPart = FormatInt(n)
	}
	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if negative && strings.Trim(out, "0.,") != "" {
		out = "-" + out
	}
	return out
}

// LabelForField turns a field key into a title ("order_total" → "Order Total").
func LabelForField(field string) string {
	if field == "" {
		return ""
	}
	parts := strings.FieldsFunc(field, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

// LabelForAggregation returns a human-readable label for an aggregation type.
func LabelForAggregation(agg AggType) string {
	switch agg {
	case AggSum:
		return "Sum"
	case AggCount:
		return "Count"
	case AggAvg:
		return "Average"
	case AggMax:
		return "Maximum"
	case AggMin:
		return "Minimum"
	case AggUnique:
		return "Unique"
	default:
		return "Value"
	}
}
