package engine

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// COLORS — Deterministic dataset colouring
// ============================================================================
// Precedence per dataset: explicit metric/dataset style > widget params >
// generated hsl((index*60) mod 360, 70%, 50%). Pie-family charts colour each
// slice by its point index instead of the dataset index.
// ============================================================================

// Colors holds one colour per dataset or one per point.
// A single colour marshals as a string, several as an array.
type Colors []string

// MarshalJSON implements json.Marshaler.
func (c Colors) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		return json.Marshal(c[0])
	}
	return json.Marshal([]string(c))
}

// GeneratedColor is the border colour for the i-th series or slice.
func GeneratedColor(i int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", hue(i))
}

// GeneratedBackground is GeneratedColor at 0.6 alpha.
func GeneratedBackground(i int) string {
	return fmt.Sprintf("hsla(%d, 70%%, 50%%, 0.6)", hue(i))
}

func hue(i int) int {
	h := (i * 60) % 360
	if h < 0 {
		h += 360
	}
	return h
}

// applyStyle fills the dataset's visual fields. index is the dataset's
// position; points is the number of data points (used by pie-family charts).
func applyStyle(ds *ChartDataset, explicit *Style, params WidgetParams, chartType ChartType, index, points int) {
	var s Style
	if explicit != nil {
		s = *explicit
	}

	bg := firstNonEmpty(s.BackgroundColor, params.BackgroundColor)
	border := firstNonEmpty(s.BorderColor, params.BorderColor)

	switch {
	case chartType.IsPieFamily():
		ds.BackgroundColor = make(Colors, points)
		ds.BorderColor = make(Colors, points)
		for j := 0; j < points; j++ {
			ds.BackgroundColor[j] = firstNonEmpty(bg, GeneratedBackground(j))
			ds.BorderColor[j] = firstNonEmpty(border, GeneratedColor(j))
		}
	default:
		ds.BackgroundColor = Colors{firstNonEmpty(bg, GeneratedBackground(index))}
		ds.BorderColor = Colors{firstNonEmpty(border, GeneratedColor(index))}
	}

	ds.BorderWidth = 1
	if params.BorderWidth != nil {
		ds.BorderWidth = *params.BorderWidth
	}
	if s.BorderWidth != nil {
		ds.BorderWidth = *s.BorderWidth
	}

	ds.Fill = s.Fill
	if ds.Fill == nil && (chartType == ChartArea || chartType == ChartLine) {
		fill := chartType == ChartArea
		ds.Fill = &fill
	}
	ds.Tension = s.Tension
	ds.PointRadius = s.PointRadius
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
