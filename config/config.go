package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
	"github.com/spektr-org/dashlens/source"
)

// ============================================================================
// CONFIG — Widget and dashboard files
// ============================================================================
// Files are YAML; JSON is read by the same decoder. Unknown keys and unknown
// enum values are rejected here so the engine only sees closed values.
//
// Example dashboard:
//
//   title: Delivery
//   sources:
//     jira:
//       path: data/jira.csv
//       snakeCaseHeaders: true
//   widgets:
//     - title: Story points by status
//       type: bar
//       metrics: [{field: story_points, agg: sum}]
//       buckets: [{field: status, type: terms}]
// ============================================================================

// Dashboard is a set of widgets rendered over named sources.
type Dashboard struct {
	ID      string                   `json:"id,omitempty" yaml:"id,omitempty"`
	Title   string                   `json:"title,omitempty" yaml:"title,omitempty"`
	Sources map[string]source.Config `json:"sources,omitempty" yaml:"sources,omitempty"`
	Widgets []engine.WidgetConfig    `json:"widgets" yaml:"widgets"`
}

// SourceNames lists the dashboard's sources in sorted order.
func (d *Dashboard) SourceNames() []string {
	names := make([]string, 0, len(d.Sources))
	for name := range d.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadWidget reads a single widget file.
func LoadWidget(path string) (engine.WidgetConfig, error) {
	b, err := readFile(path)
	if err != nil {
		return engine.WidgetConfig{}, err
	}
	return ParseWidget(b)
}

// ParseWidget decodes, normalises and validates one widget.
func ParseWidget(b []byte) (engine.WidgetConfig, error) {
	var cfg engine.WidgetConfig
	if err := decode(b, &cfg); err != nil {
		return engine.WidgetConfig{}, err
	}
	normaliseWidget(&cfg)
	if problems := checkWidget(cfg); len(problems) > 0 {
		return engine.WidgetConfig{}, errors.NewValidation(strings.Join(problems, "; "))
	}
	return cfg, nil
}

// LoadDashboard reads a dashboard file. Relative source paths are resolved
// against the file's directory.
func LoadDashboard(path string) (*Dashboard, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	dash, err := ParseDashboard(b)
	if err != nil {
		return nil, err
	}
	for name, src := range dash.Sources {
		if src.Path != "" {
			src.Path = ResolvePath(path, src.Path)
			dash.Sources[name] = src
		}
	}
	return dash, nil
}

// ParseDashboard decodes, normalises and validates a dashboard.
func ParseDashboard(b []byte) (*Dashboard, error) {
	var dash Dashboard
	if err := decode(b, &dash); err != nil {
		return nil, err
	}

	// Normalize sources
	for name, src := range dash.Sources {
		if src.Name == "" {
			src.Name = name
		}
		src.Type = src.EffectiveType()
		dash.Sources[name] = src
	}

	var problems []string
	for _, name := range dash.SourceNames() {
		if err := dash.Sources[name].Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	seen := make(map[string]bool, len(dash.Widgets))
	for i := range dash.Widgets {
		w := &dash.Widgets[i]
		normaliseWidget(w)
		if w.Source == "" && len(dash.Sources) == 1 {
			w.Source = dash.SourceNames()[0]
		}

		name := widgetName(i, *w)
		for _, p := range checkWidget(*w) {
			problems = append(problems, name+": "+p)
		}
		if w.ID != "" {
			if seen[w.ID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate widget id", name))
			}
			seen[w.ID] = true
		}
	}

	if len(problems) > 0 {
		return nil, errors.NewValidation(strings.Join(problems, "; "))
	}
	return &dash, nil
}

// ResolvePath returns given relative to the config file's directory.
func ResolvePath(cfgPath, given string) string {
	if filepath.IsAbs(given) {
		return given
	}
	return filepath.Join(filepath.Dir(cfgPath), given)
}

// ============================================================================
// DECODING
// ============================================================================

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(fmt.Sprintf("config file %s not found", path), err)
		}
		return nil, errors.NewUnexpected(fmt.Sprintf("failed to read config %s", path), err)
	}
	return b, nil
}

func decode(b []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.NewValidation("config is empty")
		}
		return errors.NewValidation("failed to parse config", err)
	}
	return nil
}

// ============================================================================
// NORMALISATION + ENUM CHECKS
// ============================================================================

func normaliseWidget(cfg *engine.WidgetConfig) {
	if cfg.Type == "" {
		cfg.Type = engine.ChartBar
	}
	for i := range cfg.Metrics {
		if cfg.Metrics[i].Agg == "" && cfg.Metrics[i].Field == "" {
			cfg.Metrics[i].Agg = engine.AggCount
		}
	}
	for i := range cfg.Buckets {
		if cfg.Buckets[i].Type == "" {
			cfg.Buckets[i].Type = engine.BucketTerms
		}
	}
}

// checkWidget rejects values outside the closed enums. Structural problems
// (missing metrics, bad intervals) are left to engine.Validate.
func checkWidget(cfg engine.WidgetConfig) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !cfg.Type.Valid() {
		add("unknown widget type %q", cfg.Type)
	}
	for i, m := range cfg.Metrics {
		if m.Agg == "" {
			add("metric %d: agg is required", i+1)
		} else if !m.Agg.Valid() {
			add("metric %d: unknown aggregation %q", i+1, m.Agg)
		}
	}
	for i, b := range cfg.Buckets {
		if !b.Type.Valid() {
			add("bucket %d: unknown bucket type %q", i+1, b.Type)
		}
		if b.DateInterval != "" && !b.DateInterval.Valid() {
			add("bucket %d: unknown date interval %q", i+1, b.DateInterval)
		}
		if b.Order != "" && b.Order != engine.OrderAsc && b.Order != engine.OrderDesc {
			add("bucket %d: order must be asc or desc, got %q", i+1, b.Order)
		}
		switch b.SplitType {
		case "", engine.SplitSeries, engine.SplitRows, engine.SplitChart:
		default:
			add("bucket %d: unknown split type %q", i+1, b.SplitType)
		}
	}
	for i, f := range cfg.Filters {
		if !f.Operator.Valid() {
			add("filter %d: unknown operator %q", i+1, f.Operator)
		}
	}
	for i, d := range cfg.Datasets {
		if d.Agg != "" && !d.Agg.Valid() {
			add("dataset %d: unknown aggregation %q", i+1, d.Agg)
		}
		for j, f := range d.Filters {
			if !f.Operator.Valid() {
				add("dataset %d filter %d: unknown operator %q", i+1, j+1, f.Operator)
			}
		}
	}
	return problems
}

func widgetName(i int, w engine.WidgetConfig) string {
	switch {
	case w.ID != "":
		return fmt.Sprintf("widget %q", w.ID)
	case w.Title != "":
		return fmt.Sprintf("widget %d (%s)", i+1, w.Title)
	}
	return fmt.Sprintf("widget %d", i+1)
}
