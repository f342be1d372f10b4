package schema

import (
	"fmt"
	"strings"

	"github.com/spektr-org/dashlens/engine"
)

// CheckWidget returns data-aware warnings for cfg: fields the dataset does
// not have, numeric aggregations over non-numeric fields, and date buckets
// over fields that hold no dates. Nested (dotted) keys are not checked.
func (s *Schema) CheckWidget(cfg engine.WidgetConfig) []string {
	c := checker{schema: s, skipped: make(map[string]bool, len(s.Skipped))}
	for _, sk := range s.Skipped {
		c.skipped[sk.Key] = true
	}

	for i, m := range cfg.Metrics {
		name := fmt.Sprintf("metric %d", i+1)
		switch m.Agg {
		case engine.AggCount:
			if m.Field != "" {
				c.known(name, m.Field)
			}
		case engine.AggUnique:
			c.known(name, m.Field)
		default:
			c.numeric(name, m.Field)
		}
	}

	for i, b := range cfg.Buckets {
		name := fmt.Sprintf("bucket %d", i+1)
		f, ok := c.known(name, b.Field)
		if !ok {
			continue
		}
		switch b.Type {
		case engine.BucketHistogram, engine.BucketRange:
			if f.Type != TypeNumber {
				c.warnf("%s: %s bucket over %s field %q", name, b.Type, f.Type, b.Field)
			}
		case engine.BucketDateHistogram:
			if f.Type != TypeDate && f.Type != TypeNumber {
				c.warnf("%s: date_histogram over %s field %q, values that are not dates are dropped", name, f.Type, b.Field)
			}
		}
	}

	for i, f := range cfg.Filters {
		if f.Operator != engine.OpExpression {
			c.known(fmt.Sprintf("filter %d", i+1), f.Field)
		}
	}

	for i, d := range cfg.Datasets {
		name := fmt.Sprintf("dataset %d", i+1)
		for _, field := range []string{d.X, d.Y, d.R} {
			if field != "" {
				c.numeric(name, field)
			}
		}
		for _, field := range d.Fields {
			c.numeric(name, field)
		}
		for j, f := range d.Filters {
			if f.Operator != engine.OpExpression {
				c.known(fmt.Sprintf("%s filter %d", name, j+1), f.Field)
			}
		}
	}

	return c.warnings
}

type checker struct {
	schema   *Schema
	skipped  map[string]bool
	warnings []string
}

func (c *checker) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// known reports the field when the dataset has it, warning otherwise.
func (c *checker) known(name, key string) (Field, bool) {
	if f, ok := c.schema.Field(key); ok {
		return f, true
	}
	if key != "" && !c.skipped[key] && !strings.Contains(key, ".") {
		c.warnf("%s: field %q not found in dataset", name, key)
	}
	return Field{}, false
}

func (c *checker) numeric(name, key string) {
	f, ok := c.known(name, key)
	if ok && f.Type != TypeNumber {
		c.warnf("%s: field %q is %s, non-numeric values are skipped", name, key, f.Type)
	}
}
