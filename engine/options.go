package engine

import (
	"log/slog"
	"time"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Execute() and Aggregate()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Location      *time.Location // date_histogram windows and date parsing
	Logger        *slog.Logger
	DefaultRadius float64 // bubble radius when a point has no r value
}

// WithLocation sets the time zone date windows are computed in.
// Nil is ignored.
func WithLocation(loc *time.Location) Option {
	return func(c *config) {
		if loc != nil {
			c.Location = loc
		}
	}
}

// WithLogger routes engine logs to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithDefaultRadius sets the bubble radius used when a point has none.
// Widget params take precedence.
func WithDefaultRadius(r float64) Option {
	return func(c *config) {
		if r > 0 {
			c.DefaultRadius = r
		}
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		Location:      time.UTC,
		DefaultRadius: 5,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
