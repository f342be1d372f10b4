package dashboard

import "github.com/spektr-org/dashlens/engine"

const defaultConcurrency = 8

// Option configures Render.
type Option func(*options)

type options struct {
	engine      []engine.Option
	checkFields bool
	concurrency int
}

// WithEngineOptions passes opts to every widget's engine.Execute.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engine = append(o.engine, opts...) }
}

// WithFieldChecks adds data-aware warnings (unknown fields, numeric
// aggregations over text) from the discovered schema of each source.
func WithFieldChecks(enabled bool) Option {
	return func(o *options) { o.checkFields = enabled }
}

// WithConcurrency bounds the goroutines used to load sources and render
// widgets. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
