package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
)

type ctxKey string

const (
	slogFields      ctxKey = "slog_fields"
	logLevelDefault        = slog.LevelDebug

	debug = "debug"
	warn  = "warn"
	info  = "info"
)

type contextHandler struct {
	slog.Handler
}

// Handle adds contextual attributes to the Record before calling the underlying handler
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		for _, v := range attrs {
			r.AddAttrs(v)
		}
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the context-aware wrapper on derived handlers.
func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the context-aware wrapper on derived handlers.
func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// AppendCtx adds an slog attribute to the provided context so that it will be
// included in any Record created with such context
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	if v, ok := parent.Value(slogFields).([]slog.Attr); ok {
		// copy so sibling contexts never share a backing array
		attrs := make([]slog.Attr, 0, len(v)+1)
		attrs = append(attrs, v...)
		attrs = append(attrs, attr)
		return context.WithValue(parent, slogFields, attrs)
	}

	return context.WithValue(parent, slogFields, []slog.Attr{attr})
}

// NewLogger builds a JSON logger writing to w that includes context
// attributes added with AppendCtx.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(contextHandler{slog.NewJSONHandler(w, opts)})
}

// InitStructureLogConfig sets the structured log behavior.
// Logs go to stderr so CLI output on stdout stays machine-readable.
func InitStructureLogConfig() {

	logOptions := &slog.HandlerOptions{}

	configurations := map[string]func(){
		"options-logLevel": func() {
			logOptions.Level = levelFromEnv(os.Getenv("LOG_LEVEL"))
		},
		"options-addSource": func() {
			addSource := os.Getenv("LOG_ADD_SOURCE")
			logOptions.AddSource = addSource == "true"
		},
	}

	for _, f := range configurations {
		f()
	}
	log.SetFlags(log.Llongfile)
	slog.SetDefault(NewLogger(os.Stderr, logOptions))
	slog.Debug("log config",
		"logLevel", logOptions.Level,
		"addSource", logOptions.AddSource,
	)
}

func levelFromEnv(value string) slog.Level {
	switch value {
	case debug:
		return slog.LevelDebug
	case warn:
		return slog.LevelWarn
	case info:
		return slog.LevelInfo
	default:
		return logLevelDefault
	}
}
