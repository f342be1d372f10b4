package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/dashlens/config"
	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
	"github.com/spektr-org/dashlens/logging"
	"github.com/spektr-org/dashlens/schema"
	"github.com/spektr-org/dashlens/source"
)

// ============================================================================
// DASHBOARD — Concurrent widget rendering
// ============================================================================
// Render loads every referenced source once, then runs each widget's
// pipeline in its own goroutine. Failures stay local: a source that cannot
// be loaded marks only the widgets reading it as invalid.
//
// Every log line carries render_id (and dashboard_id / widget_id where
// known) through logging.AppendCtx.
// ============================================================================

// Output is a rendered dashboard. Widgets follow the configured order.
type Output struct {
	ID       string           `json:"id,omitempty"`
	Title    string           `json:"title,omitempty"`
	RenderID string           `json:"renderId"`
	Sources  []SourceStatus   `json:"sources"`
	Widgets  []*engine.Result `json:"widgets"`
}

// SourceStatus reports how a source load went.
type SourceStatus struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

type loaded struct {
	view   engine.RecordView
	schema *schema.Schema
	err    error
}

// Render renders every widget of dash over data from loader.
// It returns an error only for a nil dashboard or loader.
func Render(ctx context.Context, dash *config.Dashboard, loader source.Loader, opts ...Option) (*Output, error) {
	if dash == nil {
		return nil, errors.NewValidation("dashboard is required")
	}
	if loader == nil {
		return nil, errors.NewValidation("source loader is required")
	}
	c := applyOptions(opts)

	out := &Output{
		ID:       dash.ID,
		Title:    dash.Title,
		RenderID: uuid.New().String(),
		Widgets:  make([]*engine.Result, len(dash.Widgets)),
	}
	ctx = logging.AppendCtx(ctx, slog.String("render_id", out.RenderID))
	if dash.ID != "" {
		ctx = logging.AppendCtx(ctx, slog.String("dashboard_id", dash.ID))
	}

	slog.InfoContext(ctx, "rendering dashboard",
		"widgets", len(dash.Widgets),
		"sources", len(dash.Sources),
	)

	sources := loadSources(ctx, dash, loader, c)
	for _, name := range referencedSources(dash) {
		status := SourceStatus{Name: name}
		if s := sources[name]; s.err != nil {
			status.Error = s.err.Error()
		} else {
			status.Records = s.view.Len()
		}
		out.Sources = append(out.Sources, status)
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, w := range dash.Widgets {
		if w.ID == "" {
			w.ID = uuid.New().String()
		}
		g.Go(func() error {
			wctx := logging.AppendCtx(ctx, slog.String("widget_id", w.ID))
			out.Widgets[i] = renderWidget(wctx, w, dash, sources, c)
			return nil
		})
	}
	_ = g.Wait()

	slog.DebugContext(ctx, "dashboard rendered", "widgets", len(out.Widgets))
	return out, nil
}

// loadSources loads each referenced source once, concurrently.
func loadSources(ctx context.Context, dash *config.Dashboard, loader source.Loader, c *options) map[string]*loaded {
	names := referencedSources(dash)
	results := make([]*loaded, len(names))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i] = loadSource(ctx, dash, name, loader, c)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*loaded, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func loadSource(ctx context.Context, dash *config.Dashboard, name string, loader source.Loader, c *options) *loaded {
	ctx = logging.AppendCtx(ctx, slog.String("source", name))

	cfg, ok := dash.Sources[name]
	if !ok {
		return &loaded{err: errors.NewNotFound(fmt.Sprintf("source %q is not declared", name))}
	}

	view, err := loader.Load(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load source", "error", err)
		return &loaded{err: err}
	}
	if view == nil {
		view = engine.NewSliceView(nil)
	}

	l := &loaded{view: view}
	if c.checkFields && view.Len() > 0 {
		discoverOpts := schema.DefaultDiscoverOptions()
		discoverOpts.Name = name
		discoverOpts.Source = string(cfg.EffectiveType())
		s, err := schema.Discover(view, discoverOpts)
		if err != nil {
			slog.WarnContext(ctx, "field discovery failed, skipping field checks", "error", err)
		} else {
			l.schema = s
		}
	}

	slog.DebugContext(ctx, "source loaded", "records", view.Len())
	return l
}

func renderWidget(ctx context.Context, w engine.WidgetConfig, dash *config.Dashboard, sources map[string]*loaded, c *options) *engine.Result {
	src, err := widgetSource(w, dash, sources)
	if err != nil {
		slog.WarnContext(ctx, "widget has no data", "error", err)
		return &engine.Result{
			WidgetID: w.ID,
			Type:     w.Type,
			Title:    w.Title,
			Errors:   []string{err.Error()},
		}
	}

	result := engine.Execute(ctx, w, src.view, c.engine...)
	if src.schema != nil && result.Valid {
		result.Warnings = append(result.Warnings, src.schema.CheckWidget(w)...)
	}
	return result
}

func widgetSource(w engine.WidgetConfig, dash *config.Dashboard, sources map[string]*loaded) (*loaded, error) {
	name := w.Source
	if name == "" {
		if len(dash.Sources) != 1 {
			return nil, errors.NewNotFound("widget does not name a source")
		}
		name = dash.SourceNames()[0]
	}
	src, ok := sources[name]
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("source %q is not declared", name))
	}
	if src.err != nil {
		return nil, src.err
	}
	return src, nil
}

// referencedSources lists, in first-use order, the sources the widgets read.
func referencedSources(dash *config.Dashboard) []string {
	var names []string
	seen := make(map[string]bool)
	for _, w := range dash.Widgets {
		name := w.Source
		if name == "" && len(dash.Sources) == 1 {
			name = dash.SourceNames()[0]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
