package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spektr-org/dashlens/config"
	"github.com/spektr-org/dashlens/dashboard"
	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/logging"
	"github.com/spektr-org/dashlens/schema"
	"github.com/spektr-org/dashlens/source"
)

// ============================================================================
// DASHLENS CLI — Render dashboard widgets from files or OpenSearch
// ============================================================================

const version = "0.3.0"

type flags struct {
	data          string
	delimiter     string
	snakeCase     bool
	opensearchURL string
	index         string
	queryFile     string
	maxHits       int
	widget        string
	dashboard     string
	discover      bool
	checkFields   bool
	timezone      string
	format        string
	out           string
}

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────
	var f flags
	flag.StringVar(&f.data, "data", "", "Path to a CSV, JSON or NDJSON data file")
	flag.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter (default ,)")
	flag.BoolVar(&f.snakeCase, "snake-case", false, "Convert column names to snake_case")
	flag.StringVar(&f.opensearchURL, "opensearch-url", os.Getenv("OPENSEARCH_URL"), "OpenSearch URL (env OPENSEARCH_URL)")
	flag.StringVar(&f.index, "index", os.Getenv("OPENSEARCH_INDEX"), "OpenSearch index (env OPENSEARCH_INDEX)")
	flag.StringVar(&f.queryFile, "query", "", "File holding the OpenSearch search body (default match_all)")
	flag.IntVar(&f.maxHits, "max-hits", 0, "Maximum OpenSearch hits to read (default 10000)")
	flag.StringVar(&f.widget, "widget", "", "Widget configuration file (YAML or JSON)")
	flag.StringVar(&f.dashboard, "dashboard", "", "Dashboard configuration file (YAML or JSON)")
	flag.BoolVar(&f.discover, "discover", false, "Print the detected field schema and exit")
	flag.BoolVar(&f.checkFields, "check-fields", false, "Warn about widget fields the data does not have")
	flag.StringVar(&f.timezone, "tz", "UTC", "Time zone for date_histogram buckets")
	flag.StringVar(&f.format, "format", "json", "Output format: json, pretty, csv")
	flag.StringVar(&f.out, "out", "", "Write output to file instead of stdout")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Dashlens — dashboard widgets from raw records

Usage:
  dashlens --data sales.csv --widget revenue.yaml --format pretty
  dashlens --data jira.csv --widget status.yaml --format csv --out status.csv
  dashlens --opensearch-url http://localhost:9200 --index issues --widget open.yaml
  dashlens --dashboard weekly.yaml --format pretty
  dashlens --data jira.csv --discover --format pretty

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  OPENSEARCH_URL      Default for --opensearch-url
  OPENSEARCH_INDEX    Default for --index
  LOG_LEVEL           debug, info or warn (default debug)
  LOG_ADD_SOURCE      "true" adds source locations to logs

Formats:
  json      Full JSON output (default)
  pretty    Pretty-printed JSON
  csv       Chart/table data as CSV (ready for Sheets/Excel)
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("dashlens %s\n", version)
		os.Exit(0)
	}

	logging.InitStructureLogConfig()

	if f.dashboard == "" && f.widget == "" && !f.discover {
		fmt.Fprintln(os.Stderr, "Error: one of --dashboard, --widget or --discover is required")
		flag.Usage()
		os.Exit(1)
	}
	switch f.format {
	case "json", "pretty", "csv":
	default:
		fatalf("Unknown format %q", f.format)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loc, err := time.LoadLocation(f.timezone)
	if err != nil {
		fatalf("Unknown time zone %q: %v", f.timezone, err)
	}

	// ── Output writer ─────────────────────────────────────────────────────
	var writer io.Writer = os.Stdout
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			fatalf("Failed to create output file: %v", err)
		}
		defer file.Close()
		writer = file
	}

	srcCfg, hasSource, err := sourceFromFlags(f)
	if err != nil {
		fatalf("%v", err)
	}

	// ── Dashboard mode ────────────────────────────────────────────────────
	if f.dashboard != "" {
		dash, err := config.LoadDashboard(f.dashboard)
		if err != nil {
			fatalf("Failed to load dashboard: %v", err)
		}
		if hasSource && len(dash.Sources) == 0 {
			dash.Sources = map[string]source.Config{srcCfg.Name: srcCfg}
		}

		out, err := dashboard.Render(ctx, dash, source.DefaultLoader{},
			dashboard.WithEngineOptions(engine.WithLocation(loc)),
			dashboard.WithFieldChecks(f.checkFields),
		)
		if err != nil {
			fatalf("Render failed: %v", err)
		}
		if f.format == "csv" {
			writeDashboardCSV(writer, out)
		} else {
			writeJSON(writer, out, f.format)
		}
		logWritten(f.out)
		return
	}

	if !hasSource {
		fmt.Fprintln(os.Stderr, "Error: --data or --opensearch-url with --index is required")
		flag.Usage()
		os.Exit(1)
	}

	// ── Read data ─────────────────────────────────────────────────────────
	view, err := source.DefaultLoader{}.Load(ctx, srcCfg)
	if err != nil {
		fatalf("Failed to load %s: %v", srcCfg.Name, err)
	}
	slog.InfoContext(ctx, "records loaded", "source", srcCfg.Name, "records", view.Len())

	// ── Discover mode ─────────────────────────────────────────────────────
	var sch *schema.Schema
	if f.discover || f.checkFields {
		opts := schema.DefaultDiscoverOptions()
		opts.Name = srcCfg.Name
		opts.Source = string(srcCfg.EffectiveType())
		sch, err = schema.Discover(view, opts)
		if err != nil {
			fatalf("Field discovery failed: %v", err)
		}
		slog.InfoContext(ctx, "fields discovered",
			"dimensions", len(sch.Dimensions()),
			"measures", len(sch.Measures()),
			"skipped", len(sch.Skipped),
		)
	}
	if f.discover {
		writeJSON(writer, sch, f.format)
		logWritten(f.out)
		return
	}

	// ── Widget mode ───────────────────────────────────────────────────────
	cfg, err := config.LoadWidget(f.widget)
	if err != nil {
		fatalf("Failed to load widget: %v", err)
	}
	ctx = logging.AppendCtx(ctx, slog.String("widget_id", cfg.ID))

	result := engine.Execute(ctx, cfg, view, engine.WithLocation(loc))
	if sch != nil && result.Valid {
		result.Warnings = append(result.Warnings, sch.CheckWidget(cfg)...)
	}
	for _, w := range result.Warnings {
		slog.WarnContext(ctx, "widget warning", "warning", w)
	}

	if f.format == "csv" {
		writeCSV(writer, result)
	} else {
		writeJSON(writer, result, f.format)
	}
	logWritten(f.out)

	if !result.Valid {
		os.Exit(2)
	}
}

// sourceFromFlags builds the command-line source, if one was given.
func sourceFromFlags(f flags) (source.Config, bool, error) {
	switch {
	case f.data != "":
		name := strings.TrimSuffix(filepath.Base(f.data), filepath.Ext(f.data))
		return source.Config{
			Name:             name,
			Path:             f.data,
			Delimiter:        f.delimiter,
			SnakeCaseHeaders: f.snakeCase,
		}, true, nil

	case f.index != "" && f.opensearchURL != "":
		cfg := source.Config{
			Name:    f.index,
			Type:    source.TypeOpenSearch,
			URL:     f.opensearchURL,
			Index:   f.index,
			MaxHits: f.maxHits,
		}
		if f.queryFile != "" {
			query, err := os.ReadFile(f.queryFile)
			if err != nil {
				return source.Config{}, false, fmt.Errorf("failed to read query file: %w", err)
			}
			cfg.Query = string(query)
		}
		return cfg, true, nil
	}
	return source.Config{}, false, nil
}

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v any, format string) {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}

	if err != nil {
		fatalf("Failed to marshal output: %v", err)
	}
	fmt.Fprintln(w, string(out))
}

// ============================================================================
// HELPERS
// ============================================================================

func logWritten(path string) {
	if path != "" {
		slog.Info("output written", "path", path)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
