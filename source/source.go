package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
)

// ============================================================================
// SOURCES — Turn files and search indices into engine.RecordView
// ============================================================================
// The engine never fetches data. A source is declared once (in a dashboard
// file or on the command line) and loaded into a RecordView that every
// widget reading it shares.
// ============================================================================

// Type names a source kind.
type Type string

const (
	TypeCSV        Type = "csv"
	TypeJSON       Type = "json"
	TypeNDJSON     Type = "ndjson"
	TypeOpenSearch Type = "opensearch"
)

// Valid reports whether t is a known source type.
func (t Type) Valid() bool {
	switch t {
	case TypeCSV, TypeJSON, TypeNDJSON, TypeOpenSearch:
		return true
	}
	return false
}

// Config declares one data source.
type Config struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type,omitempty" yaml:"type,omitempty"` // inferred from Path when empty

	// File sources
	Path             string `json:"path,omitempty" yaml:"path,omitempty"`
	Delimiter        string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"` // csv only, default ","
	SnakeCaseHeaders bool   `json:"snakeCaseHeaders,omitempty" yaml:"snakeCaseHeaders,omitempty"`
	RawStrings       bool   `json:"rawStrings,omitempty" yaml:"rawStrings,omitempty"` // csv only, skip numeric parsing

	// OpenSearch
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Index    string `json:"index,omitempty" yaml:"index,omitempty"`
	Query    string `json:"query,omitempty" yaml:"query,omitempty"` // search body JSON, default match_all
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	MaxHits  int    `json:"maxHits,omitempty" yaml:"maxHits,omitempty"`   // default 10000
	PageSize int    `json:"pageSize,omitempty" yaml:"pageSize,omitempty"` // hits per request, default 1000
}

// EffectiveType returns Type, or the type implied by Path's extension.
func (c Config) EffectiveType() Type {
	if c.Type != "" {
		return c.Type
	}
	if c.URL != "" || c.Index != "" {
		return TypeOpenSearch
	}
	return TypeFromPath(c.Path)
}

// TypeFromPath infers a file source type from its extension.
// Unknown extensions are treated as CSV.
func TypeFromPath(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return TypeJSON
	case ".ndjson", ".jsonl":
		return TypeNDJSON
	}
	return TypeCSV
}

// Validate checks that the config names everything its type needs.
func (c Config) Validate() error {
	t := c.EffectiveType()
	if !t.Valid() {
		return errors.NewValidation(fmt.Sprintf("source %q: unknown type %q", c.Name, c.Type))
	}
	if t == TypeOpenSearch {
		if c.URL == "" || c.Index == "" {
			return errors.NewValidation(fmt.Sprintf("source %q: opensearch needs url and index", c.Name))
		}
		return nil
	}
	if c.Path == "" {
		return errors.NewValidation(fmt.Sprintf("source %q: path is required", c.Name))
	}
	if c.Delimiter != "" && len([]rune(c.Delimiter)) != 1 {
		return errors.NewValidation(fmt.Sprintf("source %q: delimiter must be a single character", c.Name))
	}
	return nil
}

// Loader loads a declared source. Dashboards take a Loader so tests can
// substitute in-memory data.
type Loader interface {
	Load(ctx context.Context, cfg Config) (engine.RecordView, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, cfg Config) (engine.RecordView, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, cfg Config) (engine.RecordView, error) {
	return f(ctx, cfg)
}

// DefaultLoader reads files from disk and queries OpenSearch over HTTP.
type DefaultLoader struct {
	// NewSearchClient builds the OpenSearch client; nil uses NewSearchClient.
	NewSearchClient func(cfg Config) (SearchClient, error)
}

// Load implements Loader.
func (l DefaultLoader) Load(ctx context.Context, cfg Config) (engine.RecordView, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "loading source",
		"source", cfg.Name,
		"type", cfg.EffectiveType(),
	)

	if cfg.EffectiveType() == TypeOpenSearch {
		newClient := l.NewSearchClient
		if newClient == nil {
			newClient = NewSearchClient
		}
		client, err := newClient(cfg)
		if err != nil {
			return nil, err
		}
		return LoadOpenSearch(ctx, client, cfg)
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(fmt.Sprintf("source %q: file %s not found", cfg.Name, cfg.Path), err)
		}
		return nil, errors.NewUnexpected(fmt.Sprintf("source %q: failed to open %s", cfg.Name, cfg.Path), err)
	}
	defer f.Close()

	switch cfg.EffectiveType() {
	case TypeJSON, TypeNDJSON:
		return ParseJSON(ctx, f, JSONOptions{SnakeCaseHeaders: cfg.SnakeCaseHeaders})
	default:
		opts := CSVOptions{SnakeCaseHeaders: cfg.SnakeCaseHeaders, RawStrings: cfg.RawStrings}
		if cfg.Delimiter != "" {
			opts.Comma = []rune(cfg.Delimiter)[0]
		}
		return ParseCSV(ctx, f, opts)
	}
}

// ToSnakeCase converts "Column Name" or "columnName" → "column_name".
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' && i > 0 {
			prev := runes[i-1]
			if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') {
				b.WriteRune('_')
			}
		}
		b.WriteRune(r)
	}

	out := strings.ToLower(b.String())
	out = strings.NewReplacer(" ", "_", "-", "_").Replace(out)
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
