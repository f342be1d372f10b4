package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/spektr-org/dashlens/engine"
	"github.com/spektr-org/dashlens/errors"
)

// ============================================================================
// OPENSEARCH — Search hits as engine.Records
// ============================================================================
// The search body is sent as-is, with size, sort and search_after managed by
// the loader: hits are paged in _doc order (or the body's own sort) until
// MaxHits records are read or the index runs out. Each hit's _source becomes
// one record; "_id" is added when the source has no such field.
// ============================================================================

const (
	defaultMaxHits  = 10000
	defaultPageSize = 1000
	matchAllQuery   = `{"query":{"match_all":{}}}`
)

// SearchClient runs one search request. Implemented over opensearchapi by
// NewSearchClient and by mocks in tests.
type SearchClient interface {
	Search(ctx context.Context, index string, query []byte) (*SearchResponse, error)
}

// SearchResponse is the part of a search response the loader reads.
type SearchResponse struct {
	Hits Hits `json:"hits"`
}

// Hits holds the returned documents.
type Hits struct {
	Total Total `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Total is the number of matching documents.
type Total struct {
	Value int `json:"value"`
}

// Hit is a single search result.
type Hit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
	Sort   []any           `json:"sort,omitempty"`
}

// LoadOpenSearch pages through the hits of cfg.Query on cfg.Index.
func LoadOpenSearch(ctx context.Context, client SearchClient, cfg Config) (engine.RecordView, error) {
	body, err := searchBody(cfg.Query)
	if err != nil {
		return nil, err
	}

	maxHits := cfg.MaxHits
	if maxHits <= 0 {
		maxHits = defaultMaxHits
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxHits)

	var (
		records []engine.Record
		keys    []string
		seen    = make(map[string]bool)
	)
	for len(records) < maxHits {
		body["size"] = min(pageSize, maxHits-len(records))
		query, err := json.Marshal(body)
		if err != nil {
			return nil, errors.NewUnexpected("failed to encode search body", err)
		}

		response, err := client.Search(ctx, cfg.Index, query)
		if err != nil {
			return nil, errors.NewServiceUnavailable(fmt.Sprintf("source %q: opensearch search failed", cfg.Name), err)
		}

		for _, hit := range response.Hits.Hits {
			rec, err := decodeRecord(hit.Source)
			if err != nil {
				// Log error but continue processing other hits
				slog.ErrorContext(ctx, "failed to convert hit", "hit_id", hit.ID, "error", err)
				continue
			}
			if _, ok := rec["_id"]; !ok && hit.ID != "" {
				rec["_id"] = hit.ID
			}
			for _, k := range objectKeys(hit.Source) {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
			records = append(records, rec)
		}

		hits := response.Hits.Hits
		if len(hits) < body["size"].(int) || len(hits[len(hits)-1].Sort) == 0 {
			break
		}
		body["search_after"] = hits[len(hits)-1].Sort
	}

	if len(records) > 0 && !seen["_id"] {
		keys = append(keys, "_id")
	}

	slog.DebugContext(ctx, "opensearch source loaded",
		"source", cfg.Name,
		"index", cfg.Index,
		"records", len(records),
	)
	return engine.NewSliceView(records, keys...), nil
}

// searchBody parses the configured query, adding a _doc sort so hits can be
// paged with search_after.
func searchBody(query string) (map[string]any, error) {
	if query == "" {
		query = matchAllQuery
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(query), &body); err != nil {
		return nil, errors.NewValidation("opensearch query must be a json object", err)
	}
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["sort"]; !ok {
		body["sort"] = []any{"_doc"}
	}
	delete(body, "from")
	return body, nil
}

// ============================================================================
// HTTP CLIENT
// ============================================================================

type httpClient struct {
	client *opensearchapi.Client
}

func (c *httpClient) Search(ctx context.Context, index string, query []byte) (*SearchResponse, error) {

	slog.DebugContext(ctx, "executing opensearch search",
		"index", index,
		"query", string(query),
	)

	searchRequest := opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    bytes.NewReader(query),
	}

	searchResponse, errSearchResponse := c.client.Search(ctx, &searchRequest)
	if errSearchResponse != nil {
		return nil, fmt.Errorf("failed to execute search: %w", errSearchResponse)
	}

	// Check for errors in the response
	if searchResponse.Errors {
		return nil, fmt.Errorf("opensearch search returned errors")
	}

	result := &SearchResponse{
		Hits: Hits{
			Total: Total{
				Value: searchResponse.Hits.Total.Value,
			},
			Hits: make([]Hit, len(searchResponse.Hits.Hits)),
		},
	}
	for i, hit := range searchResponse.Hits.Hits {
		result.Hits.Hits[i] = Hit{
			ID:     hit.ID,
			Source: hit.Source,
			Sort:   hit.Sort,
		}
	}
	return result, nil
}

// NewSearchClient returns a SearchClient for cfg.URL.
func NewSearchClient(cfg Config) (SearchClient, error) {
	if cfg.URL == "" {
		return nil, errors.NewValidation("opensearch URL is required")
	}

	opensearchClient, errOpensearchClient := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: []string{cfg.URL},
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   10,
				ResponseHeaderTimeout: 10 * time.Second,
				DialContext:           (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
			},
		},
	})
	if errOpensearchClient != nil {
		return nil, errors.NewUnexpected("failed to create OpenSearch client", errOpensearchClient)
	}
	return &httpClient{client: opensearchClient}, nil
}
