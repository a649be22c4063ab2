package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/tnqbao/gau-ingest-pipeline/codec"
	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

// APIReader issues a GET against source_url and turns the JSON body into records
type APIReader struct {
	http *resty.Client
}

func NewAPIReader(client *resty.Client) *APIReader {
	return &APIReader{http: client}
}

func (r *APIReader) Read(ctx context.Context, cfg *entity.DataSourceConfig) (*dataset.Dataset, error) {
	res, err := r.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(queryValues(cfg.SourceParams)).
		SetHeader("Accept", "application/json").
		Get(cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", cfg.SourceURL, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("GET %s: unexpected status %d", cfg.SourceURL, res.StatusCode())
	}

	doc, err := codec.ParseOrdered(res.Body())
	if err != nil {
		return nil, fmt.Errorf("GET %s: response is not valid JSON: %w", cfg.SourceURL, err)
	}

	return codec.RecordsFromValues(unwrapPayload(doc))
}

// unwrapPayload finds the list of records inside an API response: the body
// itself when it is an array, else its "data" or "results" member, else the
// body as a single record.
func unwrapPayload(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case *codec.Object:
		for _, key := range []string{"data", "results"} {
			inner, ok := v.Get(key)
			if !ok {
				continue
			}
			if list, ok := inner.([]any); ok {
				return list
			}
			return []any{inner}
		}
		return []any{v}
	}
	return []any{doc}
}

// queryValues flattens source_params; list values repeat the key
func queryValues(params map[string]any) url.Values {
	values := make(url.Values, len(params))
	for key, raw := range params {
		if list, ok := raw.([]any); ok {
			for _, item := range list {
				values.Add(key, dataset.Format(dataset.Normalize(item)))
			}
			continue
		}
		values.Set(key, dataset.Format(dataset.Normalize(raw)))
	}
	return values
}
