package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/tnqbao/gau-ingest-pipeline/codec"
	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

// FileReader downloads source_url, or reads it from disk when it is not an
// http(s) URL, and decodes it as file_format
type FileReader struct {
	http *resty.Client
}

func NewFileReader(client *resty.Client) *FileReader {
	return &FileReader{http: client}
}

func (r *FileReader) Read(ctx context.Context, cfg *entity.DataSourceConfig) (*dataset.Dataset, error) {
	if !cfg.FileFormat.Valid() {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnsupportedFormat, cfg.FileFormat)
	}

	data, err := r.load(ctx, cfg.SourceURL)
	if err != nil {
		return nil, err
	}

	ds, err := codec.Decode(cfg.FileFormat, data)
	if err != nil {
		return nil, err
	}
	return ds.WithForm(dataset.FormTable), nil
}

func (r *FileReader) load(ctx context.Context, location string) ([]byte, error) {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		res, err := r.http.R().SetContext(ctx).Get(location)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", location, err)
		}
		if res.IsError() {
			return nil, fmt.Errorf("download %s: unexpected status %d", location, res.StatusCode())
		}
		return res.Body(), nil
	}

	data, err := os.ReadFile(strings.TrimPrefix(location, "file://"))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}
