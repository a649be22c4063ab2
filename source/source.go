// Package source fetches a dataset from the location a job is configured with
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

type Reader interface {
	Read(ctx context.Context, cfg *entity.DataSourceConfig) (*dataset.Dataset, error)
}

// Readers dispatches on the source type of a config
type Readers struct {
	API      Reader
	Database Reader
	File     Reader
}

func NewReaders(api, database, file Reader) *Readers {
	return &Readers{
		API:      api,
		Database: database,
		File:     file,
	}
}

// Read returns the dataset or a *entity.FetchError, never both
func (r *Readers) Read(ctx context.Context, cfg *entity.DataSourceConfig) (*dataset.Dataset, error) {
	var reader Reader
	switch cfg.SourceType {
	case entity.SourceKindAPI:
		reader = r.API
	case entity.SourceKindDatabase:
		reader = r.Database
	case entity.SourceKindFile:
		reader = r.File
	default:
		return nil, &entity.FetchError{Source: cfg.SourceType, Err: fmt.Errorf("unsupported source type %q", cfg.SourceType)}
	}
	if reader == nil {
		return nil, &entity.FetchError{Source: cfg.SourceType, Err: errors.New("no reader configured")}
	}

	ds, err := reader.Read(ctx, cfg)
	if err != nil {
		var fetchErr *entity.FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &entity.FetchError{Source: cfg.SourceType, Err: err}
	}
	return ds, nil
}
