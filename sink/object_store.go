package sink

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/tnqbao/gau-ingest-pipeline/codec"
	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

// ObjectStoreWriter serializes the dataset in the job's file format, csv when
// none is set, and stores it as one object
type ObjectStoreWriter struct {
	store ObjectStore
}

func NewObjectStoreWriter(store ObjectStore) *ObjectStoreWriter {
	return &ObjectStoreWriter{store: store}
}

func (w *ObjectStoreWriter) Write(ctx context.Context, jobID string, dest entity.Destination, format entity.FileFormat, ds *dataset.Dataset) (map[string]any, error) {
	format = format.Normalize()
	if !format.Valid() {
		format = entity.FileFormatCSV
	}

	data, err := codec.Encode(format, ds)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	objectPath := dest.Path
	if objectPath == "" {
		objectPath = fmt.Sprintf("data_%s.%s", jobID, format)
	}
	contentType := codec.ContentType(format)

	if err := w.store.PutObject(ctx, dest.Container, objectPath, data, contentType); err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", dest.Container, objectPath, err)
	}

	return map[string]any{
		"container":    dest.Container,
		"path":         objectPath,
		"blob_path":    path.Join(dest.Container, objectPath),
		"size_bytes":   len(data),
		"content_type": contentType,
		"format":       string(format),
	}, nil
}

// PutRaw stores bytes as they are, for uploads that skip decoding
func (w *ObjectStoreWriter) PutRaw(ctx context.Context, dest entity.Destination, filename string, data []byte, contentType string) (map[string]any, error) {
	objectPath := dest.Path
	if objectPath == "" {
		objectPath = filename
	}
	if objectPath == "" {
		return nil, &entity.SinkError{Sink: entity.SinkKindObjectStore, Err: errors.New("no object path for upload")}
	}
	if contentType == "" {
		contentType = codec.ContentTypeOctetStream
	}

	if err := w.store.PutObject(ctx, dest.Container, objectPath, data, contentType); err != nil {
		return nil, &entity.SinkError{Sink: entity.SinkKindObjectStore, Err: fmt.Errorf("put %s/%s: %w", dest.Container, objectPath, err)}
	}

	return map[string]any{
		"container":    dest.Container,
		"path":         objectPath,
		"blob_path":    path.Join(dest.Container, objectPath),
		"size_bytes":   len(data),
		"content_type": contentType,
	}, nil
}
