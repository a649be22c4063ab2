// Package sink delivers a dataset to its destination: an object store
// container or an event stream
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

// ObjectStore puts a single object into a container
type ObjectStore interface {
	PutObject(ctx context.Context, container, path string, data []byte, contentType string) error
}

// EventPublisher sends a batch of serialized events to a named stream, in order
type EventPublisher interface {
	PublishBatch(ctx context.Context, stream string, events [][]byte) error
}

type Writer interface {
	Write(ctx context.Context, jobID string, dest entity.Destination, format entity.FileFormat, ds *dataset.Dataset) (map[string]any, error)
}

// Writers dispatches on the destination kind
type Writers struct {
	ObjectStore Writer
	EventStream Writer
}

func NewWriters(objectStore, eventStream Writer) *Writers {
	return &Writers{
		ObjectStore: objectStore,
		EventStream: eventStream,
	}
}

// Write returns the delivery details or a *entity.SinkError
func (w *Writers) Write(ctx context.Context, jobID string, dest entity.Destination, format entity.FileFormat, ds *dataset.Dataset) (map[string]any, error) {
	var writer Writer
	switch dest.Kind {
	case entity.SinkKindObjectStore:
		writer = w.ObjectStore
	case entity.SinkKindEventStream:
		writer = w.EventStream
	default:
		return nil, &entity.SinkError{Sink: dest.Kind, Err: fmt.Errorf("unsupported destination %q", dest.Raw)}
	}
	if writer == nil {
		return nil, &entity.SinkError{Sink: dest.Kind, Err: errors.New("no writer configured")}
	}

	details, err := writer.Write(ctx, jobID, dest, format, ds)
	if err != nil {
		var sinkErr *entity.SinkError
		if errors.As(err, &sinkErr) {
			return nil, err
		}
		return nil, &entity.SinkError{Sink: dest.Kind, Err: err}
	}
	return details, nil
}
