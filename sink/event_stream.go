package sink

import (
	"context"
	"fmt"

	"github.com/tnqbao/gau-ingest-pipeline/codec"
	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

const DefaultBatchSize = 1000

// EventStreamWriter publishes one JSON event per record, in record order
type EventStreamWriter struct {
	publisher EventPublisher
	batchSize int
}

func NewEventStreamWriter(publisher EventPublisher, batchSize int) *EventStreamWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EventStreamWriter{publisher: publisher, batchSize: batchSize}
}

func (w *EventStreamWriter) Write(ctx context.Context, _ string, dest entity.Destination, _ entity.FileFormat, ds *dataset.Dataset) (map[string]any, error) {
	columns := ds.Columns()
	rows := ds.Rows()

	published := 0
	for start := 0; start < len(rows); start += w.batchSize {
		end := min(start+w.batchSize, len(rows))

		batch := make([][]byte, 0, end-start)
		for _, row := range rows[start:end] {
			event, err := codec.EncodeRecord(columns, row)
			if err != nil {
				return nil, fmt.Errorf("encode event %d: %w", published+len(batch), err)
			}
			batch = append(batch, event)
		}

		if err := w.publisher.PublishBatch(ctx, dest.Stream, batch); err != nil {
			return nil, fmt.Errorf("publish to %s after %d events: %w", dest.Stream, published, err)
		}
		published += len(batch)
	}

	return map[string]any{
		"stream":           dest.Stream,
		"events_published": published,
	}, nil
}
