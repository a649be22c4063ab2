package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/sink"
	"github.com/tnqbao/gau-ingest-pipeline/source"
	"github.com/tnqbao/gau-ingest-pipeline/transform"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*entity.JobRecord
	history map[string][]entity.JobStatus
	failAll error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*entity.JobRecord),
		history: make(map[string][]entity.JobStatus),
	}
}

func (m *memStore) Upsert(_ context.Context, jobID string, status entity.JobStatus, details map[string]any) (*entity.JobRecord, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record := &entity.JobRecord{JobID: jobID, Status: status, LastUpdated: time.Now(), Details: details}
	m.records[jobID] = record
	m.history[jobID] = append(m.history[jobID], status)
	return record, nil
}

func (m *memStore) Get(_ context.Context, jobID string) (*entity.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[jobID]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return record, nil
}

func (m *memStore) statuses(jobID string) []entity.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.JobStatus(nil), m.history[jobID]...)
}

type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (o *objectStore) PutObject(_ context.Context, container, path string, data []byte, contentType string) error {
	if o.err != nil {
		return o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.objects == nil {
		o.objects = make(map[string][]byte)
		o.types = make(map[string]string)
	}
	o.objects[container+"/"+path] = data
	o.types[container+"/"+path] = contentType
	return nil
}

type publisher struct {
	mu     sync.Mutex
	events map[string][][]byte
}

func (p *publisher) PublishBatch(_ context.Context, stream string, events [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][][]byte)
	}
	p.events[stream] = append(p.events[stream], events...)
	return nil
}

// gatedReader blocks inside Read until released
type gatedReader struct {
	entered chan struct{}
	release chan struct{}
	ds      *dataset.Dataset
}

func (g *gatedReader) Read(ctx context.Context, _ *entity.DataSourceConfig) (*dataset.Dataset, error) {
	close(g.entered)
	select {
	case <-g.release:
		return g.ds, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type staticReader struct {
	ds *dataset.Dataset
}

func (s staticReader) Read(context.Context, *entity.DataSourceConfig) (*dataset.Dataset, error) {
	return s.ds, nil
}

type fixture struct {
	store      *memStore
	objects    *objectStore
	publisher  *publisher
	controller *JobController
}

func newFixture(t *testing.T, reader SourceReader) *fixture {
	f := &fixture{store: newMemStore(), objects: &objectStore{}, publisher: &publisher{}}
	if reader == nil {
		reader = source.NewReaders(nil, nil, source.NewFileReader(source.NewHTTPClient(time.Second)))
	}
	objectWriter := sink.NewObjectStoreWriter(f.objects)

	var seq atomic.Int64
	f.controller = NewJobController(Dependencies{
		Store:  f.store,
		Source: reader,
		Engine: transform.NewEngine(),
		Sink:   sink.NewWriters(objectWriter, sink.NewEventStreamWriter(f.publisher, 2)),
		Raw:    objectWriter,
	}, WithIDGenerator(func() string { return fmt.Sprintf("job-%d", seq.Add(1)) }))
	return f
}

func (f *fixture) drain(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.controller.Shutdown(ctx))
}

func writeCSV(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubmit_FileSelectToBlob(t *testing.T) {
	f := newFixture(t, nil)
	cfg := &entity.DataSourceConfig{
		SourceType:      entity.SourceKindFile,
		SourceURL:       writeCSV(t, "x,y\n1,a\n2,b\n3,c\n"),
		FileFormat:      entity.FileFormatCSV,
		Destination:     "blob:out/result.csv",
		Transformations: []entity.Transformation{{Type: entity.TransformSelect, Columns: []string{"x"}}},
	}

	jobID, err := f.controller.Submit(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	f.drain(t)

	record, err := f.controller.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, record.Status)
	assert.Equal(t, "out", record.Details["container"])
	assert.Equal(t, "result.csv", record.Details["path"])
	assert.Equal(t, "blob:out/result.csv", record.Details["destination"])
	assert.Equal(t, 3, record.Details["records_processed"])

	assert.Equal(t, "x\n1\n2\n3\n", string(f.objects.objects["out/result.csv"]))
	assert.Equal(t, "text/csv", f.objects.types["out/result.csv"])
	assert.Equal(t, []entity.JobStatus{
		entity.JobStatusStarted,
		entity.JobStatusFetching,
		entity.JobStatusTransforming,
		entity.JobStatusUploading,
		entity.JobStatusCompleted,
	}, f.store.statuses(jobID))
}

func TestSubmit_StartedDetails(t *testing.T) {
	reader := &gatedReader{entered: make(chan struct{}), release: make(chan struct{}), ds: dataset.MustNew(nil, nil)}
	f := newFixture(t, reader)

	jobID, err := f.controller.Submit(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindAPI,
		SourceURL:   "https://example.com/items",
		Destination: "eventhub:items",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.JobStatusStarted, f.store.statuses(jobID)[0])
	<-reader.entered
	close(reader.release)
	f.drain(t)

	record, err := f.controller.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, record.Status)
	assert.Equal(t, 0, record.Details["events_published"])
}

func TestSubmit_UnrecognisedFormatFallsBackToCSV(t *testing.T) {
	f := newFixture(t, staticReader{ds: dataset.MustNew([]string{"id"}, [][]any{{int64(7)}})})

	jobID, err := f.controller.Submit(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindAPI,
		SourceURL:   "https://example.com/items",
		FileFormat:  "avro",
		Destination: "blob:c/p",
	})
	require.NoError(t, err)
	f.drain(t)

	record, err := f.controller.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, record.Status)
	assert.Equal(t, "text/csv", f.objects.types["c/p"])
	assert.Equal(t, "id\n7\n", string(f.objects.objects["c/p"]))
}

func TestSubmit_ValidationErrorCreatesNoJob(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.controller.Submit(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindDatabase,
		SourceURL:   "sqlite:///tmp/x.db",
		Destination: "blob:out",
	})
	var validation *entity.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, f.store.records)

	_, err = f.controller.Submit(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindAPI,
		SourceURL:   "https://example.com",
		Destination: "s3:bucket/key",
	})
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, f.store.records)
}

func TestSubmit_StoreFailureIsReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.store.failAll = errors.New("redis down")

	_, err := f.controller.Submit(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindFile,
		SourceURL:   "data.csv",
		FileFormat:  entity.FileFormatCSV,
		Destination: "blob:out",
	})
	assert.ErrorContains(t, err, "redis down")
	f.drain(t)
}

func TestSubmit_StageFailures(t *testing.T) {
	csvPath := writeCSV(t, "x,y\n1,a\n")

	tests := []struct {
		name      string
		cfg       *entity.DataSourceConfig
		storeErr  error
		wantStage entity.JobStatus
		wantError string
	}{
		{
			name: "missing file",
			cfg: &entity.DataSourceConfig{
				SourceType:  entity.SourceKindFile,
				SourceURL:   filepath.Join(t.TempDir(), "absent.csv"),
				FileFormat:  entity.FileFormatCSV,
				Destination: "blob:out",
			},
			wantStage: entity.JobStatusFetching,
			wantError: "fetch from file source failed",
		},
		{
			name: "unrecognised file format",
			cfg: &entity.DataSourceConfig{
				SourceType:  entity.SourceKindFile,
				SourceURL:   csvPath,
				FileFormat:  "avro",
				Destination: "blob:out",
			},
			wantStage: entity.JobStatusFetching,
			wantError: "unsupported file format",
		},
		{
			name: "select absent column",
			cfg: &entity.DataSourceConfig{
				SourceType:      entity.SourceKindFile,
				SourceURL:       csvPath,
				FileFormat:      entity.FileFormatCSV,
				Destination:     "blob:out",
				Transformations: []entity.Transformation{{Type: entity.TransformSelect, Columns: []string{"x", "z"}}},
			},
			wantStage: entity.JobStatusTransforming,
			wantError: "transformation 0 (select) failed",
		},
		{
			name: "object store rejects",
			cfg: &entity.DataSourceConfig{
				SourceType:  entity.SourceKindFile,
				SourceURL:   csvPath,
				FileFormat:  entity.FileFormatCSV,
				Destination: "blob:out/x.csv",
			},
			storeErr:  errors.New("access denied"),
			wantStage: entity.JobStatusUploading,
			wantError: "access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.objects.err = tt.storeErr

			jobID, err := f.controller.Submit(context.Background(), tt.cfg)
			require.NoError(t, err)
			f.drain(t)

			record, err := f.controller.GetStatus(context.Background(), jobID)
			require.NoError(t, err)
			assert.Equal(t, entity.JobStatusFailed, record.Status)
			assert.Equal(t, string(tt.wantStage), record.Details["stage"])
			assert.Contains(t, record.Details["error"], tt.wantError)
			assert.Empty(t, f.objects.objects)
		})
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.controller.Cancel(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrJobNotFound)

	for _, status := range []entity.JobStatus{entity.JobStatusCompleted, entity.JobStatusFailed, entity.JobStatusCancelled} {
		_, _ = f.store.Upsert(ctx, "done-"+string(status), status, map[string]any{"k": "v"})
		_, err := f.controller.Cancel(ctx, "done-"+string(status))
		assert.ErrorIs(t, err, entity.ErrJobTerminal)

		record, _ := f.store.Get(ctx, "done-"+string(status))
		assert.Equal(t, status, record.Status, "terminal job is left untouched")
	}

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f.controller.now = func() time.Time { return fixed }
	for _, status := range []entity.JobStatus{entity.JobStatusStarted, entity.JobStatusFetching, entity.JobStatusUploading} {
		_, _ = f.store.Upsert(ctx, "live-"+string(status), status, nil)
		record, err := f.controller.Cancel(ctx, "live-"+string(status))
		require.NoError(t, err)
		assert.Equal(t, entity.JobStatusCancelled, record.Status)
		assert.Equal(t, string(status), record.Details["previous_status"])
		assert.Equal(t, "2024-01-02T03:04:05Z", record.Details["cancelled_at"])
	}
}

// Cancellation does not interrupt a running stage: the run finishes and its
// terminal status overwrites the cancelled record.
func TestCancel_RacesWithRunningJob(t *testing.T) {
	reader := &gatedReader{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		ds:      dataset.MustNew([]string{"a"}, [][]any{{int64(1)}}),
	}
	f := newFixture(t, reader)
	ctx := context.Background()

	jobID, err := f.controller.Submit(ctx, &entity.DataSourceConfig{
		SourceType:  entity.SourceKindAPI,
		SourceURL:   "https://example.com",
		Destination: "blob:out/a.csv",
	})
	require.NoError(t, err)
	<-reader.entered

	cancelled, err := f.controller.Cancel(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "fetching", cancelled.Details["previous_status"])

	close(reader.release)
	f.drain(t)

	record, err := f.controller.GetStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, record.Status)
	assert.Equal(t, []entity.JobStatus{
		entity.JobStatusStarted,
		entity.JobStatusFetching,
		entity.JobStatusCancelled,
		entity.JobStatusTransforming,
		entity.JobStatusUploading,
		entity.JobStatusCompleted,
	}, f.store.statuses(jobID))
	assert.Contains(t, f.objects.objects, "out/a.csv")
}

func TestSubmitUpload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rawID, err := f.controller.SubmitUpload(ctx, Upload{Filename: "report.pdf", Data: []byte("%PDF-1.4")}, "blob:uploads")
	require.NoError(t, err)
	streamID, err := f.controller.SubmitUpload(ctx, Upload{Filename: "rows.csv", Data: []byte("id,name\n1,a\n2,b\n3,c\n")}, "eventhub:rows")
	require.NoError(t, err)
	badID, err := f.controller.SubmitUpload(ctx, Upload{Filename: "blob.bin", Data: []byte{0, 1}}, "eventhub:rows")
	require.NoError(t, err)

	_, err = f.controller.SubmitUpload(ctx, Upload{Filename: "x.csv"}, "ftp:nowhere")
	var validation *entity.ValidationError
	assert.ErrorAs(t, err, &validation)

	f.drain(t)

	raw, err := f.controller.GetStatus(ctx, rawID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, raw.Status)
	assert.Equal(t, "unknown", raw.Details["records_processed"])
	assert.Equal(t, "uploads/report.pdf", raw.Details["blob_path"])
	assert.Equal(t, "application/octet-stream", raw.Details["content_type"])
	assert.Equal(t, []byte("%PDF-1.4"), f.objects.objects["uploads/report.pdf"])
	assert.Equal(t, []entity.JobStatus{entity.JobStatusStarted, entity.JobStatusUploading, entity.JobStatusCompleted}, f.store.statuses(rawID))

	stream, err := f.controller.GetStatus(ctx, streamID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, stream.Status)
	assert.Equal(t, 3, stream.Details["records_processed"])
	assert.Equal(t, 3, stream.Details["events_published"])
	require.Len(t, f.publisher.events["rows"], 3)
	assert.JSONEq(t, `{"id":1,"name":"a"}`, string(f.publisher.events["rows"][0]))

	bad, err := f.controller.GetStatus(ctx, badID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, bad.Status)
	assert.Contains(t, bad.Details["error"], "delivery to event_stream failed")
}

func TestShutdown(t *testing.T) {
	reader := &gatedReader{entered: make(chan struct{}), release: make(chan struct{}), ds: dataset.MustNew(nil, nil)}
	f := newFixture(t, reader)
	cfg := &entity.DataSourceConfig{SourceType: entity.SourceKindAPI, SourceURL: "https://example.com", Destination: "blob:out"}

	_, err := f.controller.Submit(context.Background(), cfg)
	require.NoError(t, err)
	<-reader.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.controller.Shutdown(ctx), context.DeadlineExceeded)

	_, err = f.controller.Submit(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrShuttingDown)

	close(reader.release)
	f.drain(t)
}
