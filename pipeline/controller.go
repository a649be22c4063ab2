// Package pipeline drives ingestion jobs from submission to a terminal status.
//
// Every job runs in its own goroutine with no global cap. Cancellation only
// flips the persisted status: a stage that is already running finishes and
// may overwrite the cancelled record with its own terminal status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/infra"
	"github.com/tnqbao/gau-ingest-pipeline/repository"
)

var ErrShuttingDown = errors.New("pipeline is shutting down")

type SourceReader interface {
	Read(ctx context.Context, cfg *entity.DataSourceConfig) (*dataset.Dataset, error)
}

type Transformer interface {
	Apply(ctx context.Context, ds *dataset.Dataset, steps []entity.Transformation) (*dataset.Dataset, error)
}

type SinkWriter interface {
	Write(ctx context.Context, jobID string, dest entity.Destination, format entity.FileFormat, ds *dataset.Dataset) (map[string]any, error)
}

// RawUploader stores uploaded bytes without decoding them
type RawUploader interface {
	PutRaw(ctx context.Context, dest entity.Destination, filename string, data []byte, contentType string) (map[string]any, error)
}

type Dependencies struct {
	Store  repository.JobStatusStore
	Source SourceReader
	Engine Transformer
	Sink   SinkWriter
	Raw    RawUploader
	Logger *infra.LoggerClient
}

// Upload is a file received for a direct-to-sink job
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Option func(*JobController)

func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(c *JobController) {
		c.tracer = tracer
		c.metrics = newJobMetrics(meter)
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(c *JobController) { c.newID = newID }
}

func WithClock(now func() time.Time) Option {
	return func(c *JobController) { c.now = now }
}

type JobController struct {
	store  repository.JobStatusStore
	source SourceReader
	engine Transformer
	sink   SinkWriter
	raw    RawUploader
	logger *infra.LoggerClient

	tracer  trace.Tracer
	metrics *jobMetrics
	newID   func() string
	now     func() time.Time

	mu      sync.Mutex
	closing bool
	running sync.WaitGroup
}

func NewJobController(deps Dependencies, opts ...Option) *JobController {
	c := &JobController{
		store:   deps.Store,
		source:  deps.Source,
		engine:  deps.Engine,
		sink:    deps.Sink,
		raw:     deps.Raw,
		logger:  deps.Logger,
		tracer:  tracenoop.NewTracerProvider().Tracer(instrumentationName),
		metrics: newJobMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName)),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	if c.logger == nil {
		c.logger = infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates cfg, records the job as started and runs it in the
// background. It returns once the initial record is persisted.
func (c *JobController) Submit(ctx context.Context, cfg *entity.DataSourceConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	dest, err := entity.ParseDestination(cfg.Destination)
	if err != nil {
		return "", err
	}

	details := map[string]any{
		"source_type": string(cfg.SourceType),
		"destination": cfg.Destination,
	}
	jobID, err := c.start(ctx, details)
	if err != nil {
		return "", err
	}

	c.infoJob(ctx, jobID, "[Pipeline] Job submitted: source=%s destination=%s", cfg.SourceType, cfg.Destination)
	go c.run(context.WithoutCancel(ctx), jobID, cfg, dest)
	return jobID, nil
}

// SubmitUpload starts a direct-to-sink job for an uploaded file. Object store
// destinations receive the bytes unchanged; event streams receive the decoded
// records.
func (c *JobController) SubmitUpload(ctx context.Context, upload Upload, destination string) (string, error) {
	dest, err := entity.ParseDestination(destination)
	if err != nil {
		return "", err
	}
	if upload.Filename == "" {
		return "", &entity.ValidationError{Field: "file", Message: "uploaded file must have a name"}
	}

	details := map[string]any{
		"source_type": "upload",
		"destination": destination,
		"filename":    upload.Filename,
	}
	jobID, err := c.start(ctx, details)
	if err != nil {
		return "", err
	}

	c.infoJob(ctx, jobID, "[Pipeline] Upload submitted: file=%s size=%d destination=%s", upload.Filename, len(upload.Data), destination)
	go c.runUpload(context.WithoutCancel(ctx), jobID, upload, dest)
	return jobID, nil
}

func (c *JobController) start(ctx context.Context, details map[string]any) (string, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return "", ErrShuttingDown
	}
	c.running.Add(1)
	c.mu.Unlock()

	jobID := c.newID()
	if _, err := c.store.Upsert(ctx, jobID, entity.JobStatusStarted, details); err != nil {
		c.running.Done()
		return "", fmt.Errorf("record job %s: %w", jobID, err)
	}
	c.metrics.submitted.Add(ctx, 1)
	return jobID, nil
}

// Cancel marks a non-terminal job as cancelled. It does not stop a stage in
// progress.
func (c *JobController) Cancel(ctx context.Context, jobID string) (*entity.JobRecord, error) {
	current, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, current.Status, entity.ErrJobTerminal)
	}

	record, err := c.store.Upsert(ctx, jobID, entity.JobStatusCancelled, map[string]any{
		"previous_status": string(current.Status),
		"cancelled_at":    c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", jobID, err)
	}

	c.metrics.cancelled.Add(ctx, 1)
	c.logger.WarningWithContextf(ctx, "[Pipeline] Job %s cancelled while %s", jobID, current.Status)
	return record, nil
}

func (c *JobController) GetStatus(ctx context.Context, jobID string) (*entity.JobRecord, error) {
	return c.store.Get(ctx, jobID)
}

// Shutdown stops accepting jobs and waits for running ones until ctx is done
func (c *JobController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *JobController) run(ctx context.Context, jobID string, cfg *entity.DataSourceConfig, dest entity.Destination) {
	defer c.running.Done()

	ctx, span := c.tracer.Start(ctx, "ingest.job", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("job.source_type", string(cfg.SourceType)),
		attribute.String("job.destination", cfg.Destination),
	))
	defer span.End()

	var ds *dataset.Dataset
	err := c.stage(ctx, jobID, entity.JobStatusFetching, func(ctx context.Context) (err error) {
		ds, err = c.source.Read(ctx, cfg)
		return err
	})
	if err != nil {
		c.fail(ctx, span, jobID, entity.JobStatusFetching, err)
		return
	}

	err = c.stage(ctx, jobID, entity.JobStatusTransforming, func(ctx context.Context) (err error) {
		ds, err = c.engine.Apply(ctx, ds, cfg.Transformations)
		return err
	})
	if err != nil {
		c.fail(ctx, span, jobID, entity.JobStatusTransforming, err)
		return
	}

	var sinkDetails map[string]any
	err = c.stage(ctx, jobID, entity.JobStatusUploading, func(ctx context.Context) (err error) {
		sinkDetails, err = c.sink.Write(ctx, jobID, dest, cfg.FileFormat, ds)
		return err
	})
	if err != nil {
		c.fail(ctx, span, jobID, entity.JobStatusUploading, err)
		return
	}

	c.complete(ctx, span, jobID, cfg.Destination, ds.NumRows(), sinkDetails)
}

func (c *JobController) runUpload(ctx context.Context, jobID string, upload Upload, dest entity.Destination) {
	defer c.running.Done()

	ctx, span := c.tracer.Start(ctx, "ingest.upload", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("job.filename", upload.Filename),
		attribute.String("job.destination", dest.Raw),
	))
	defer span.End()

	var (
		details   map[string]any
		processed any = "unknown"
	)
	err := c.stage(ctx, jobID, entity.JobStatusUploading, func(ctx context.Context) error {
		switch dest.Kind {
		case entity.SinkKindObjectStore:
			var err error
			details, err = c.raw.PutRaw(ctx, dest, upload.Filename, upload.Data, upload.ContentType)
			return err
		case entity.SinkKindEventStream:
			ds, format, err := decodeUpload(upload)
			if err != nil {
				return &entity.SinkError{Sink: entity.SinkKindEventStream, Err: err}
			}
			details, err = c.sink.Write(ctx, jobID, dest, format, ds)
			processed = ds.NumRows()
			return err
		}
		return fmt.Errorf("unsupported destination kind %s", dest.Kind)
	})
	if err != nil {
		c.fail(ctx, span, jobID, entity.JobStatusUploading, err)
		return
	}

	c.complete(ctx, span, jobID, dest.Raw, processed, details)
}

// stage persists the stage status, then runs fn inside its own span
func (c *JobController) stage(ctx context.Context, jobID string, status entity.JobStatus, fn func(ctx context.Context) error) error {
	if _, err := c.store.Upsert(ctx, jobID, status, nil); err != nil {
		return fmt.Errorf("record %s status: %w", status, err)
	}

	ctx, span := c.tracer.Start(ctx, "ingest."+string(status))
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	c.metrics.stageDuration.Record(ctx, time.Since(started).Seconds(),
		metric.WithAttributes(attribute.String("stage", string(status)), attribute.Bool("error", err != nil)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	c.logger.DebugWithContextf(ctx, "[Pipeline] Job %s finished %s in %s", jobID, status, time.Since(started))
	return nil
}

func (c *JobController) fail(ctx context.Context, span trace.Span, jobID string, stage entity.JobStatus, cause error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	c.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
	c.logger.ErrorWithContextf(ctx, cause, "[Pipeline] Job %s failed while %s", jobID, stage)

	_, err := c.store.Upsert(ctx, jobID, entity.JobStatusFailed, map[string]any{
		"error": cause.Error(),
		"stage": string(stage),
	})
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Pipeline] Failed to record failure of job %s", jobID)
	}
}

func (c *JobController) complete(ctx context.Context, span trace.Span, jobID, destination string, processed any, sinkDetails map[string]any) {
	details := make(map[string]any, len(sinkDetails)+2)
	for k, v := range sinkDetails {
		details[k] = v
	}
	details["destination"] = destination
	details["records_processed"] = processed

	if _, err := c.store.Upsert(ctx, jobID, entity.JobStatusCompleted, details); err != nil {
		span.RecordError(err)
		c.logger.ErrorWithContextf(ctx, err, "[Pipeline] Failed to record completion of job %s", jobID)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.metrics.completed.Add(ctx, 1)
	c.infoJob(ctx, jobID, "[Pipeline] Job completed: destination=%s records=%v", destination, processed)
}

// infoJob logs with the job id prefixed to the message
func (c *JobController) infoJob(ctx context.Context, jobID, format string, args ...any) {
	c.logger.InfoWithContextf(ctx, "%s job=%s", fmt.Sprintf(format, args...), jobID)
}
