package pipeline

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tnqbao/gau-ingest-pipeline/pipeline"

type jobMetrics struct {
	submitted     metric.Int64Counter
	completed     metric.Int64Counter
	failed        metric.Int64Counter
	cancelled     metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// newJobMetrics never fails: an instrument that cannot be created is reported
// to the otel error handler and replaced by a no-op one
func newJobMetrics(meter metric.Meter) *jobMetrics {
	m := &jobMetrics{}
	var err error

	if m.submitted, err = meter.Int64Counter("ingest.jobs.submitted", metric.WithDescription("Jobs accepted")); err != nil {
		otel.Handle(err)
	}
	if m.completed, err = meter.Int64Counter("ingest.jobs.completed", metric.WithDescription("Jobs that reached completed")); err != nil {
		otel.Handle(err)
	}
	if m.failed, err = meter.Int64Counter("ingest.jobs.failed", metric.WithDescription("Jobs that reached failed")); err != nil {
		otel.Handle(err)
	}
	if m.cancelled, err = meter.Int64Counter("ingest.jobs.cancelled", metric.WithDescription("Cancellation requests applied")); err != nil {
		otel.Handle(err)
	}
	if m.stageDuration, err = meter.Float64Histogram("ingest.stage.duration",
		metric.WithDescription("Duration of one pipeline stage"),
		metric.WithUnit("s"),
	); err != nil {
		otel.Handle(err)
	}
	return m
}
