package pipeline

import (
	"github.com/tnqbao/gau-ingest-pipeline/config"
	"github.com/tnqbao/gau-ingest-pipeline/infra"
	"github.com/tnqbao/gau-ingest-pipeline/repository"
	"github.com/tnqbao/gau-ingest-pipeline/sink"
	"github.com/tnqbao/gau-ingest-pipeline/source"
	"github.com/tnqbao/gau-ingest-pipeline/transform"
)

// NewFromInfra builds a controller on the clients selected by configuration
func NewFromInfra(cfg *config.EnvConfig, in *infra.Infra, repo *repository.Repository) *JobController {
	httpClient := source.NewHTTPClient(cfg.Pipeline.HTTPTimeout)
	readers := source.NewReaders(
		source.NewAPIReader(httpClient),
		source.NewDatabaseReader(nil),
		source.NewFileReader(httpClient),
	)

	var engineOpts []transform.Option
	if cfg.Pipeline.CustomTransforms {
		engineOpts = append(engineOpts, transform.WithCustomTransforms(transform.DefaultRegistry(), cfg.Pipeline.CustomTransformTimeout))
	}

	objectWriter := sink.NewObjectStoreWriter(in.ObjectStore())
	writers := sink.NewWriters(
		objectWriter,
		sink.NewEventStreamWriter(in.EventPublisher(), cfg.Pipeline.BatchSize),
	)

	return NewJobController(Dependencies{
		Store:  repo.JobRepo,
		Source: readers,
		Engine: transform.NewEngine(engineOpts...),
		Sink:   writers,
		Raw:    objectWriter,
		Logger: in.Logger,
	},
		WithTelemetry(in.Telemetry.Tracer(instrumentationName), in.Telemetry.Meter(instrumentationName)),
	)
}
