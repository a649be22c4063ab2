package controller

import (
	"context"

	"github.com/tnqbao/gau-ingest-pipeline/config"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/infra"
	"github.com/tnqbao/gau-ingest-pipeline/pipeline"
	"github.com/tnqbao/gau-ingest-pipeline/repository"
)

// JobService is the part of the pipeline the HTTP handlers drive
type JobService interface {
	Submit(ctx context.Context, cfg *entity.DataSourceConfig) (string, error)
	SubmitUpload(ctx context.Context, upload pipeline.Upload, destination string) (string, error)
	Cancel(ctx context.Context, jobID string) (*entity.JobRecord, error)
	GetStatus(ctx context.Context, jobID string) (*entity.JobRecord, error)
}

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Jobs       JobService
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository, jobs JobService) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	if jobs == nil {
		panic("Failed to initialize Job service")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Jobs:       jobs,
	}
}
