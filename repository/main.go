package repository

import (
	"context"

	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/infra"
)

// JobStatusStore keeps the latest status snapshot per job. Writes are
// last-write-wins and records are never deleted.
type JobStatusStore interface {
	Upsert(ctx context.Context, jobID string, status entity.JobStatus, details map[string]any) (*entity.JobRecord, error)
	Get(ctx context.Context, jobID string) (*entity.JobRecord, error)
}

type Repository struct {
	JobRepo JobStatusStore
}

func InitRepository(infra *infra.Infra) *Repository {
	if infra.Postgres != nil {
		jobRepo := NewGormJobRepository(infra.Postgres.DB)
		if err := jobRepo.Migrate(); err != nil {
			panic("Failed to migrate job table: " + err.Error())
		}
		return &Repository{JobRepo: jobRepo}
	}

	if infra.Redis == nil {
		panic("no job store backend initialized")
	}
	return &Repository{JobRepo: NewRedisJobRepository(infra.Redis)}
}
