package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/infra"
)

const jobKeyPrefix = "ingest:job:"

type RedisJobRepository struct {
	cache *infra.RedisClient
	now   func() time.Time
}

func NewRedisJobRepository(cache *infra.RedisClient) *RedisJobRepository {
	return &RedisJobRepository{cache: cache, now: time.Now}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// Upsert overwrites the whole record, details included
func (r *RedisJobRepository) Upsert(ctx context.Context, jobID string, status entity.JobStatus, details map[string]any) (*entity.JobRecord, error) {
	record := &entity.JobRecord{
		JobID:       jobID,
		Status:      status,
		LastUpdated: r.now().UTC(),
		Details:     datatypes.JSONMap(details),
	}
	if err := r.cache.Set(ctx, jobKey(jobID), record, 0); err != nil {
		return nil, fmt.Errorf("store job %s: %w", jobID, err)
	}
	return record, nil
}

func (r *RedisJobRepository) Get(ctx context.Context, jobID string) (*entity.JobRecord, error) {
	var record entity.JobRecord
	if err := r.cache.Get(ctx, jobKey(jobID), &record); err != nil {
		if errors.Is(err, infra.ErrCacheMiss) {
			return nil, entity.ErrJobNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return &record, nil
}
