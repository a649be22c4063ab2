package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

type GormJobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db, now: time.Now}
}

func (r *GormJobRepository) Migrate() error {
	return r.db.AutoMigrate(&entity.JobRecord{})
}

// Upsert inserts the record or replaces status, last_updated and details of
// an existing one
func (r *GormJobRepository) Upsert(ctx context.Context, jobID string, status entity.JobStatus, details map[string]any) (*entity.JobRecord, error) {
	record := &entity.JobRecord{
		JobID:       jobID,
		Status:      status,
		LastUpdated: r.now().UTC(),
		Details:     datatypes.JSONMap(details),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_updated", "details"}),
	}).Create(record).Error
	if err != nil {
		return nil, fmt.Errorf("store job %s: %w", jobID, err)
	}
	return record, nil
}

func (r *GormJobRepository) Get(ctx context.Context, jobID string) (*entity.JobRecord, error) {
	var record entity.JobRecord
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrJobNotFound
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return &record, nil
}
