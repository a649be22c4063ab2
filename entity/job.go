package entity

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus represents a step of the ingestion job state machine
type JobStatus string

const (
	JobStatusCreated      JobStatus = "created"
	JobStatusStarted      JobStatus = "started"
	JobStatusFetching     JobStatus = "fetching"
	JobStatusTransforming JobStatus = "transforming"
	JobStatusUploading    JobStatus = "uploading"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"

	// JobStatusProcessing is only reported to submitters, it is never persisted
	JobStatusProcessing JobStatus = "processing"
)

// IsTerminal reports whether no further automatic transition can follow
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobRecord is the persisted status snapshot of a job
type JobRecord struct {
	JobID       string            `json:"job_id" gorm:"column:job_id;type:varchar(64);primaryKey"`
	Status      JobStatus         `json:"status" gorm:"type:varchar(32);not null;index"`
	LastUpdated time.Time         `json:"last_updated" gorm:"not null"`
	Details     datatypes.JSONMap `json:"details"`
}

func (JobRecord) TableName() string {
	return "ingest_jobs"
}
