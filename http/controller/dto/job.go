package dto

import (
	"time"

	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

type IngestFileRequestDTO struct {
	Destination string `form:"destination" binding:"required"`
}

type JobResponseDTO struct {
	JobID  string           `json:"job_id"`
	Status entity.JobStatus `json:"status"`
}

type JobStatusResponseDTO struct {
	JobID       string           `json:"job_id"`
	Status      entity.JobStatus `json:"status"`
	LastUpdated time.Time        `json:"last_updated"`
	Details     map[string]any   `json:"details"`
}

type HealthResponseDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func NewJobStatusResponse(record *entity.JobRecord) JobStatusResponseDTO {
	details := map[string]any(record.Details)
	if details == nil {
		details = map[string]any{}
	}
	return JobStatusResponseDTO{
		JobID:       record.JobID,
		Status:      record.Status,
		LastUpdated: record.LastUpdated,
		Details:     details,
	}
}
