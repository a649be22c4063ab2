package controller

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/http/controller/dto"
	"github.com/tnqbao/gau-ingest-pipeline/pipeline"
	"github.com/tnqbao/gau-ingest-pipeline/utils"
)

func (ctrl *Controller) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req entity.DataSourceConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	jobID, err := ctrl.Jobs.Submit(ctx, &req)
	if err != nil {
		ctrl.respondSubmitError(c, "[Ingest]", err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Ingest] Started ingestion job %s", jobID)
	utils.JSON202(c, dto.JobResponseDTO{JobID: jobID, Status: entity.JobStatusProcessing})
}

func (ctrl *Controller) IngestFile(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestFileRequestDTO
	if err := c.ShouldBind(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Missing destination: %v", err)
		utils.JSON400(c, "destination is required")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Missing file: %v", err)
		utils.JSON400(c, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to open upload: %v", err)
		utils.JSON500(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Ingest] Failed to read upload: %v", err)
		utils.JSON500(c, "Failed to read uploaded file")
		return
	}

	jobID, err := ctrl.Jobs.SubmitUpload(ctx, pipeline.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, req.Destination)
	if err != nil {
		ctrl.respondSubmitError(c, "[Ingest]", err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Ingest] Started file upload job %s", jobID)
	utils.JSON202(c, dto.JobResponseDTO{JobID: jobID, Status: entity.JobStatusProcessing})
}

func (ctrl *Controller) GetJobStatus(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")

	record, err := ctrl.Jobs.GetStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			utils.JSON404(c, "Job "+jobID+" not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Status] Failed to load job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to load job status")
		return
	}

	utils.JSON200(c, dto.NewJobStatusResponse(record))
}

func (ctrl *Controller) CancelJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")

	record, err := ctrl.Jobs.Cancel(ctx, jobID)
	switch {
	case err == nil:
		utils.JSON200(c, dto.JobResponseDTO{JobID: record.JobID, Status: record.Status})
	case errors.Is(err, entity.ErrJobNotFound):
		utils.JSON404(c, "Job "+jobID+" not found")
	case errors.Is(err, entity.ErrJobTerminal):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Cancel] %v", err)
		utils.JSON409(c, err.Error())
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Cancel] Failed to cancel job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to cancel job")
	}
}

func (ctrl *Controller) Health(c *gin.Context) {
	checks := ctrl.Infra.Health(c.Request.Context())
	for _, state := range checks {
		if state != "ok" {
			utils.JSON503(c, dto.HealthResponseDTO{Status: "degraded", Checks: checks})
			return
		}
	}
	utils.JSON200(c, dto.HealthResponseDTO{Status: "ok", Checks: checks})
}

func (ctrl *Controller) respondSubmitError(c *gin.Context, tag string, err error) {
	ctx := c.Request.Context()

	var validation *entity.ValidationError
	switch {
	case errors.As(err, &validation):
		ctrl.Infra.Logger.WarningWithContextf(ctx, "%s Rejected request: %v", tag, err)
		utils.JSON422(c, validation.Error())
	case errors.Is(err, pipeline.ErrShuttingDown):
		utils.JSON503(c, gin.H{"error": err.Error()})
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "%s Failed to start job: %v", tag, err)
		utils.JSON500(c, "Failed to start job")
	}
}
