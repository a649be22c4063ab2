package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-ingest-pipeline/config"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
	"github.com/tnqbao/gau-ingest-pipeline/http/controller"
	"github.com/tnqbao/gau-ingest-pipeline/infra"
	"github.com/tnqbao/gau-ingest-pipeline/pipeline"
	"github.com/tnqbao/gau-ingest-pipeline/repository"
)

type fakeJobs struct {
	submitted  []*entity.DataSourceConfig
	uploads    []pipeline.Upload
	uploadDest []string
	records    map[string]*entity.JobRecord
	submitErr  error
}

func (f *fakeJobs) Submit(_ context.Context, cfg *entity.DataSourceConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, cfg)
	return fmt.Sprintf("job-%d", len(f.submitted)), nil
}

func (f *fakeJobs) SubmitUpload(_ context.Context, upload pipeline.Upload, destination string) (string, error) {
	if _, err := entity.ParseDestination(destination); err != nil {
		return "", err
	}
	f.uploads = append(f.uploads, upload)
	f.uploadDest = append(f.uploadDest, destination)
	return "upload-1", nil
}

func (f *fakeJobs) Cancel(_ context.Context, jobID string) (*entity.JobRecord, error) {
	record, ok := f.records[jobID]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	if record.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, record.Status, entity.ErrJobTerminal)
	}
	record.Status = entity.JobStatusCancelled
	return record, nil
}

func (f *fakeJobs) GetStatus(_ context.Context, jobID string) (*entity.JobRecord, error) {
	record, ok := f.records[jobID]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return record, nil
}

func newRouter(t *testing.T, jobs *fakeJobs, mutate func(env *config.EnvConfig)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &config.EnvConfig{}
	env.Environment.Mode = "production"
	env.API.Keys = []string{"secret"}
	env.CORS.AllowDomains = "*"
	if mutate != nil {
		mutate(env)
	}

	in := &infra.Infra{Logger: infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil))}
	ctrl := controller.NewController(&config.Config{EnvConfig: env}, in, &repository.Repository{}, jobs)
	return SetupRouter(ctrl)
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	return req
}

func TestIngest(t *testing.T) {
	jobs := &fakeJobs{}
	r := newRouter(t, jobs, nil)

	body := `{
		"source_type": "api",
		"source_url": "https://example.com/items",
		"source_params": {"limit": 10},
		"transformations": [{"type": "aggregate", "group_by": ["city"], "aggregations": {"b": "sum", "a": "max"}}],
		"destination": "eventhub:items"
	}`
	w := do(r, jsonRequest(http.MethodPost, "/api/v1/ingest", body))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"job_id":"job-1","status":"processing"}`, w.Body.String())

	require.Len(t, jobs.submitted, 1)
	aggs := jobs.submitted[0].Transformations[0].Aggregations
	require.Len(t, aggs, 2)
	assert.Equal(t, "b", aggs[0].Column)

	w = do(r, jsonRequest(http.MethodPost, "/api/v1/ingest", `{"source_type":"api","source_url":"x","destination":"ftp:x"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "destination")

	w = do(r, jsonRequest(http.MethodPost, "/api/v1/ingest", `{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngest_ShuttingDown(t *testing.T) {
	r := newRouter(t, &fakeJobs{submitErr: pipeline.ErrShuttingDown}, nil)
	w := do(r, jsonRequest(http.MethodPost, "/api/v1/ingest", `{"source_type":"api","source_url":"x","destination":"blob:c"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIngestFile(t *testing.T) {
	jobs := &fakeJobs{}
	r := newRouter(t, jobs, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "rows.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, mw.WriteField("destination", "blob:uploads/rows.csv"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer secret")

	w := do(r, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"job_id":"upload-1","status":"processing"}`, w.Body.String())
	require.Len(t, jobs.uploads, 1)
	assert.Equal(t, "rows.csv", jobs.uploads[0].Filename)
	assert.Equal(t, "a,b\n1,2\n", string(jobs.uploads[0].Data))
	assert.Equal(t, "blob:uploads/rows.csv", jobs.uploadDest[0])

	buf.Reset()
	mw = multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("destination", "blob:uploads"))
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)
}

func TestStatusAndCancel(t *testing.T) {
	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	jobs := &fakeJobs{records: map[string]*entity.JobRecord{
		"running": {JobID: "running", Status: entity.JobStatusFetching, LastUpdated: updated},
		"done":    {JobID: "done", Status: entity.JobStatusCompleted, LastUpdated: updated, Details: map[string]any{"records_processed": 3}},
	}}
	r := newRouter(t, jobs, nil)

	w := do(r, jsonRequest(http.MethodGet, "/api/v1/status/done", ""))
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "completed", status["status"])
	assert.Equal(t, "2024-03-01T10:00:00Z", status["last_updated"])
	assert.Equal(t, map[string]any{"records_processed": float64(3)}, status["details"])

	w = do(r, jsonRequest(http.MethodGet, "/api/v1/status/running", ""))
	assert.Contains(t, w.Body.String(), `"details":{}`)

	assert.Equal(t, http.StatusNotFound, do(r, jsonRequest(http.MethodGet, "/api/v1/status/missing", "")).Code)

	w = do(r, jsonRequest(http.MethodPost, "/api/v1/cancel/running", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"job_id":"running","status":"cancelled"}`, w.Body.String())

	assert.Equal(t, http.StatusConflict, do(r, jsonRequest(http.MethodPost, "/api/v1/cancel/done", "")).Code)
	assert.Equal(t, http.StatusNotFound, do(r, jsonRequest(http.MethodPost, "/api/v1/cancel/missing", "")).Code)
}

func TestAuth(t *testing.T) {
	r := newRouter(t, &fakeJobs{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil)
	w := do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	w = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health is public")

	dev := newRouter(t, &fakeJobs{}, func(env *config.EnvConfig) {
		env.Environment.Mode = "development"
		env.API.Keys = nil
	})
	assert.Equal(t, http.StatusNotFound, do(dev, httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil)).Code)
}

func TestCORS(t *testing.T) {
	r := newRouter(t, &fakeJobs{}, func(env *config.EnvConfig) {
		env.CORS.AllowDomains = "https://app.example.com"
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ingest", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := do(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
