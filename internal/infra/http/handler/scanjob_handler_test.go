package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconforge/api/internal/app"
	"github.com/reconforge/api/internal/infra/memory"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
	"github.com/reconforge/api/pkg/logger"
	"github.com/reconforge/api/pkg/validator"
)

type noopEnqueuer struct{}

func (noopEnqueuer) EnqueueScanJob(context.Context, shared.ID, scanjob.Priority) error { return nil }

type handlerFixture struct {
	router   *chi.Mux
	jobs     *memory.ScanJobRepository
	orgID    shared.ID
	userID   shared.ID
	targetID int
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	log := logger.NewNop()
	jobs := memory.NewScanJobRepository()
	targets := memory.NewTargetRepository()

	orgID := shared.NewID()
	tgt, err := target.New(orgID, "example.com")
	require.NoError(t, err)
	require.NoError(t, targets.Create(context.Background(), tgt))

	service := app.NewScanJobService(jobs, targets, noopEnqueuer{}, log)
	h := NewScanJobHandler(service, validator.New(), log)

	router := chi.NewRouter()
	router.Route("/api/v1/scan-jobs", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/stop", h.Stop)
	})

	return &handlerFixture{router: router, jobs: jobs, orgID: orgID, userID: shared.NewID(), targetID: tgt.ID}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) createJob(t *testing.T) ScanJobResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/scan-jobs", map[string]any{
		"target_id":       f.targetID,
		"organization_id": f.orgID.String(),
		"created_by":      f.userID.String(),
		"job_type":        "subdomain_scan",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var job ScanJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	return job
}

func TestScanJobHandler_Create(t *testing.T) {
	f := newHandlerFixture(t)

	job := f.createJob(t)

	assert.Equal(t, "pending", job.Status)
	assert.Equal(t, "medium", job.Priority)
	assert.Zero(t, job.ProgressPercentage)
	assert.NotEmpty(t, job.ID)
}

func TestScanJobHandler_CreateValidation(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing target", map[string]any{"organization_id": f.orgID.String(), "created_by": f.userID.String(), "job_type": "subdomain_scan"}, http.StatusBadRequest},
		{"missing created_by", map[string]any{"target_id": f.targetID, "organization_id": f.orgID.String(), "job_type": "subdomain_scan"}, http.StatusBadRequest},
		{"bad job type", map[string]any{"target_id": f.targetID, "organization_id": f.orgID.String(), "created_by": f.userID.String(), "job_type": "x"}, http.StatusBadRequest},
		{"bad priority", map[string]any{"target_id": f.targetID, "organization_id": f.orgID.String(), "created_by": f.userID.String(), "job_type": "subdomain_scan", "priority": "asap"}, http.StatusBadRequest},
		{"unknown target", map[string]any{"target_id": 999, "organization_id": f.orgID.String(), "created_by": f.userID.String(), "job_type": "subdomain_scan"}, http.StatusNotFound},
		{"bad config", map[string]any{"target_id": f.targetID, "organization_id": f.orgID.String(), "created_by": f.userID.String(), "job_type": "subdomain_scan", "config": map[string]any{"bogus": 1}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/scan-jobs", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestScanJobHandler_CreateConflict(t *testing.T) {
	f := newHandlerFixture(t)
	first := f.createJob(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scan-jobs", map[string]any{
		"target_id":       f.targetID,
		"organization_id": f.orgID.String(),
		"created_by":      f.userID.String(),
		"job_type":        "subdomain_scan",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), first.ID)
}

func TestScanJobHandler_GetAndList(t *testing.T) {
	f := newHandlerFixture(t)
	job := f.createJob(t)

	rec := f.do(t, http.MethodGet, "/api/v1/scan-jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/scan-jobs/"+shared.NewID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/scan-jobs/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/scan-jobs?organization_id="+f.orgID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse[ScanJobResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/scan-jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanJobHandler_Stop(t *testing.T) {
	f := newHandlerFixture(t)
	job := f.createJob(t)

	rec := f.do(t, http.MethodPost, "/api/v1/scan-jobs/"+job.ID+"/stop", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var stopped ScanJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopped))
	assert.Equal(t, "cancelled", stopped.Status)

	// Terminal jobs cannot be stopped twice.
	rec = f.do(t, http.MethodPost, "/api/v1/scan-jobs/"+job.ID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScanJobHandler_Stats(t *testing.T) {
	f := newHandlerFixture(t)
	f.createJob(t)

	rec := f.do(t, http.MethodGet, "/api/v1/scan-jobs/stats?organization_id="+f.orgID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats scanjob.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Pending)

	rec = f.do(t, http.MethodGet, "/api/v1/scan-jobs/stats", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
