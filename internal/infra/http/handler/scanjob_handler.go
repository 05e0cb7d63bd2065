package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reconforge/api/internal/app"
	"github.com/reconforge/api/pkg/apierror"
	"github.com/reconforge/api/pkg/domain/scanjob"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/logger"
	"github.com/reconforge/api/pkg/pagination"
	"github.com/reconforge/api/pkg/validator"
)

// ScanJobHandler handles scan job HTTP requests.
type ScanJobHandler struct {
	service   *app.ScanJobService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewScanJobHandler creates a new scan job handler.
func NewScanJobHandler(svc *app.ScanJobService, v *validator.Validator, log *logger.Logger) *ScanJobHandler {
	return &ScanJobHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ScanJobResponse represents a scan job in API responses.
type ScanJobResponse struct {
	ID                 string          `json:"id"`
	TargetID           int             `json:"target_id"`
	OrganizationID     string          `json:"organization_id"`
	CreatedBy          string          `json:"created_by,omitempty"`
	JobType            string          `json:"job_type"`
	ScanTypes          []string        `json:"scan_types,omitempty"`
	Priority           string          `json:"priority"`
	Config             json.RawMessage `json:"config,omitempty"`
	Status             string          `json:"status"`
	ProgressPercentage int             `json:"progress_percentage"`
	CurrentActivity    string          `json:"current_activity,omitempty"`
	Results            json.RawMessage `json:"results,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CreateScanJobRequest represents the request to create a scan job.
type CreateScanJobRequest struct {
	TargetID       int             `json:"target_id" validate:"required,gt=0"`
	OrganizationID string          `json:"organization_id" validate:"required,uuid"`
	CreatedBy      string          `json:"created_by" validate:"required,uuid"`
	JobType        string          `json:"job_type" validate:"required,job_type"`
	ScanTypes      []string        `json:"scan_types" validate:"omitempty,max=10,dive,job_type"`
	Priority       string          `json:"priority" validate:"omitempty,job_priority"`
	Config         json.RawMessage `json:"config"`
}

func toScanJobResponse(job *scanjob.ScanJob) ScanJobResponse {
	var createdBy string
	if !job.CreatedBy.IsZero() {
		createdBy = job.CreatedBy.String()
	}
	return ScanJobResponse{
		ID:                 job.ID.String(),
		TargetID:           job.TargetID,
		OrganizationID:     job.OrganizationID.String(),
		CreatedBy:          createdBy,
		JobType:            string(job.JobType),
		ScanTypes:          job.ScanTypes,
		Priority:           string(job.Priority),
		Config:             job.Config,
		Status:             string(job.Status),
		ProgressPercentage: job.ProgressPercentage,
		CurrentActivity:    job.CurrentActivity,
		Results:            job.Results,
		ErrorMessage:       job.ErrorMessage,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
}

// handleValidationError converts validation errors to API errors.
func (h *ScanJobHandler) handleValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		apierror.ValidationFailed("Validation failed", apiErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

// handleServiceError converts service errors to API errors.
func (h *ScanJobHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		apierror.NotFound("Scan job").WriteJSON(w)
	case shared.IsConflict(err):
		apierror.Conflict(err.Error()).WriteJSON(w)
	case shared.IsValidation(err):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

// Create handles POST /api/v1/scan-jobs
// @Summary      Create scan job
// @Description  Submits a new scan job for a target
// @Tags         ScanJobs
// @Accept       json
// @Produce      json
// @Param        request  body      CreateScanJobRequest  true  "Scan job"
// @Success      201  {object}  ScanJobResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /scan-jobs [post]
func (h *ScanJobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScanJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, err)
		return
	}

	job, err := h.service.CreateScanJob(r.Context(), app.CreateScanJobInput{
		TargetID:       req.TargetID,
		OrganizationID: req.OrganizationID,
		CreatedBy:      req.CreatedBy,
		JobType:        req.JobType,
		ScanTypes:      req.ScanTypes,
		Priority:       req.Priority,
		Config:         req.Config,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toScanJobResponse(job))
}

// Get handles GET /api/v1/scan-jobs/{id}
// @Summary      Get scan job
// @Tags         ScanJobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  ScanJobResponse
// @Failure      404  {object}  map[string]string
// @Router       /scan-jobs/{id} [get]
func (h *ScanJobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		apierror.BadRequest("Invalid job ID").WriteJSON(w)
		return
	}

	job, err := h.service.GetScanJob(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toScanJobResponse(job))
}

// List handles GET /api/v1/scan-jobs
// @Summary      List scan jobs
// @Tags         ScanJobs
// @Produce      json
// @Param        organization_id  query  string  false  "Filter by organization"
// @Param        target_id        query  int     false  "Filter by target"
// @Param        job_type         query  string  false  "Filter by job type"
// @Param        status           query  string  false  "Filter by status"
// @Param        page             query  int     false  "Page number"  default(1)
// @Param        per_page         query  int     false  "Items per page"  default(20)  maximum(100)
// @Success      200  {object}  ListResponse[ScanJobResponse]
// @Router       /scan-jobs [get]
func (h *ScanJobHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter scanjob.Filter
	if s := query.Get("organization_id"); s != "" {
		orgID, err := shared.IDFromString(s)
		if err != nil {
			apierror.BadRequest("Invalid organization_id").WriteJSON(w)
			return
		}
		filter.OrganizationID = &orgID
	}
	filter.TargetID = parseQueryIntPtr(query.Get("target_id"))
	if s := query.Get("job_type"); s != "" {
		jobType, err := scanjob.ParseJobType(s)
		if err != nil {
			apierror.BadRequest("Invalid job_type").WriteJSON(w)
			return
		}
		filter.JobType = &jobType
	}
	if s := query.Get("status"); s != "" {
		status, err := scanjob.ParseStatus(s)
		if err != nil {
			apierror.BadRequest("Invalid status").WriteJSON(w)
			return
		}
		filter.Status = &status
	}

	page := pagination.New(
		parseQueryInt(query.Get("page"), 1),
		parseQueryInt(query.Get("per_page"), 20),
	)

	result, err := h.service.ListScanJobs(r.Context(), filter, page)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]ScanJobResponse, len(result.Data))
	for i, job := range result.Data {
		data[i] = toScanJobResponse(job)
	}
	respondJSON(w, http.StatusOK, ListResponse[ScanJobResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Stop handles POST /api/v1/scan-jobs/{id}/stop
// @Summary      Stop scan job
// @Description  Requests cancellation of a pending or running scan job
// @Tags         ScanJobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      202  {object}  ScanJobResponse
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /scan-jobs/{id}/stop [post]
func (h *ScanJobHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDFromString(chi.URLParam(r, "id"))
	if err != nil {
		apierror.BadRequest("Invalid job ID").WriteJSON(w)
		return
	}

	job, err := h.service.StopScanJob(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, toScanJobResponse(job))
}

// Stats handles GET /api/v1/scan-jobs/stats
// @Summary      Scan job stats
// @Tags         ScanJobs
// @Produce      json
// @Param        organization_id  query  string  true  "Organization"
// @Success      200  {object}  scanjob.Stats
// @Router       /scan-jobs/stats [get]
func (h *ScanJobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.IDFromString(r.URL.Query().Get("organization_id"))
	if err != nil {
		apierror.BadRequest("Invalid organization_id").WriteJSON(w)
		return
	}

	stats, err := h.service.ScanJobStats(r.Context(), orgID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
