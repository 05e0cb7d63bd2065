package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reconforge/api/internal/app"
	"github.com/reconforge/api/pkg/apierror"
	"github.com/reconforge/api/pkg/domain/shared"
	"github.com/reconforge/api/pkg/domain/target"
	"github.com/reconforge/api/pkg/logger"
	"github.com/reconforge/api/pkg/validator"
)

// TargetHandler handles target HTTP requests.
type TargetHandler struct {
	service   *app.TargetService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewTargetHandler creates a new target handler.
func NewTargetHandler(svc *app.TargetService, v *validator.Validator, log *logger.Logger) *TargetHandler {
	return &TargetHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// TargetResponse represents a target in API responses.
type TargetResponse struct {
	ID              int        `json:"id"`
	OrganizationID  string     `json:"organization_id"`
	Domain          string     `json:"domain"`
	Subdomains      int        `json:"subdomains_count"`
	OpenPorts       int        `json:"open_ports_count"`
	Vulnerabilities int        `json:"vulnerabilities_count"`
	StatsUpdatedAt  *time.Time `json:"stats_updated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateTargetRequest represents the request to create a target.
type CreateTargetRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	Domain         string `json:"domain" validate:"required,domain_name"`
}

func toTargetResponse(t *target.Target) TargetResponse {
	resp := TargetResponse{
		ID:              t.ID,
		OrganizationID:  t.OrganizationID.String(),
		Domain:          t.Domain,
		Subdomains:      t.Stats.Subdomains,
		OpenPorts:       t.Stats.OpenPorts,
		Vulnerabilities: t.Stats.Vulnerabilities,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if !t.Stats.LastUpdated.IsZero() {
		at := t.Stats.LastUpdated
		resp.StatsUpdatedAt = &at
	}
	return resp
}

func (h *TargetHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsNotFound(err):
		apierror.NotFound("Target").WriteJSON(w)
	case shared.IsConflict(err):
		apierror.Conflict(err.Error()).WriteJSON(w)
	case shared.IsValidation(err):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

// Create handles POST /api/v1/targets
// @Summary      Create target
// @Tags         Targets
// @Accept       json
// @Produce      json
// @Param        request  body      CreateTargetRequest  true  "Target"
// @Success      201  {object}  TargetResponse
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /targets [post]
func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apiErrors := make([]apierror.ValidationError, len(validationErrors))
			for i, ve := range validationErrors {
				apiErrors[i] = apierror.ValidationError{Field: ve.Field, Message: ve.Message}
			}
			apierror.ValidationFailed("Validation failed", apiErrors).WriteJSON(w)
			return
		}
		apierror.BadRequest("Validation error").WriteJSON(w)
		return
	}

	t, err := h.service.CreateTarget(r.Context(), app.CreateTargetInput{
		OrganizationID: req.OrganizationID,
		Domain:         req.Domain,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTargetResponse(t))
}

// Get handles GET /api/v1/targets/{id}
// @Summary      Get target
// @Tags         Targets
// @Produce      json
// @Param        id   path      int  true  "Target ID"
// @Success      200  {object}  TargetResponse
// @Failure      404  {object}  map[string]string
// @Router       /targets/{id} [get]
func (h *TargetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := parseQueryInt(chi.URLParam(r, "id"), 0)
	if id <= 0 {
		apierror.BadRequest("Invalid target ID").WriteJSON(w)
		return
	}

	t, err := h.service.GetTarget(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTargetResponse(t))
}

// List handles GET /api/v1/targets
// @Summary      List targets
// @Tags         Targets
// @Produce      json
// @Param        organization_id  query  string  true  "Organization"
// @Success      200  {object}  []TargetResponse
// @Router       /targets [get]
func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, err := shared.IDFromString(r.URL.Query().Get("organization_id"))
	if err != nil {
		apierror.BadRequest("Invalid organization_id").WriteJSON(w)
		return
	}

	targets, err := h.service.ListTargets(r.Context(), orgID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]TargetResponse, len(targets))
	for i, t := range targets {
		data[i] = toTargetResponse(t)
	}
	respondJSON(w, http.StatusOK, data)
}
