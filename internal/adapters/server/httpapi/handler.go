// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hylla/groundline/internal/adapters/server/common"
	"github.com/hylla/groundline/internal/schedule"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service  common.ScheduleService
	mux      *http.ServeMux
	validate *validator.Validate
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the schedule service.
func NewHandler(service common.ScheduleService) *Handler {
	h := &Handler{
		service:  service,
		mux:      http.NewServeMux(),
		validate: newValidator(),
	}
	h.mux.HandleFunc("GET /projects", h.handleListProjects)
	h.mux.HandleFunc("POST /projects", h.handleCreateProject)
	h.mux.HandleFunc("GET /projects/{id}/activities", h.handleListActivities)
	h.mux.HandleFunc("POST /projects/{id}/activities", h.handleCreateActivity)
	h.mux.HandleFunc("GET /projects/{id}/schedule", h.handleComputeSchedule)
	h.mux.HandleFunc("POST /projects/{id}/dependencies", h.handleAddDependency)
	h.mux.HandleFunc("DELETE /projects/{id}/dependencies", h.handleRemoveDependency)
	h.mux.HandleFunc("POST /activities/{id}/progress", h.handleApplyProgress)
	h.mux.HandleFunc("POST /activities/{id}/close", h.handleCloseActivity)
	h.mux.HandleFunc("GET /activities/{id}/closure", h.handleGetClosure)
	h.mux.HandleFunc("GET /activities/{id}/snapshots", h.handleListSnapshots)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "schedule service is not configured",
		})
		return
	}
	h.mux.ServeHTTP(w, r)
}

// handleListProjects serves GET `/projects`.
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleCreateProject serves POST `/projects`.
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req common.CreateProjectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// handleListActivities serves GET `/projects/{id}/activities`.
func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.service.ListActivities(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// handleCreateActivity serves POST `/projects/{id}/activities`.
func (h *Handler) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req common.CreateActivityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	req.ProjectID = r.PathValue("id")
	activity, err := h.service.CreateActivity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// handleComputeSchedule serves GET `/projects/{id}/schedule`.
func (h *Handler) handleComputeSchedule(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ComputeSchedule(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAddDependency serves POST `/projects/{id}/dependencies`.
func (h *Handler) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req common.DependencyRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	req.ProjectID = r.PathValue("id")
	dep, err := h.service.AddDependency(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// handleRemoveDependency serves DELETE `/projects/{id}/dependencies`.
func (h *Handler) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	var req common.DependencyRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	req.ProjectID = r.PathValue("id")
	if err := h.service.RemoveDependency(r.Context(), req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyProgress serves POST `/activities/{id}/progress`.
func (h *Handler) handleApplyProgress(w http.ResponseWriter, r *http.Request) {
	var req common.ProgressRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	req.ActivityID = r.PathValue("id")
	rollup, err := h.service.ApplyProgress(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

// handleCloseActivity serves POST `/activities/{id}/close`.
func (h *Handler) handleCloseActivity(w http.ResponseWriter, r *http.Request) {
	var req common.CloseActivityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	req.ActivityID = r.PathValue("id")
	record, err := h.service.CloseActivity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// handleGetClosure serves GET `/activities/{id}/closure`.
func (h *Handler) handleGetClosure(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetClosureRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleListSnapshots serves GET `/activities/{id}/snapshots`.
func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.ListProgressSnapshots(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// decodeAndValidate decodes a JSON body into out and runs struct validation, writing the
// error response itself when either step fails.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSONBody(r.Context(), w, r, out); err != nil {
		writeErrorFrom(w, err)
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			writeErrorFrom(w, err)
			return false
		}
		fields := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "request validation failed",
			Context: map[string]any{"fields": fields},
		})
		return false
	}
	return true
}

// newValidator builds a validator that reports json field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	var closureErr *schedule.ClosureError
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.As(err, &closureErr):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "closure_rejected",
			Message: err.Error(),
			Hint:    "Resolve every violation before closing the activity.",
			Context: map[string]any{
				"activity_id": closureErr.ActivityID,
				"violations":  closureErr.Violations,
			},
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		apiErr := APIError{
			Code:    "conflict",
			Message: err.Error(),
		}
		var cycleErr *schedule.CycleError
		if errors.As(err, &cycleErr) {
			apiErr.Code = "cycle_detected"
			apiErr.Context = map[string]any{"path": cycleErr.Path}
		}
		writeJSONError(w, http.StatusConflict, apiErr)
	case errors.Is(err, common.ErrBusinessRule):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "business_rule",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
