// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/adapters/server/common"
	"github.com/hylla/nexus/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	svc            *app.Service
	mux            *http.ServeMux
	maxBodyBytes   int64
	uploadMaxBytes int64
}

// Config tunes request limits.
type Config struct {
	MaxBodyBytes   int64
	UploadMaxBytes int64
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

// NewHandler constructs one HTTP API adapter over the service.
func NewHandler(svc *app.Service, cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxRequestBodyBytes
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = app.DefaultUploadMaxBytes
	}
	h := &Handler{
		svc:            svc,
		mux:            http.NewServeMux(),
		maxBodyBytes:   cfg.MaxBodyBytes,
		uploadMaxBytes: cfg.UploadMaxBytes,
	}
	h.routes()
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	if _, pattern := h.mux.Handler(r); pattern == "" {
		if allowed := h.allowedMethods(r); len(allowed) > 0 {
			writeMethodNotAllowed(w, allowed...)
			return
		}
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    common.CodeNotFound,
			Message: "endpoint not found",
		})
		return
	}
	h.mux.ServeHTTP(w, r)
}

// allowedMethods lists the methods routed for the request path.
func (h *Handler) allowedMethods(r *http.Request) []string {
	var allowed []string
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		probe := r.Clone(r.Context())
		probe.Method = method
		if _, pattern := h.mux.Handler(probe); pattern != "" {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

func (h *Handler) routes() {
	m := h.mux
	m.HandleFunc("GET /me", h.handleMe)
	m.HandleFunc("GET /users", h.handleListUsers)

	m.HandleFunc("GET /workspaces", h.handleListWorkspaces)
	m.HandleFunc("POST /workspaces", h.handleCreateWorkspace)
	m.HandleFunc("GET /workspaces/{id}", h.handleGetWorkspace)
	m.HandleFunc("DELETE /workspaces/{id}", h.handleDeleteWorkspace)

	m.HandleFunc("GET /projects", h.handleListProjects)
	m.HandleFunc("POST /projects", h.handleCreateProject)
	m.HandleFunc("GET /projects/{id}", h.handleGetProject)
	m.HandleFunc("PUT /projects/{id}", h.handleUpdateProject)
	m.HandleFunc("DELETE /projects/{id}", h.handleDeleteProject)
	m.HandleFunc("GET /projects/{id}/activity", h.handleProjectActivity)

	m.HandleFunc("GET /tasks", h.handleListTasks)
	m.HandleFunc("POST /tasks", h.handleCreateTask)
	m.HandleFunc("GET /tasks/{id}", h.handleGetTask)
	m.HandleFunc("PUT /tasks/{id}", h.handleUpdateTask)
	m.HandleFunc("DELETE /tasks/{id}", h.handleDeleteTask)
	m.HandleFunc("PATCH /tasks/{id}/status", h.handleUpdateTaskStatus)
	m.HandleFunc("POST /tasks/{id}/sync-calendar", h.handleSyncCalendar)
	m.HandleFunc("POST /tasks/{id}/sync-todo", h.handleSyncTodo)
	m.HandleFunc("GET /tasks/{id}/checklist", h.handleListChecklist)
	m.HandleFunc("POST /tasks/{id}/checklist", h.handleAddChecklistItem)
	m.HandleFunc("PATCH /tasks/{id}/checklist/{itemId}", h.handleUpdateChecklistItem)
	m.HandleFunc("DELETE /tasks/{id}/checklist/{itemId}", h.handleDeleteChecklistItem)
	m.HandleFunc("GET /tasks/{id}/comments", h.handleListComments)
	m.HandleFunc("POST /tasks/{id}/comments", h.handleAddComment)

	m.HandleFunc("GET /members", h.handleListMembers)
	m.HandleFunc("POST /members", h.handleAddMember)
	m.HandleFunc("GET /members/workload", h.handleWorkload)
	m.HandleFunc("PUT /members/{userId}/role", h.handleUpdateMemberRole)
	m.HandleFunc("DELETE /members/{userId}", h.handleRemoveMember)

	m.HandleFunc("GET /files", h.handleListFiles)
	m.HandleFunc("POST /files/upload", h.handleUploadFile)
	m.HandleFunc("GET /files/{id}/download", h.handleDownloadFile)
	m.HandleFunc("DELETE /files/{id}", h.handleDeleteFile)
}

// requireQuery returns one required, trimmed query parameter.
func requireQuery(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return "", fmt.Errorf("%s is required: %w", name, common.ErrInvalidRequest)
	}
	return value, nil
}

// queryLimit parses an optional positive limit parameter. Zero means the service default.
func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer: %w", common.ErrInvalidRequest)
	}
	return limit, nil
}

// parseTimeValue accepts RFC3339 timestamps and bare YYYY-MM-DD dates (UTC midnight).
func parseTimeValue(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	if ts, err := time.Parse(time.DateOnly, raw); err == nil {
		return &ts, nil
	}
	return nil, fmt.Errorf("%s must be RFC3339 or YYYY-MM-DD: %w", field, common.ErrInvalidRequest)
}

// writeErrorFrom maps service errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	code, status := common.Classify(err)
	apiErr := APIError{Code: code, Message: common.PublicMessage(err)}
	if code == common.CodeUnauthenticated {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSONError(w, status, apiErr)
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    common.CodeMethodNotAllowed,
		Message: "method not allowed",
	})
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
func (h *Handler) decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("decode request body: %w", err)
		}
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
