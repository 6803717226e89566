// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evanschultz/funnel/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.PipelineService
	router  *mux.Router
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

// saveStagesRequest is the PUT /stages body.
type saveStagesRequest struct {
	Stages []common.StageInput `json:"stages"`
}

// moveItemRequest is the POST /move body.
type moveItemRequest struct {
	Status string `json:"status"`
}

// NewHandler constructs one HTTP API adapter over a pipeline service.
func NewHandler(service common.PipelineService) *Handler {
	h := &Handler{service: service}

	r := mux.NewRouter()
	r.HandleFunc("/pipelines/{pipeline}/board", h.handleBoard).Methods(http.MethodGet)
	r.HandleFunc("/pipelines/{pipeline}/stages", h.handleListStages).Methods(http.MethodGet)
	r.HandleFunc("/pipelines/{pipeline}/stages", h.handleSaveStages).Methods(http.MethodPut)
	r.HandleFunc("/pipelines/{pipeline}/items/{id}/move", h.handleMoveItem).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{
			Code:    "method_not_allowed",
			Message: "method not allowed",
		})
	})
	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "pipeline service is not configured",
		})
		return
	}
	h.router.ServeHTTP(w, r)
}

// handleBoard serves GET `/pipelines/{pipeline}/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context(), mux.Vars(r)["pipeline"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleListStages serves GET `/pipelines/{pipeline}/stages`.
func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.service.ListStages(r.Context(), mux.Vars(r)["pipeline"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stages": stages,
	})
}

// handleSaveStages serves PUT `/pipelines/{pipeline}/stages`.
func (h *Handler) handleSaveStages(w http.ResponseWriter, r *http.Request) {
	var req saveStagesRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	stages, err := h.service.SaveStages(r.Context(), mux.Vars(r)["pipeline"], req.Stages)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stages": stages,
	})
}

// handleMoveItem serves POST `/pipelines/{pipeline}/items/{id}/move`.
func (h *Handler) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	var req moveItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	vars := mux.Vars(r)
	result, err := h.service.MoveItem(r.Context(), common.MoveItemRequest{
		Pipeline: vars["pipeline"],
		ItemID:   vars["id"],
		Status:   req.Status,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Move items out of a stage before deleting it.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
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
