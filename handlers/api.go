// Package handlers provides the HTTP boundary for the visualization
// pipeline: concept generation, lookup, share links and admin mutations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"renovisio_backend/core"
	"renovisio_backend/db"
	"renovisio_backend/logging"
	"renovisio_backend/pipeline"
)

// PipelineRunner runs one generation request end to end.
type PipelineRunner interface {
	Generate(ctx context.Context, req pipeline.GenerationRequest) (*pipeline.VisualizationRecord, error)
}

// RecordStore is the persistence surface the API reads and mutates.
type RecordStore interface {
	GetVisualization(ctx context.Context, id string) (*db.VisualizationRow, error)
	GetVisualizationByShareToken(ctx context.Context, token string) (*db.VisualizationRow, error)
	UpdateNotes(ctx context.Context, id, notes string) error
	UpdateFeasibilityScore(ctx context.Context, id string, score float64) error
	SelectConcept(ctx context.Context, visualizationID, conceptID string) error
}

// BriefExtractor pulls text out of an uploaded design-brief PDF.
type BriefExtractor interface {
	ExtractText(data []byte) (string, error)
}

// APIConfig bounds request parsing.
type APIConfig struct {
	// MaxUploadBytes caps the multipart form size
	MaxUploadBytes int64

	// MaxConcepts caps the concept_count form value
	MaxConcepts int
}

// DefaultAPIConfig returns the standard request limits.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		MaxUploadBytes: 32 << 20,
		MaxConcepts:    4,
	}
}

// VisualizationAPI exposes the pipeline over HTTP.
type VisualizationAPI struct {
	runner PipelineRunner
	store  RecordStore
	briefs BriefExtractor
	config APIConfig
	logger *logging.Logger
}

// NewVisualizationAPI creates the API. briefs may be nil, in which case
// uploaded brief PDFs are ignored.
func NewVisualizationAPI(runner PipelineRunner, store RecordStore, briefs BriefExtractor, config APIConfig, logger *logging.Logger) *VisualizationAPI {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultAPIConfig().MaxUploadBytes
	}
	if config.MaxConcepts <= 0 {
		config.MaxConcepts = DefaultAPIConfig().MaxConcepts
	}
	return &VisualizationAPI{
		runner: runner,
		store:  store,
		briefs: briefs,
		config: config,
		logger: logger.Named("api"),
	}
}

// RegisterRoutes attaches all API routes to the mux.
func (api *VisualizationAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/visualizations", api.HandleCollection)
	mux.HandleFunc("/api/visualizations/", api.HandleItem)
	mux.HandleFunc("/api/share/", api.HandleShare)
}

// HandleCollection routes requests to the collection path.
func (api *VisualizationAPI) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.handleCreate(w, r)
	default:
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// HandleItem routes requests addressing a single visualization.
func (api *VisualizationAPI) HandleItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		api.handleGet(w, r)
	case http.MethodPatch:
		api.handleUpdate(w, r)
	default:
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// errorResponse is the JSON error body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (api *VisualizationAPI) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error("failed to encode response", logging.StageField("api"))
	}
}

func (api *VisualizationAPI) writeError(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, errorResponse{Error: message})
}

// writePipelineError maps a pipeline error to an HTTP status and a JSON
// body carrying both the stable error code and the human-readable
// message.
func (api *VisualizationAPI) writePipelineError(w http.ResponseWriter, err error) {
	code := core.ErrorCode(err)
	message := err.Error()
	if pe, ok := core.IsPipelineError(err); ok {
		message = pe.Message
	}
	api.writeJSON(w, statusForCode(code), errorResponse{Error: message, Code: code})
}

// statusForCode maps pipeline error codes to HTTP statuses. Upstream
// generation failure is a bad gateway rather than an internal error
// because the fault lies with the image provider, not this service.
func statusForCode(code string) int {
	switch code {
	case core.ErrCodeInvalidImage:
		return http.StatusBadRequest
	case core.ErrCodeGenerationFailed:
		return http.StatusBadGateway
	case core.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case core.ErrCodeStorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeLookupError maps repository lookup errors.
func (api *VisualizationAPI) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		api.writeError(w, http.StatusNotFound, "visualization not found")
		return
	}
	api.writeError(w, http.StatusInternalServerError, "lookup failed")
}
