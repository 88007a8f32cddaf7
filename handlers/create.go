package handlers

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"renovisio_backend/brief"
	"renovisio_backend/pipeline"
)

// createResponse is the JSON body returned by a successful generation
// request.
type createResponse struct {
	ID               string            `json:"id"`
	ShareToken       string            `json:"share_token"`
	OriginalImageURL string            `json:"original_image_url"`
	RoomType         string            `json:"room_type"`
	Style            string            `json:"style"`
	Constraints      string            `json:"constraints,omitempty"`
	Concepts         []conceptResponse `json:"concepts"`
	TotalLatencyMS   int64             `json:"total_latency_ms"`
	CreatedAt        string            `json:"created_at"`
}

type conceptResponse struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description,omitempty"`
}

// handleCreate accepts a multipart form with the source photo and the
// generation parameters, runs the pipeline, and returns the persisted
// visualization.
//
// Form fields: image (file, required), room_type, style, constraints,
// concept_count, mode, conversation, device_info, brief (PDF file,
// optional).
func (api *VisualizationAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(api.config.MaxUploadBytes); err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	imageData, err := readFormFile(r, "image")
	if err != nil {
		api.writeError(w, http.StatusBadRequest, "missing or unreadable image file")
		return
	}

	conceptCount := api.config.MaxConcepts
	if raw := r.FormValue("concept_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			api.writeError(w, http.StatusBadRequest, "concept_count must be a positive integer")
			return
		}
		conceptCount = n
	}

	constraints := r.FormValue("constraints")
	if text := api.extractBrief(r); text != "" {
		constraints = brief.FoldIntoConstraints(constraints, text)
	}

	req := pipeline.GenerationRequest{
		ImageData:    imageData,
		RoomType:     r.FormValue("room_type"),
		Style:        r.FormValue("style"),
		Constraints:  constraints,
		ConceptCount: conceptCount,
		Mode:         mode(r.FormValue("mode")),
		Conversation: r.FormValue("conversation"),
		DeviceInfo:   deviceInfo(r),
	}

	record, err := api.runner.Generate(r.Context(), req)
	if err != nil {
		api.writePipelineError(w, err)
		return
	}

	api.writeJSON(w, http.StatusCreated, toCreateResponse(record))
}

// extractBrief reads an optional design-brief PDF from the form. A
// malformed brief is logged and ignored: it must never block the
// generation it accompanies.
func (api *VisualizationAPI) extractBrief(r *http.Request) string {
	if api.briefs == nil {
		return ""
	}
	data, err := readFormFile(r, "brief")
	if err != nil || len(data) == 0 {
		return ""
	}
	text, err := api.briefs.ExtractText(data)
	if err != nil {
		api.logger.Warn("discarding unreadable design brief", zap.Error(err))
		return ""
	}
	return text
}

// deviceInfo prefers the explicit form field, falling back to the
// request's user agent.
func deviceInfo(r *http.Request) string {
	if v := r.FormValue("device_info"); v != "" {
		return v
	}
	return r.UserAgent()
}

// mode normalizes the request mode field, defaulting to quick.
func mode(raw string) string {
	switch raw {
	case pipeline.ModeQuick, pipeline.ModeConversation, pipeline.ModeStreamlined:
		return raw
	default:
		return pipeline.ModeQuick
	}
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func toCreateResponse(record *pipeline.VisualizationRecord) createResponse {
	resp := createResponse{
		ID:               record.ID,
		ShareToken:       record.ShareToken,
		OriginalImageURL: record.OriginalImage.URL(),
		RoomType:         record.RoomType,
		Style:            record.Style,
		Constraints:      record.Constraints,
		Concepts:         make([]conceptResponse, 0, len(record.Concepts)),
		TotalLatencyMS:   record.TotalLatency.Milliseconds(),
		CreatedAt:        record.CreatedAt.Format(timeLayout),
	}
	for _, c := range record.Concepts {
		resp.Concepts = append(resp.Concepts, conceptResponse{
			ID:          c.ID,
			Index:       c.Index,
			ImageURL:    c.Image.URL(),
			Description: c.Description,
		})
	}
	return resp
}
