package handlers

import (
	"net/http"
	"strings"
	"time"

	"renovisio_backend/db"
)

const timeLayout = time.RFC3339

// visualizationResponse is the JSON body for lookup endpoints. Share
// lookups reuse the same shape minus the admin fields.
type visualizationResponse struct {
	ID                string            `json:"id"`
	ShareToken        string            `json:"share_token,omitempty"`
	OriginalImageURL  string            `json:"original_image_url"`
	RoomType          string            `json:"room_type"`
	Style             string            `json:"style"`
	Constraints       string            `json:"constraints,omitempty"`
	Concepts          []conceptResponse `json:"concepts"`
	Notes             string            `json:"notes,omitempty"`
	FeasibilityScore  *float64          `json:"feasibility_score,omitempty"`
	SelectedConceptID string            `json:"selected_concept_id,omitempty"`
	TotalLatencyMS    int64             `json:"total_latency_ms"`
	CreatedAt         string            `json:"created_at"`
}

// handleGet handles GET /api/visualizations/{id}.
func (api *VisualizationAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/visualizations/")
	if id == "" {
		api.writeError(w, http.StatusBadRequest, "missing visualization id")
		return
	}

	row, err := api.store.GetVisualization(r.Context(), id)
	if err != nil {
		api.writeLookupError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toVisualizationResponse(row, false))
}

// HandleShare handles GET /api/share/{token}. The response omits the
// share token and admin fields: a share link is read-only public access.
func (api *VisualizationAPI) HandleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := pathSuffix(r.URL.Path, "/api/share/")
	if token == "" {
		api.writeError(w, http.StatusBadRequest, "missing share token")
		return
	}

	row, err := api.store.GetVisualizationByShareToken(r.Context(), token)
	if err != nil {
		api.writeLookupError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toVisualizationResponse(row, true))
}

// pathSuffix returns the single path segment after the given prefix, or
// empty when the path has extra segments.
func pathSuffix(path, prefix string) string {
	suffix := strings.TrimPrefix(path, prefix)
	if suffix == path || suffix == "" || strings.Contains(suffix, "/") {
		return ""
	}
	return suffix
}

func toVisualizationResponse(row *db.VisualizationRow, shared bool) visualizationResponse {
	resp := visualizationResponse{
		ID:               row.ID,
		OriginalImageURL: row.OriginalImageURL,
		RoomType:         row.RoomType,
		Style:            row.Style,
		Constraints:      row.Constraints,
		Concepts:         make([]conceptResponse, 0, len(row.Concepts)),
		TotalLatencyMS:   row.TotalLatencyMS,
		CreatedAt:        row.CreatedAt.Format(timeLayout),
	}
	if !shared {
		resp.ShareToken = row.ShareToken
		resp.Notes = row.Notes
		resp.FeasibilityScore = row.FeasibilityScore
		resp.SelectedConceptID = row.SelectedConceptID
	}
	for _, c := range row.Concepts {
		resp.Concepts = append(resp.Concepts, conceptResponse{
			ID:          c.ID,
			Index:       c.Index,
			ImageURL:    c.ImageURL,
			Description: c.Description,
		})
	}
	return resp
}
