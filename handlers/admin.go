package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"renovisio_backend/db"
)

// updateRequest is the PATCH body for admin mutations. Each field is
// independent; absent fields are left untouched. The concept list and
// generated images themselves are immutable.
type updateRequest struct {
	Notes             *string  `json:"notes"`
	FeasibilityScore  *float64 `json:"feasibility_score"`
	SelectedConceptID *string  `json:"selected_concept_id"`
}

// handleUpdate handles PATCH /api/visualizations/{id}.
func (api *VisualizationAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/visualizations/")
	if id == "" {
		api.writeError(w, http.StatusBadRequest, "missing visualization id")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Notes == nil && req.FeasibilityScore == nil && req.SelectedConceptID == nil {
		api.writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	ctx := r.Context()
	if req.Notes != nil {
		if err := api.store.UpdateNotes(ctx, id, *req.Notes); err != nil {
			api.writeUpdateError(w, err)
			return
		}
	}
	if req.FeasibilityScore != nil {
		if err := api.store.UpdateFeasibilityScore(ctx, id, *req.FeasibilityScore); err != nil {
			api.writeUpdateError(w, err)
			return
		}
	}
	if req.SelectedConceptID != nil {
		if err := api.store.SelectConcept(ctx, id, *req.SelectedConceptID); err != nil {
			api.writeUpdateError(w, err)
			return
		}
	}

	row, err := api.store.GetVisualization(ctx, id)
	if err != nil {
		api.writeLookupError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toVisualizationResponse(row, false))
}

func (api *VisualizationAPI) writeUpdateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		api.writeError(w, http.StatusNotFound, "visualization not found")
	case errors.Is(err, db.ErrConceptMismatch):
		api.writeError(w, http.StatusUnprocessableEntity, "concept does not belong to this visualization")
	default:
		api.writeError(w, http.StatusBadRequest, err.Error())
	}
}
