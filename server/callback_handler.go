package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"musaix/core/analysis"
	"musaix/logger"
	"musaix/model"
	"musaix/repository"
)

// CallbackRequest is the result delivery from the external analysis worker.
type CallbackRequest struct {
	AnalysisID string                 `json:"analysisId"`
	Results    *model.AnalysisResults `json:"results"`
}

// AnalysisCallbackHandler receives terminal results from the analysis
// worker, authenticated by the shared webhook secret. No state changes on
// authentication or validation failure.
func (h *APIHandler) AnalysisCallbackHandler(w http.ResponseWriter, r *http.Request) {
	authorization := r.Header.Get("Authorization")
	if authorization != "Bearer "+h.cfg.WebhookSecret {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AnalysisID == "" || req.Results == nil {
		writeError(w, http.StatusBadRequest, "Missing analysisId or results")
		return
	}

	updated, err := h.results.Apply(r.Context(), req.AnalysisID, req.Results)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrInvalidEmbedding), errors.Is(err, analysis.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrAnalysisNotFound):
			writeError(w, http.StatusNotFound, "Unknown analysis id")
		default:
			logger.Error("Failed to save analysis results",
				logger.String("analysisId", req.AnalysisID),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to save analysis results")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    updated,
	})
}
