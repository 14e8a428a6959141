package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"musaix/core/search"
)

// SearchRequest asks for files similar to the given embedding. The
// threshold is a *similarity* in [0,1]; the handler's service inverts it to
// the distance the store operates on.
type SearchRequest struct {
	Embedding      []float32 `json:"embedding"`
	MatchThreshold float64   `json:"matchThreshold"`
	MatchCount     int       `json:"matchCount"`
}

// SimilaritySearchHandler runs a bounded nearest-neighbor lookup.
func (h *APIHandler) SimilaritySearchHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	matches, err := h.search.FindSimilar(r.Context(), req.Embedding, req.MatchThreshold, req.MatchCount)
	if err != nil {
		if errors.Is(err, search.ErrInvalidEmbedding) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Could not perform similarity search")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
	})
}
