package server

import (
	"errors"
	"net/http"

	"musaix/logger"
	"musaix/model"
	"musaix/repository"

	"github.com/gorilla/mux"
)

// GetAnalysisHandler returns one analysis row joined with its audio file.
// Completed rows are served from the cache when possible.
func (h *APIHandler) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysisID := mux.Vars(r)["id"]

	if cached, err := h.cache.GetCompleted(r.Context(), analysisID); err != nil {
		logger.Warn("Analysis cache lookup failed",
			logger.String("analysisId", analysisID),
			logger.ErrorField(err))
	} else if cached != nil {
		file, err := h.files.GetByID(r.Context(), cached.AudioFileID)
		if err == nil && file != nil {
			writeJSON(w, http.StatusOK, &model.AnalysisWithFile{AudioAnalysis: *cached, AudioFile: file})
			return
		}
	}

	result, err := h.analyses.GetWithFile(r.Context(), analysisID)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		logger.Error("Failed to fetch analysis",
			logger.String("analysisId", analysisID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Could not fetch analysis data")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListAnalysesHandler returns the current user's completed analyses, newest
// first.
func (h *APIHandler) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	results, err := h.analyses.ListCompletedByUser(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to list analyses",
			logger.String("userId", userID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Could not fetch user analyses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": results})
}

// ListFilesHandler returns the current user's uploaded audio files.
func (h *APIHandler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	files, err := h.files.ListByUserID(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to list audio files",
			logger.String("userId", userID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Could not fetch audio files")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}
