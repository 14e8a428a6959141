package server

import (
	"encoding/json"
	"net/http"

	"musaix/logger"
	"musaix/model"
)

// StorageEventHandler converts an object-created storage event into pending
// pipeline state. Events for buckets other than the audio bucket are
// acknowledged without any writes.
func (h *APIHandler) StorageEventHandler(w http.ResponseWriter, r *http.Request) {
	var event model.StorageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.ingest.ProcessStorageEvent(r.Context(), &event)
	if err != nil {
		logger.Error("Failed to process storage event",
			logger.String("object", event.Record.Name),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create audio file record")
		return
	}

	if result.Skipped {
		writeJSON(w, http.StatusOK, map[string]string{"message": result.Message})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"analysisId":  result.AnalysisID,
		"audioFileId": result.AudioFileID,
	})
}
