package server

import (
	"errors"
	"io"
	"net/http"

	"musaix/core/upload"
	"musaix/logger"
	"musaix/model"
	"musaix/storage"

	"github.com/google/uuid"
)

// progressReader reports transfer progress into the upload queue as the
// object store consumes the file.
type progressReader struct {
	r       io.Reader
	total   int64
	read    int64
	userID  string
	id      string
	uploads *upload.Manager
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		p.uploads.SetProgress(p.userID, p.id, int(p.read*100/p.total))
	}
	return n, err
}

// UploadAudioHandler handles direct audio uploads. Expected multipart form
// field: audioFile. The object lands in the audio bucket keyed by its
// filename (duplicates rejected), then flows through the same ingest path
// as a storage event.
func (h *APIHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil { // 64MB max memory
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("audioFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing 'audioFile' in form")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	recordID := h.uploads.Add(userID, header.Filename, header.Size)
	h.uploads.SetProgress(userID, recordID, 0)

	reader := &progressReader{
		r:       file,
		total:   header.Size,
		userID:  userID,
		id:      recordID,
		uploads: h.uploads,
	}

	_, err = storage.UploadAudio(r.Context(), h.cfg.AudioBucket, header.Filename, reader, header.Size, contentType)
	if err != nil {
		h.uploads.SetStatus(userID, recordID, upload.StatusError, err.Error())
		if errors.Is(err, storage.ErrObjectExists) {
			writeError(w, http.StatusConflict, "A file with this name already exists")
			return
		}
		logger.Error("Failed to upload audio file",
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	event := &model.StorageEvent{
		Type:  "INSERT",
		Table: "objects",
		Record: model.StorageRecord{
			ID:       uuid.NewString(),
			Name:     header.Filename,
			Owner:    userID,
			BucketID: h.cfg.AudioBucket,
			Metadata: model.StorageMetadata{
				MimeType: contentType,
				Size:     header.Size,
			},
		},
	}

	result, err := h.ingest.ProcessStorageEvent(r.Context(), event)
	if err != nil {
		h.uploads.SetStatus(userID, recordID, upload.StatusError, "Failed to create analysis records")
		logger.Error("Failed to ingest uploaded file",
			logger.String("filename", header.Filename),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to create audio file record")
		return
	}

	// Transfer done; downstream analysis is now in flight. Completion is
	// observed through the analysis subscription, not this queue.
	h.uploads.SetStatus(userID, recordID, upload.StatusProcessing, "")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"analysisId":  result.AnalysisID,
		"audioFileId": result.AudioFileID,
	})
}

// ListUploadsHandler returns the current user's upload queue.
func (h *APIHandler) ListUploadsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": h.uploads.Snapshot(userID),
	})
}

// ClearUploadsHandler drops finished entries from the upload queue.
func (h *APIHandler) ClearUploadsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	h.uploads.ClearFinished(userID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
