package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"musaix/config"
	"musaix/core/analysis"
	"musaix/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventHandler(t *testing.T, analyses *stubAnalysisRepo, queue *stubQueue) *APIHandler {
	t.Helper()
	cfg := &config.Config{WebhookSecret: "hook-secret", AudioBucket: "audio-files"}
	files := &stubFileRepo{}
	usage := &stubUsageRepo{}
	ingest := analysis.NewIngestService(analyses, usage, queue, cfg.AudioBucket)
	results := analysis.NewResultService(analyses, files, usage, nil, nil)
	return NewAPIHandler(cfg, ingest, results, nil, nil, nil, analyses, files, nil, nil)
}

func postStorageEvent(h *APIHandler, event *model.StorageEvent) *httptest.ResponseRecorder {
	body, _ := json.Marshal(event)
	req := httptest.NewRequest(http.MethodPost, "/api/storage/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.StorageEventHandler(rec, req)
	return rec
}

func audioCreatedEvent(bucket string) *model.StorageEvent {
	return &model.StorageEvent{
		Type:  "INSERT",
		Table: "objects",
		Record: model.StorageRecord{
			ID:       "obj-1",
			Name:     "user-1/track.wav",
			Owner:    "user-1",
			BucketID: bucket,
			Metadata: model.StorageMetadata{
				MimeType: "audio/wav",
				Size:     9999999,
			},
		},
	}
}

func TestStorageEventSkipsOtherBuckets(t *testing.T) {
	analyses := newStubAnalysisRepo()
	queue := &stubQueue{}
	h := newEventHandler(t, analyses, queue)

	rec := postStorageEvent(h, audioCreatedEvent("avatars"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Not an audio file upload", resp["message"])
	assert.Empty(t, analyses.created)
	assert.Empty(t, queue.analysisIDs)
}

func TestStorageEventCreatesPendingPipeline(t *testing.T) {
	analyses := newStubAnalysisRepo()
	queue := &stubQueue{}
	h := newEventHandler(t, analyses, queue)

	rec := postStorageEvent(h, audioCreatedEvent("audio-files"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success     bool   `json:"success"`
		AnalysisID  string `json:"analysisId"`
		AudioFileID string `json:"audioFileId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.AnalysisID)
	require.NotEmpty(t, resp.AudioFileID)

	require.Len(t, analyses.created, 1)
	file := analyses.created[0]
	assert.Equal(t, "user-1", file.UserID)
	assert.Equal(t, 1411000, file.Bitrate)
	assert.Equal(t, 44100, file.SampleRate)
	assert.Equal(t, 2, file.Channels)

	row := analyses.byID[resp.AnalysisID]
	require.NotNil(t, row)
	assert.Equal(t, model.StatusPending, row.ProcessingStatus)
	assert.Equal(t, resp.AudioFileID, row.AudioFileID)

	require.Len(t, queue.analysisIDs, 1)
	assert.Equal(t, resp.AnalysisID, queue.analysisIDs[0])
	assert.Equal(t, "user-1/track.wav", queue.storagePaths[0])
}

func TestStorageEventCreateFailureIs500(t *testing.T) {
	analyses := newStubAnalysisRepo()
	analyses.createErr = errors.New("connection refused")
	queue := &stubQueue{}
	h := newEventHandler(t, analyses, queue)

	rec := postStorageEvent(h, audioCreatedEvent("audio-files"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to create audio file record", resp["error"])
	assert.Empty(t, queue.analysisIDs, "no trigger may be queued when the write fails")
}

func TestStorageEventBadBodyIs400(t *testing.T) {
	analyses := newStubAnalysisRepo()
	h := newEventHandler(t, analyses, &stubQueue{})

	req := httptest.NewRequest(http.MethodPost, "/api/storage/events", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.StorageEventHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
