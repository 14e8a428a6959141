package analysis

import (
	"context"
	"fmt"

	"musaix/logger"
	"musaix/model"
	"musaix/repository"

	"github.com/google/uuid"
)

// TriggerQueue accepts analysis trigger jobs. Enqueue must never block and
// never surface failure to the caller; the dispatcher owns retries.
type TriggerQueue interface {
	Enqueue(storagePath, analysisID string)
}

// IngestResult is the outcome of processing one storage event.
type IngestResult struct {
	Skipped     bool   `json:"-"`
	Message     string `json:"message,omitempty"`
	AnalysisID  string `json:"analysisId,omitempty"`
	AudioFileID string `json:"audioFileId,omitempty"`
}

// IngestService turns storage object-created events into durable pipeline
// state and kicks off out-of-band analysis.
type IngestService struct {
	analyses repository.AnalysisRepository
	usage    repository.UsageLogRepository
	queue    TriggerQueue
	bucket   string
}

// NewIngestService creates a new IngestService watching the given bucket.
func NewIngestService(analyses repository.AnalysisRepository, usage repository.UsageLogRepository, queue TriggerQueue, bucket string) *IngestService {
	return &IngestService{
		analyses: analyses,
		usage:    usage,
		queue:    queue,
		bucket:   bucket,
	}
}

// ProcessStorageEvent handles one object-created event. Events for other
// buckets are skipped without error. On success both the audio file row and
// its pending analysis row exist (created together in one transaction), the
// analysis trigger is queued, and an upload usage log is appended
// best-effort.
func (s *IngestService) ProcessStorageEvent(ctx context.Context, event *model.StorageEvent) (*IngestResult, error) {
	record := event.Record
	if record.BucketID != s.bucket {
		return &IngestResult{Skipped: true, Message: "Not an audio file upload"}, nil
	}

	info := EstimateStreamInfo(record.Metadata.MimeType)

	file := &model.AudioFile{
		ID:          uuid.NewString(),
		UserID:      record.Owner,
		Filename:    record.Name,
		StoragePath: record.Name,
		FileSize:    record.Metadata.Size,
		Format:      record.Metadata.MimeType,
		SampleRate:  info.SampleRate,
		Channels:    info.Channels,
		Bitrate:     info.Bitrate,
	}
	pending := &model.AudioAnalysis{ID: uuid.NewString()}

	if err := s.analyses.CreateFileWithAnalysis(ctx, file, pending); err != nil {
		return nil, fmt.Errorf("failed to create audio file and analysis records: %w", err)
	}

	// Fire-and-forget: the dispatcher retries and dead-letters on its own;
	// nothing downstream of this point fails the storage event.
	s.queue.Enqueue(file.StoragePath, pending.ID)

	if err := s.usage.Append(ctx, &model.UsageLog{
		UserID: record.Owner,
		Action: model.ActionUpload,
		Details: map[string]interface{}{
			"filename":    record.Name,
			"file_size":   record.Metadata.Size,
			"analysis_id": pending.ID,
		},
	}); err != nil {
		logger.Warn("Failed to append upload usage log",
			logger.String("analysisId", pending.ID),
			logger.ErrorField(err))
	}

	logger.Info("Audio upload ingested",
		logger.String("audioFileId", file.ID),
		logger.String("analysisId", pending.ID),
		logger.String("filename", record.Name))

	return &IngestResult{AnalysisID: pending.ID, AudioFileID: file.ID}, nil
}
