package analysis

import (
	"context"
	"errors"
	"fmt"

	"musaix/logger"
	"musaix/model"
	"musaix/repository"
)

var (
	// ErrInvalidEmbedding rejects embeddings that are not exactly 1536
	// components long, before anything reaches storage.
	ErrInvalidEmbedding = errors.New("embedding must have exactly 1536 components")
	// ErrInvalidStatus rejects results whose status is not terminal.
	ErrInvalidStatus = errors.New("processing status must be completed or failed")
)

// Publisher fans a row update out to live subscribers.
type Publisher interface {
	PublishAnalysis(analysis *model.AudioAnalysis)
}

// Cache stores completed analysis rows for read-through lookups.
type Cache interface {
	SetCompleted(ctx context.Context, analysis *model.AudioAnalysis)
}

// ResultService persists analysis results delivered by the external worker.
type ResultService struct {
	analyses  repository.AnalysisRepository
	files     repository.AudioFileRepository
	usage     repository.UsageLogRepository
	publisher Publisher
	cache     Cache
}

// NewResultService creates a new ResultService. publisher and cache may be
// nil; the corresponding side effects are then skipped.
func NewResultService(analyses repository.AnalysisRepository, files repository.AudioFileRepository, usage repository.UsageLogRepository, publisher Publisher, cache Cache) *ResultService {
	return &ResultService{
		analyses:  analyses,
		files:     files,
		usage:     usage,
		publisher: publisher,
		cache:     cache,
	}
}

// Apply validates and writes one result delivery. It is idempotent:
// redelivering the same payload leaves the row identical and appends no
// second usage log, because the audit entry is written only on the first
// transition out of pending.
func (s *ResultService) Apply(ctx context.Context, analysisID string, results *model.AnalysisResults) (*model.AudioAnalysis, error) {
	if !results.ProcessingStatus.IsTerminal() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, results.ProcessingStatus)
	}
	if len(results.Embedding) != 0 && len(results.Embedding) != model.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEmbedding, len(results.Embedding))
	}

	// Failure deliveries usually omit metadata and carry a bare error string.
	metadata := results.Metadata
	if metadata == nil {
		metadata = &model.AnalysisMetadata{Error: results.Error}
	}

	prevStatus, updated, err := s.analyses.UpdateResults(ctx, analysisID, results, metadata)
	if err != nil {
		return nil, err
	}

	if updated.ProcessingStatus == model.StatusCompleted && prevStatus == model.StatusPending {
		s.logCompletion(ctx, analysisID, updated)
	}

	if s.publisher != nil {
		s.publisher.PublishAnalysis(updated)
	}
	if s.cache != nil && updated.ProcessingStatus == model.StatusCompleted {
		s.cache.SetCompleted(ctx, updated)
	}

	logger.Info("Analysis results applied",
		logger.String("analysisId", analysisID),
		logger.String("status", string(updated.ProcessingStatus)))

	return updated, nil
}

// logCompletion appends the analysis_completed audit entry, best-effort.
func (s *ResultService) logCompletion(ctx context.Context, analysisID string, updated *model.AudioAnalysis) {
	var userID string
	if file, err := s.files.GetByID(ctx, updated.AudioFileID); err != nil {
		logger.Warn("Failed to resolve file owner for usage log",
			logger.String("audioFileId", updated.AudioFileID),
			logger.ErrorField(err))
	} else if file != nil {
		userID = file.UserID
	}

	if err := s.usage.Append(ctx, &model.UsageLog{
		UserID: userID,
		Action: model.ActionAnalysisCompleted,
		Details: map[string]interface{}{
			"analysis_id": analysisID,
			"tempo":       updated.Tempo,
			"beat_count":  updated.BeatCount,
		},
	}); err != nil {
		logger.Warn("Failed to append analysis_completed usage log",
			logger.String("analysisId", analysisID),
			logger.ErrorField(err))
	}
}
