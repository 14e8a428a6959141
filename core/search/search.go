package search

import (
	"context"
	"errors"
	"fmt"

	"musaix/logger"
	"musaix/model"
	"musaix/repository"
)

const (
	// DefaultSimilarityThreshold is the similarity floor applied when the
	// caller does not supply one.
	DefaultSimilarityThreshold = 0.78
	// DefaultMatchCount bounds the result set when the caller does not
	// supply a limit.
	DefaultMatchCount = 10
)

var (
	// ErrInvalidEmbedding rejects query vectors that are not exactly 1536
	// components long, before any query is issued.
	ErrInvalidEmbedding = errors.New("invalid embedding vector provided")
	// ErrSearchFailed hides storage-level detail from callers.
	ErrSearchFailed = errors.New("could not perform similarity search")
)

// Service runs nearest-neighbor lookups over stored embeddings.
type Service struct {
	analyses repository.AnalysisRepository
}

// NewService creates a search Service.
func NewService(analyses repository.AnalysisRepository) *Service {
	return &Service{analyses: analyses}
}

// FindSimilar returns distance-ranked matches for the embedding. The caller
// expresses a *similarity* threshold in [0,1]; the store operates on cosine
// *distance*, so the threshold is inverted before querying. Returned rows
// carry raw distance; display code converts via (1 - distance) * 100.
func (s *Service) FindSimilar(ctx context.Context, embedding []float32, similarityThreshold float64, matchCount int) ([]model.SimilarAudioFile, error) {
	if len(embedding) != model.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d components, want %d",
			ErrInvalidEmbedding, len(embedding), model.EmbeddingDim)
	}

	if similarityThreshold <= 0 || similarityThreshold > 1 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	if matchCount <= 0 {
		matchCount = DefaultMatchCount
	}

	distanceThreshold := 1 - similarityThreshold

	matches, err := s.analyses.MatchAudioFiles(ctx, embedding, distanceThreshold, matchCount)
	if err != nil {
		logger.Error("Similarity search failed", logger.ErrorField(err))
		return nil, ErrSearchFailed
	}
	return matches, nil
}
