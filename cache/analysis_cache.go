package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"musaix/db"
	"musaix/logger"
	"musaix/model"

	"github.com/redis/go-redis/v9"
)

const (
	analysisKeyPrefix = "analysis:completed:"
	analysisTTL       = 30 * time.Minute
)

// AnalysisCache keeps completed analysis rows in Redis for read-through
// lookups. Pending and failed rows are never cached; pending ones still
// change and failed ones are rare enough to read from the store.
type AnalysisCache struct {
	client *redis.Client
}

// NewAnalysisCache creates an AnalysisCache over the global Redis client.
func NewAnalysisCache() *AnalysisCache {
	return &AnalysisCache{client: db.RedisClient}
}

func analysisKey(id string) string {
	return analysisKeyPrefix + id
}

// SetCompleted stores a completed analysis row. Best-effort: cache failures
// are logged and swallowed.
func (c *AnalysisCache) SetCompleted(ctx context.Context, analysis *model.AudioAnalysis) {
	if c.client == nil || analysis.ProcessingStatus != model.StatusCompleted {
		return
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		logger.Warn("Failed to encode analysis for cache", logger.ErrorField(err))
		return
	}

	if err := c.client.Set(ctx, analysisKey(analysis.ID), payload, analysisTTL).Err(); err != nil {
		logger.Warn("Failed to cache analysis",
			logger.String("analysisId", analysis.ID),
			logger.ErrorField(err))
	}
}

// GetCompleted returns a cached completed row, or (nil, nil) on a miss.
func (c *AnalysisCache) GetCompleted(ctx context.Context, id string) (*model.AudioAnalysis, error) {
	if c.client == nil {
		return nil, nil
	}

	payload, err := c.client.Get(ctx, analysisKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read analysis cache: %w", err)
	}

	analysis := &model.AudioAnalysis{}
	if err := json.Unmarshal(payload, analysis); err != nil {
		return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
	}
	return analysis, nil
}
