package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"musaix/logger"

	"github.com/redis/go-redis/v9"
)

// DeadLetterKey is the Redis list holding failed analysis triggers.
const DeadLetterKey = "analysis:deadletter"

// deadLetterEntry is the stored form of a failed trigger.
type deadLetterEntry struct {
	StoragePath string    `json:"storagePath"`
	AnalysisID  string    `json:"analysisId"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failedAt"`
}

// RedisDeadLetter persists failed triggers to a Redis list so an operator
// (or a future re-drive job) can inspect and replay them.
type RedisDeadLetter struct {
	client *redis.Client
}

// NewRedisDeadLetter creates a RedisDeadLetter.
func NewRedisDeadLetter(client *redis.Client) *RedisDeadLetter {
	return &RedisDeadLetter{client: client}
}

// Record appends the failed job to the dead-letter list. Logging is the
// fallback when Redis itself is unavailable.
func (r *RedisDeadLetter) Record(ctx context.Context, job Job, cause error) {
	entry := deadLetterEntry{
		StoragePath: job.StoragePath,
		AnalysisID:  job.AnalysisID,
		FailedAt:    time.Now(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		logger.Error("Failed to encode dead-letter entry", logger.ErrorField(err))
		return
	}

	if err := r.client.LPush(ctx, DeadLetterKey, payload).Err(); err != nil {
		logger.Error("Failed to record dead-letter entry",
			logger.String("analysisId", job.AnalysisID),
			logger.ErrorField(err))
	}
}
