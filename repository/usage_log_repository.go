package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"musaix/db"
	"musaix/model"
)

// UsageLogRepository appends audit records. The pipeline never reads these
// back; analytics happens elsewhere.
type UsageLogRepository interface {
	Append(ctx context.Context, entry *model.UsageLog) error
}

// pgUsageLogRepository implements UsageLogRepository for PostgreSQL.
type pgUsageLogRepository struct {
	DB *sql.DB
}

// NewPgUsageLogRepository creates a new instance of pgUsageLogRepository.
func NewPgUsageLogRepository() UsageLogRepository {
	return &pgUsageLogRepository{DB: db.DB}
}

// Append inserts one usage log row.
func (r *pgUsageLogRepository) Append(ctx context.Context, entry *model.UsageLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode usage log details: %w", err)
	}

	var userID interface{}
	if entry.UserID != "" {
		userID = entry.UserID
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO usage_logs (user_id, action, details) VALUES ($1, $2, $3)`,
		userID, entry.Action, details)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}
