package model

import "time"

// UsageAction tags an audit record.
type UsageAction string

const (
	ActionUpload            UsageAction = "upload"
	ActionAnalysisCompleted UsageAction = "analysis_completed"
)

// UsageLog is an append-only audit record. The pipeline only ever writes
// these; nothing in this codebase reads them back.
type UsageLog struct {
	ID        int64                  `json:"id"`
	UserID    string                 `json:"userId"`
	Action    UsageAction            `json:"action"`
	Details   map[string]interface{} `json:"details"`
	CreatedAt time.Time              `json:"createdAt"`
}
