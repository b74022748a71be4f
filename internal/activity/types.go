package activity

import (
	"context"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPending Status = "pending"
	StatusRunning Status = "running"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusError, StatusPending, StatusRunning:
		return true
	default:
		return false
	}
}

// Activity types logged by the dashboard itself.
const (
	TypeFileWrite    = "file_write"
	TypeFileDelete   = "file_delete"
	TypeFileRename   = "file_rename"
	TypeFileMkdir    = "file_mkdir"
	TypeFileUpload   = "file_upload"
	TypeConfigChange = "config_change"
	TypeSkillToggle  = "skill_toggle"
	TypeReport       = "report_generated"
	TypePlayground   = "playground_run"
	TypeWorkflow     = "workflow_change"
)

type Activity struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	DurationMS  *int64         `json:"duration_ms,omitempty"`
	TokensUsed  *int64         `json:"tokens_used,omitempty"`
	Agent       string         `json:"agent,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Filter struct {
	Type   string
	Status Status
	Agent  string
	Since  time.Time
	Until  time.Time
	// Limit <= 0 means unbounded at the store level.
	Limit int
}

func (f Filter) Match(a Activity) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Agent != "" && a.Agent != f.Agent {
		return false
	}
	if !f.Since.IsZero() && a.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && a.Timestamp.After(f.Until) {
		return false
	}
	return true
}

type Stats struct {
	Total         int            `json:"total"`
	ByType        map[string]int `json:"byType"`
	ByStatus      map[string]int `json:"byStatus"`
	SuccessRate   float64        `json:"successRate"`
	AvgDurationMS float64        `json:"avgDurationMs"`
	TotalTokens   int64          `json:"totalTokens"`
}

type HourCount struct {
	Day   string `json:"day"`
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
}

// Store persists the append-only activity log. ListActivities returns newest
// first.
type Store interface {
	AppendActivity(ctx context.Context, a Activity) (Activity, error)
	ListActivities(ctx context.Context, filter Filter) ([]Activity, error)
}
