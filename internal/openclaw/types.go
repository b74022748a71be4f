package openclaw

import (
	"time"

	"github.com/grixate/missioncontrol/internal/cron"
)

type Session struct {
	Key          string    `json:"key"`
	AgentID      string    `json:"agentId"`
	Kind         string    `json:"kind,omitempty"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	TotalTokens  int64     `json:"totalTokens"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Cost         float64   `json:"cost"`
}

type CronJob struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	AgentID    string        `json:"agentId,omitempty"`
	Enabled    bool          `json:"enabled"`
	Schedule   cron.Schedule `json:"schedule"`
	NextRun    *time.Time    `json:"nextRun,omitempty"`
	LastRun    *time.Time    `json:"lastRun,omitempty"`
	LastStatus string        `json:"lastStatus,omitempty"`
}

type Agent struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Workspace    string     `json:"workspace,omitempty"`
	Model        string     `json:"model,omitempty"`
	IsDefault    bool       `json:"isDefault"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// Wire shapes as printed by `openclaw ... --json`. Timestamps are epoch ms.

type rawSession struct {
	Key          string `json:"key"`
	Kind         string `json:"kind"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"inputTokens"`
	OutputTokens int64  `json:"outputTokens"`
	TotalTokens  int64  `json:"totalTokens"`
	UpdatedAt    int64  `json:"updatedAt"`
}

type rawCronJob struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AgentID  string `json:"agentId"`
	Enabled  bool   `json:"enabled"`
	Schedule struct {
		Kind    string `json:"kind"`
		Expr    string `json:"expr"`
		EveryMS int64  `json:"everyMs"`
		AtMS    int64  `json:"atMs"`
		TZ      string `json:"tz"`
	} `json:"schedule"`
	State struct {
		NextRunAtMS int64  `json:"nextRunAtMs"`
		LastRunAtMS int64  `json:"lastRunAtMs"`
		LastStatus  string `json:"lastStatus"`
	} `json:"state"`
}

type rawAgent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
	Model     string `json:"model"`
	IsDefault bool   `json:"isDefault"`
}

func fromMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
