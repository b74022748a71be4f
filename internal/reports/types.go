package reports

import (
	"errors"
	"time"

	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/usage"
)

const DefaultExpiresInDays = 30

var (
	// ErrNotFound covers unknown and expired tokens alike.
	ErrNotFound       = apperr.NotFound("report not found")
	ErrTokenCollision = errors.New("report token already exists")
)

type ActivitySummary struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"byType"`
	ByStatus    map[string]int `json:"byStatus"`
	SuccessRate float64        `json:"successRate"`
}

type DailyCost struct {
	Date   string  `json:"date"`
	Cost   float64 `json:"cost"`
	Tokens int64   `json:"tokens"`
}

type CostSummary struct {
	Total       float64            `json:"total"`
	TotalTokens int64              `json:"totalTokens"`
	ByModel     []usage.GroupTotal `json:"byModel"`
	Daily       []DailyCost        `json:"daily"`
}

// Payload is frozen at generation time and never updated.
type Payload struct {
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Activity    ActivitySummary `json:"activity"`
	Cost        CostSummary     `json:"cost"`
}

// Record is the persisted form. Payload is the serialized JSON blob.
type Record struct {
	ID        string
	Token     string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Saved struct {
	ReportID  string    `json:"reportId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Generated struct {
	Saved
	Summary Payload `json:"summary"`
}
