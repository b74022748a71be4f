package playground

import (
	"context"
	"time"

	"github.com/grixate/missioncontrol/internal/apperr"
)

var ErrNotFound = apperr.NotFound("experiment not found")

type RunResult struct {
	Model        string  `json:"model"`
	Output       string  `json:"output"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Cost         float64 `json:"cost"`
	LatencyMS    int64   `json:"latencyMs"`
	Error        string  `json:"error,omitempty"`
}

type Experiment struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Prompt       string      `json:"prompt"`
	SystemPrompt string      `json:"systemPrompt,omitempty"`
	Models       []string    `json:"models"`
	Results      []RunResult `json:"results"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type ExperimentInput struct {
	Name         string   `json:"name"`
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"systemPrompt"`
	Models       []string `json:"models"`
}

type RunRequest struct {
	// ExperimentID, when set, stores the results on that experiment.
	ExperimentID string   `json:"experimentId,omitempty"`
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Models       []string `json:"models"`
	MaxTokens    int      `json:"maxTokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Store persists experiments. SaveExperiment inserts or replaces by id and
// DeleteExperiment reports whether a row existed.
type Store interface {
	ListExperiments(ctx context.Context) ([]Experiment, error)
	GetExperiment(ctx context.Context, id string) (Experiment, error)
	SaveExperiment(ctx context.Context, e Experiment) error
	DeleteExperiment(ctx context.Context, id string) (bool, error)
}
