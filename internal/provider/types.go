package provider

import (
	"context"
	"errors"
)

var ErrNoAPIKey = errors.New("no API key configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Client sends a single non-streaming chat completion.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
