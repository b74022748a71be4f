package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/config"
)

func TestRouterResolve(t *testing.T) {
	cfg := config.Default().Providers
	cfg.Anthropic.APIKey = "ak"
	cfg.Gemini.APIKey = "gk"

	client, model, err := FromConfig(cfg, nil).Resolve("anthropic/claude-opus-4-6")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicProvider{}, client)
	assert.Equal(t, "claude-opus-4-6", model)

	client, model, err = FromConfig(cfg, nil).Resolve("google/gemini-2.5-flash")
	require.NoError(t, err)
	compat := client.(*OpenAICompatProvider)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/openai", compat.baseURL)
	assert.Equal(t, "gemini-2.5-flash", model)

	_, _, err = FromConfig(cfg, nil).Resolve("openai/gpt-4o")
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func TestRouterFallsBackToOpenRouter(t *testing.T) {
	cfg := config.Default().Providers
	cfg.OpenRouter.APIKey = "or"

	client, model, err := FromConfig(cfg, nil).Resolve("openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "https://openrouter.ai/api/v1", client.(*OpenAICompatProvider).baseURL)
	assert.Equal(t, "openai/gpt-4o", model)
}
