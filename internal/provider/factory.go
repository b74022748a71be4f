package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/grixate/missioncontrol/internal/config"
)

// Router picks a client for a catalog model id by its provider prefix.
// Models without a directly configured provider go through OpenRouter when
// it has a key.
type Router struct {
	cfg    config.ProvidersConfig
	client *http.Client
}

func FromConfig(cfg config.ProvidersConfig, client *http.Client) *Router {
	if client == nil {
		client = http.DefaultClient
	}
	return &Router{cfg: cfg, client: client}
}

// Resolve returns the client and the model name to send upstream.
func (r *Router) Resolve(modelID string) (Client, string, error) {
	prefix, name, ok := strings.Cut(modelID, "/")
	if !ok {
		prefix, name = "", modelID
	}
	switch prefix {
	case "anthropic":
		if r.cfg.Anthropic.APIKey != "" {
			return NewAnthropicProvider(r.cfg.Anthropic.APIKey, r.cfg.Anthropic.APIBase, r.client), name, nil
		}
	case "openai":
		if r.cfg.OpenAI.APIKey != "" {
			return NewOpenAICompatProvider(r.cfg.OpenAI.APIKey, r.cfg.OpenAI.APIBase, r.client), name, nil
		}
	case "google":
		if r.cfg.Gemini.APIKey != "" {
			return NewOpenAICompatProvider(r.cfg.Gemini.APIKey, r.cfg.Gemini.APIBase, r.client), name, nil
		}
	}
	if r.cfg.OpenRouter.APIKey != "" {
		return NewOpenAICompatProvider(r.cfg.OpenRouter.APIKey, r.cfg.OpenRouter.APIBase, r.client), modelID, nil
	}
	if prefix == "" {
		prefix = "default"
	}
	return nil, "", fmt.Errorf("%w for provider %q", ErrNoAPIKey, prefix)
}

// Chat resolves req.Model and forwards the request.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	client, model, err := r.Resolve(req.Model)
	if err != nil {
		return ChatResponse{}, err
	}
	req.Model = model
	return client.Chat(ctx, req)
}
