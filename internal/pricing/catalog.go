package pricing

import "strings"

type ModelPricing struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Alias                 string  `json:"alias,omitempty"`
	InputPricePerMillion  float64 `json:"inputPricePerMillion"`
	OutputPricePerMillion float64 `json:"outputPricePerMillion"`
	ContextWindow         int     `json:"contextWindow"`
}

const (
	// DefaultModelID prices any model missing from the catalog.
	DefaultModelID = "anthropic/claude-sonnet-4-5"

	fallbackInputPrice  = 3.0
	fallbackOutputPrice = 15.0
)

var catalog = []ModelPricing{
	{ID: "anthropic/claude-opus-4-6", Name: "Claude Opus 4.6", Alias: "opus", InputPricePerMillion: 5, OutputPricePerMillion: 25, ContextWindow: 200_000},
	{ID: "anthropic/claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Alias: "sonnet", InputPricePerMillion: 3, OutputPricePerMillion: 15, ContextWindow: 200_000},
	{ID: "anthropic/claude-haiku-4-5", Name: "Claude Haiku 4.5", Alias: "haiku", InputPricePerMillion: 1, OutputPricePerMillion: 5, ContextWindow: 200_000},
	{ID: "openai/gpt-4o", Name: "GPT-4o", Alias: "gpt-4o", InputPricePerMillion: 2.5, OutputPricePerMillion: 10, ContextWindow: 128_000},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", Alias: "gpt-4o-mini", InputPricePerMillion: 0.15, OutputPricePerMillion: 0.6, ContextWindow: 128_000},
	{ID: "google/gemini-2.5-pro", Name: "Gemini 2.5 Pro", Alias: "gemini-pro", InputPricePerMillion: 1.25, OutputPricePerMillion: 10, ContextWindow: 1_000_000},
	{ID: "google/gemini-2.5-flash", Name: "Gemini 2.5 Flash", Alias: "gemini-flash", InputPricePerMillion: 0.3, OutputPricePerMillion: 2.5, ContextWindow: 1_000_000},
}

// Names the CLI reports that are not a catalog alias or a bare model name.
var extraAliases = map[string]string{
	"claude-opus-4.6":   "anthropic/claude-opus-4-6",
	"claude-sonnet-4.5": "anthropic/claude-sonnet-4-5",
	"claude-haiku-4.5":  "anthropic/claude-haiku-4-5",
	"claude-opus":       "anthropic/claude-opus-4-6",
	"claude-sonnet":     "anthropic/claude-sonnet-4-5",
	"claude-haiku":      "anthropic/claude-haiku-4-5",
	"gemini-2.5-pro":    "google/gemini-2.5-pro",
	"gemini-2.5-flash":  "google/gemini-2.5-flash",
}

var (
	byID    = map[string]ModelPricing{}
	lookups = map[string]string{}
)

func init() {
	for _, entry := range catalog {
		byID[entry.ID] = entry
		if entry.Alias != "" {
			lookups[entry.Alias] = entry.ID
		}
		if _, bare, ok := strings.Cut(entry.ID, "/"); ok {
			if _, taken := lookups[bare]; !taken {
				lookups[bare] = entry.ID
			}
		}
	}
	for name, id := range extraAliases {
		if _, taken := lookups[name]; !taken {
			lookups[name] = id
		}
	}
}

// Catalog returns a copy of the static price table.
func Catalog() []ModelPricing {
	out := make([]ModelPricing, len(catalog))
	copy(out, catalog)
	return out
}

// NormalizeModelID resolves aliases and provider-less names to a catalog id.
// Unknown ids are returned unchanged.
func NormalizeModelID(id string) string {
	if canonical, ok := lookups[id]; ok {
		return canonical
	}
	if canonical, ok := lookups[strings.ToLower(strings.TrimSpace(id))]; ok {
		return canonical
	}
	return id
}

// Lookup finds a model by id, alias or provider-less name.
func Lookup(id string) (ModelPricing, bool) {
	if entry, ok := byID[id]; ok {
		return entry, true
	}
	entry, ok := byID[NormalizeModelID(id)]
	return entry, ok
}
