package ai

import (
	"context"
	"strings"
)

// Settings selects and configures the completion providers.
type Settings struct {
	Provider      string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OllamaBaseURL string
	OllamaModel   string
}

// NewRegistryFromSettings registers the openai and ollama providers and makes
// s.Provider the default. A missing OpenAI key surfaces as ErrNotConfigured
// when the provider is first requested, not here.
func NewRegistryFromSettings(s Settings) *Registry {
	reg := NewRegistry()

	reg.Register("openai", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(model) == "" {
			model = s.OpenAIModel
		}
		return NewOpenAIProvider(s.OpenAIAPIKey, s.OpenAIBaseURL, model)
	})
	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(model) == "" {
			model = s.OllamaModel
		}
		return NewOllamaProvider(s.OllamaBaseURL, model), nil
	})

	name := normalize(s.Provider)
	if name == "" {
		name = "openai"
	}
	reg.SetDefault(name, "")
	return reg
}
