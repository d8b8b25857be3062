package provider

import (
	"fmt"

	"mentor/model"
)

// NewProvider creates a provider based on configuration.
//
// Supported provider types:
//   - ProviderTypeOllama: local Ollama server
//   - ProviderTypeOpenAI: OpenAI API
//   - ProviderTypeOpenRouter: OpenRouter (OpenAI-compatible)
//   - ProviderTypeMaritalk: Maritaca (OpenAI-compatible)
//   - ProviderTypeAnthropic: Anthropic API
//
// Returns an error if the type is unknown or the provider-specific
// constructor fails. A missing API key surfaces as model.ErrConfiguration.
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg)
	case ProviderTypeOpenRouter:
		return NewOpenRouterProvider(cfg)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg)
	case ProviderTypeMaritalk:
		return NewMaritalkProvider(cfg)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg)
	default:
		return nil, &model.ConfigError{Reason: fmt.Sprintf("unknown provider type: %s", cfg.Type)}
	}
}

// MapProviderIDToType converts a config provider ID to a ProviderType.
// Unknown IDs pass through unchanged and are rejected by NewProvider.
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "maritalk", "maritaca":
		return ProviderTypeMaritalk
	case "anthropic", "claude":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}

// RequiresAPIKey reports whether providers of type t need an LLM API key.
func RequiresAPIKey(t ProviderType) bool {
	return t != ProviderTypeOllama
}

// Factory builds a provider for one turn from the session's LLM key.
type Factory func(apiKey string) (model.Provider, error)

// NewFactory returns a Factory that fills base into a fresh Config on every
// call, so a session key change takes effect on the next turn.
func NewFactory(base Config) Factory {
	return func(apiKey string) (model.Provider, error) {
		cfg := base
		cfg.APIKey = apiKey
		return NewProvider(cfg)
	}
}
