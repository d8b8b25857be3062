// Package provider implements model.Provider for the completion endpoints
// the mentor can talk to.
//
// Three wire protocols are supported:
//   - OpenAI chat completions (OpenAI, OpenRouter, Maritaca and any other
//     compatible endpoint)
//   - Anthropic messages
//   - Ollama chat
//
// All type conversions between model.Message and the SDK message types live
// in conversions.go. Upstream HTTP failures are reported as
// *model.ProviderError so callers can test them with errors.Is against
// model.ErrAuthentication and model.ErrUpstream.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:        provider.ProviderTypeOpenAI,
//	    APIKey:      key,
//	    Model:       "gpt-4o-mini",
//	    Temperature: 0.8,
//	})
//	if err != nil {
//	    // handle error
//	}
//	reply, err := p.Complete(ctx, messages)
package provider

import "mentor/model"

// Note: the Provider interface lives in the model package (model/provider.go)
// so the router can depend on it without importing this package.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeMaritalk   ProviderType = "maritalk"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string

	Temperature float64
	MaxTokens   int

	// Usage, when set, is told how many input tokens each Complete call
	// cost according to the upstream API.
	Usage model.UsageRecorder
}

// sampling carries the generation options shared by every provider.
type sampling struct {
	temperature float64
	maxTokens   int
	usage       model.UsageRecorder
}

func (c Config) sampling() sampling {
	return sampling{temperature: c.Temperature, maxTokens: c.MaxTokens, usage: c.Usage}
}

func (s sampling) record(messages []model.Message, inputTokens int) {
	if s.usage != nil && inputTokens > 0 {
		s.usage.RecordUsage(messages, inputTokens)
	}
}
