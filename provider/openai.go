package provider

import (
	"context"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mentor/config"
	"mentor/model"
)

const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultMaritalkBaseURL   = "https://chat.maritaca.ai/api"

	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenRouterModel = "openai/gpt-4o-mini"
	defaultMaritalkModel   = "sabia-3"
)

// OpenAIProvider talks to any endpoint that speaks the OpenAI chat
// completions protocol. OpenRouter and Maritaca are reached this way with a
// different base URL.
type OpenAIProvider struct {
	client  openai.Client
	name    string
	model   string
	baseURL string
	sampling
}

// NewOpenAIProvider creates a provider for the OpenAI API.
//
// Parameters:
//   - cfg.BaseURL: API base URL (default: "https://api.openai.com/v1")
//   - cfg.APIKey: API key (required)
//   - cfg.Model: model to use (default: "gpt-4o-mini")
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	return newOpenAICompatible(string(ProviderTypeOpenAI), DefaultOpenAIBaseURL, defaultOpenAIModel, cfg)
}

// NewOpenRouterProvider creates a provider for OpenRouter, which exposes
// many upstream models behind an OpenAI-compatible API.
func NewOpenRouterProvider(cfg Config) (*OpenAIProvider, error) {
	return newOpenAICompatible(string(ProviderTypeOpenRouter), DefaultOpenRouterBaseURL, defaultOpenRouterModel, cfg)
}

// NewMaritalkProvider creates a provider for Maritaca's OpenAI-compatible
// endpoint.
func NewMaritalkProvider(cfg Config) (*OpenAIProvider, error) {
	return newOpenAICompatible(string(ProviderTypeMaritalk), DefaultMaritalkBaseURL, defaultMaritalkModel, cfg)
}

func newOpenAICompatible(name, defaultBaseURL, defaultModel string, cfg Config) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.APIKey == "" {
		return nil, &model.ConfigError{Missing: []string{"LLM API key"}}
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)

	return &OpenAIProvider{
		client:   client,
		name:     name,
		model:    modelName,
		baseURL:  baseURL,
		sampling: cfg.sampling(),
	}, nil
}

func (p *OpenAIProvider) params(messages []model.Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    ConvertToOpenAIMessages(messages),
		Model:       openai.ChatModel(p.model),
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	return params
}

// Complete implements model.Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []model.Message) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(messages))
	if err != nil {
		config.Debugf("[Provider] %s completion failed: %v", p.name, err)
		return "", wrapUpstreamError(p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", model.NewProviderError(p.name, 0, "response contained no choices", nil)
	}
	p.record(messages, int(resp.Usage.PromptTokens))
	return resp.Choices[0].Message.Content, nil
}

// Stream implements model.Provider.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := p.client.Chat.Completions.NewStreaming(ctx, p.params(messages))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			config.Debugf("[Provider] %s stream failed: %v", p.name, err)
			yield("", wrapUpstreamError(p.name, err))
		}
	}
}

func (p *OpenAIProvider) GetModel() string {
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

func (p *OpenAIProvider) BaseURL() string {
	return p.baseURL
}

// Ping validates the API key by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, wrapUpstreamError(p.name, err))
	}
	return nil
}
