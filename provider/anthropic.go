package provider

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mentor/config"
	"mentor/model"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	// Anthropic requires an explicit output limit on every request.
	defaultAnthropicMaxTokens = 4096
)

// AnthropicProvider implements model.Provider on the Anthropic messages API.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   anthropic.Model
	baseURL string
	sampling
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - cfg.BaseURL: API base URL (default: "https://api.anthropic.com")
//   - cfg.APIKey: API key (required)
//   - cfg.Model: model to use (default: "claude-sonnet-4-5-20250929")
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if cfg.APIKey == "" {
		return nil, &model.ConfigError{Missing: []string{"LLM API key"}}
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)

	s := cfg.sampling()
	if s.maxTokens <= 0 {
		s.maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicProvider{
		client:   &client,
		model:    anthropicModel,
		baseURL:  baseURL,
		sampling: s,
	}, nil
}

func (p *AnthropicProvider) params(messages []model.Message) anthropic.MessageNewParams {
	system, msgs := ConvertToAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(p.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}

// Complete implements model.Provider. Only text blocks of the reply are kept.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []model.Message) (string, error) {
	resp, err := p.client.Messages.New(ctx, p.params(messages))
	if err != nil {
		config.Debugf("[Provider] anthropic completion failed: %v", err)
		return "", wrapUpstreamError(string(ProviderTypeAnthropic), err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	p.record(messages, int(resp.Usage.InputTokens))
	return sb.String(), nil
}

// Stream implements model.Provider.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := p.client.Messages.NewStreaming(ctx, p.params(messages))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			if !yield(text.Text, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			config.Debugf("[Provider] anthropic stream failed: %v", err)
			yield("", wrapUpstreamError(string(ProviderTypeAnthropic), err))
		}
	}
}

func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

func (p *AnthropicProvider) BaseURL() string {
	return p.baseURL
}

// Ping makes a one-token request; Anthropic has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic ping failed: %w", wrapUpstreamError(string(ProviderTypeAnthropic), err))
	}
	return nil
}
