package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"mentor/config"
	"mentor/model"
	"mentor/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
//
// Ollama needs no API key; any key in Config is ignored.
type OllamaProvider struct {
	client *ollama.Client
	sampling
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - cfg.BaseURL: the Ollama server URL (default: "http://localhost:11434")
//   - cfg.Model: the model name (default: "llama3.1:latest")
//
// Returns an error if the base URL is invalid.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return NewOllamaProviderWithClient(client, cfg), nil
}

// NewOllamaProviderWithClient shares an existing client, typically the one
// that also serves embeddings.
func NewOllamaProviderWithClient(client *ollama.Client, cfg Config) *OllamaProvider {
	return &OllamaProvider{client: client, sampling: cfg.sampling()}
}

// Complete implements model.Provider.
func (p *OllamaProvider) Complete(ctx context.Context, messages []model.Message) (string, error) {
	reply, promptTokens, err := p.client.Generate(ctx, ConvertToOllamaMessages(messages), ollamaOptions(p.sampling))
	if err != nil {
		config.Debugf("[Provider] ollama completion failed: %v", err)
		return "", wrapUpstreamError(string(ProviderTypeOllama), err)
	}
	p.record(messages, promptTokens)
	return reply, nil
}

// errStopIteration aborts the client callback when the consumer stops early.
var errStopIteration = errors.New("stream consumer stopped")

// Stream implements model.Provider. The client delivers fragments through a
// callback on the caller's goroutine, so each one is yielded directly.
func (p *OllamaProvider) Stream(ctx context.Context, messages []model.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := p.client.Chat(ctx, ConvertToOllamaMessages(messages), ollamaOptions(p.sampling), func(chunk string) error {
			if !yield(chunk, nil) {
				return errStopIteration
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			config.Debugf("[Provider] ollama stream failed: %v", err)
			yield("", wrapUpstreamError(string(ProviderTypeOllama), err))
		}
	}
}

// ListModels is a direct passthrough to the underlying client.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

// Ping checks that the Ollama server is reachable.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return wrapUpstreamError(string(ProviderTypeOllama), err)
	}
	return nil
}
