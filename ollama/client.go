package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.1:latest"
)

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// StreamCallback receives each content fragment of a streamed chat reply.
type StreamCallback func(chunk string) error

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		baseURL: baseURL,
	}, nil
}

func boolPtr(b bool) *bool { return &b }

// Chat streams a chat reply, calling callback for every non-empty fragment.
func (c *Client) Chat(ctx context.Context, messages []api.Message, options map[string]any, callback StreamCallback) error {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Options:  options,
		Stream:   boolPtr(true),
	}

	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if callback == nil || resp.Message.Content == "" {
			return nil
		}
		return callback(resp.Message.Content)
	})
}

// Generate sends a non-streaming chat request and returns the whole reply
// with the number of prompt tokens the server evaluated.
func (c *Client) Generate(ctx context.Context, messages []api.Message, options map[string]any) (string, int, error) {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Options:  options,
		Stream:   boolPtr(false),
	}

	var sb strings.Builder
	promptTokens := 0
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		if resp.Done {
			promptTokens = resp.PromptEvalCount
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return sb.String(), promptTokens, nil
}

// Embed returns one vector per input text using the given embedding model.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model must not be empty")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed with %s: %w", model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding model %s returned %d vectors for %d inputs", model, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// ErrModelNotFound is returned by ValidateModel for unknown models.
var ErrModelNotFound = errors.New("model not found")

// ValidateModel checks that the Ollama server has the named model.
func (c *Client) ValidateModel(ctx context.Context, name string) error {
	_, err := c.client.Show(ctx, &api.ShowRequest{Model: name})
	if err == nil {
		return nil
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return fmt.Errorf("failed to look up model %s: %w", name, err)
}

type ModelInfo struct {
	Name string
	Size int64
}

func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = ModelInfo{Name: m.Name, Size: m.Size}
	}
	return models, nil
}

func (c *Client) SetModel(model string) {
	c.model = model
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}
