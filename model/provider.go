package model

import (
	"context"
	"iter"
)

// Provider abstracts a completion endpoint (OpenAI-compatible, Anthropic, Ollama)
// using provider-agnostic types from the model layer.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the router uses
// Provider without importing the provider package.
type Provider interface {
	// Complete sends messages and returns the whole reply in one piece.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream sends messages and yields the reply as text fragments in order.
	// The sequence is finite and can be ranged over once. A non-nil error is
	// yielded at most once and ends the sequence.
	Stream(ctx context.Context, messages []Message) iter.Seq2[string, error]

	// GetModel returns the model name used for API calls.
	GetModel() string

	// Ping checks if the provider is reachable and accepts the credentials.
	Ping(ctx context.Context) error
}

// Display receives streamed answer fragments as they arrive.
type Display interface {
	AppendToken(token string)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(token string)

func (f DisplayFunc) AppendToken(token string) { f(token) }

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// Collect drains a fragment stream, forwarding each fragment to display
// (which may be nil), and returns the concatenated text.
func Collect(stream iter.Seq2[string, error], display Display) (string, error) {
	var out []byte
	for fragment, err := range stream {
		if err != nil {
			return string(out), err
		}
		if fragment == "" {
			continue
		}
		out = append(out, fragment...)
		if display != nil {
			display.AppendToken(fragment)
		}
	}
	return string(out), nil
}
