// Package testutil provides test doubles for model.Provider.
package testutil

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"

	"mentor/model"
)

// MockProvider implements model.Provider for testing. Each call records the
// messages it was given; behaviour comes from the configurable funcs.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []model.Message) (string, error)
	StreamFunc   func(ctx context.Context, messages []model.Message) iter.Seq2[string, error]
	PingFunc     func(ctx context.Context) error

	mu            sync.Mutex
	completeCalls [][]model.Message
	streamCalls   [][]model.Message
	currentModel  string
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider(modelName string) *MockProvider {
	m := &MockProvider{currentModel: modelName}
	m.CompleteFunc = func(ctx context.Context, messages []model.Message) (string, error) {
		return "Mock response", nil
	}
	m.StreamFunc = func(ctx context.Context, messages []model.Message) iter.Seq2[string, error] {
		return Fragments("Mock ", "response")
	}
	m.PingFunc = func(ctx context.Context) error { return nil }
	return m
}

func (m *MockProvider) Complete(ctx context.Context, messages []model.Message) (string, error) {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, slices.Clone(messages))
	m.mu.Unlock()
	return m.CompleteFunc(ctx, messages)
}

func (m *MockProvider) Stream(ctx context.Context, messages []model.Message) iter.Seq2[string, error] {
	m.mu.Lock()
	m.streamCalls = append(m.streamCalls, slices.Clone(messages))
	m.mu.Unlock()
	return m.StreamFunc(ctx, messages)
}

func (m *MockProvider) GetModel() string {
	return m.currentModel
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// CompleteCalls returns the message lists passed to Complete, in order.
func (m *MockProvider) CompleteCalls() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.completeCalls)
}

// StreamCalls returns the message lists passed to Stream, in order.
func (m *MockProvider) StreamCalls() [][]model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.streamCalls)
}

// Fragments returns a stream that yields each part in order.
func Fragments(parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// FailingStream yields parts and then err.
func FailingStream(err error, parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
		yield("", err)
	}
}

// Recorder is a model.Display that keeps every fragment it receives.
type Recorder struct {
	mu     sync.Mutex
	Tokens []string
}

func (r *Recorder) AppendToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tokens = append(r.Tokens, token)
}

// Text returns the concatenation of every fragment received.
func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.Tokens, "")
}
