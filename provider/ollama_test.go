package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
)

func newOllamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		enc := json.NewEncoder(w)

		if status != http.StatusOK {
			w.WriteHeader(status)
			enc.Encode(map[string]string{"error": "forbidden"})
			return
		}

		assert.Equal(t, 0.8, req.Options["temperature"])
		if req.Stream != nil && !*req.Stream {
			enc.Encode(api.ChatResponse{
				Message: api.Message{Role: "assistant", Content: "whole reply"},
				Done:    true,
				Metrics: api.Metrics{PromptEvalCount: 21},
			})
			return
		}
		for _, part := range []string{"Split ", "the ", "array"} {
			enc.Encode(api.ChatResponse{Message: api.Message{Role: "assistant", Content: part}})
		}
		enc.Encode(api.ChatResponse{Done: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProviderComplete(t *testing.T) {
	srv := newOllamaServer(t, http.StatusOK)
	usage := &usageSpy{}
	p, err := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "llama3.1", Temperature: 0.8, Usage: usage})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), conversation())
	require.NoError(t, err)
	assert.Equal(t, "whole reply", out)
	assert.Equal(t, 21, usage.tokens)
}

func TestOllamaProviderStream(t *testing.T) {
	srv := newOllamaServer(t, http.StatusOK)
	p, err := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "llama3.1", Temperature: 0.8})
	require.NoError(t, err)

	text, err := model.Collect(p.Stream(context.Background(), conversation()), nil)
	require.NoError(t, err)
	assert.Equal(t, "Split the array", text)
}

func TestOllamaProviderStreamStopsEarly(t *testing.T) {
	srv := newOllamaServer(t, http.StatusOK)
	p, err := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "llama3.1", Temperature: 0.8})
	require.NoError(t, err)

	var first string
	for part, err := range p.Stream(context.Background(), conversation()) {
		require.NoError(t, err)
		first = part
		break
	}
	assert.Equal(t, "Split ", first)
}

func TestOllamaProviderForbidden(t *testing.T) {
	srv := newOllamaServer(t, http.StatusForbidden)
	p, err := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "llama3.1", Temperature: 0.8})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), conversation())
	assert.ErrorIs(t, err, model.ErrAuthentication)
}
