package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
)

// newOpenAIServer serves /chat/completions in both modes and rejects any
// bearer token other than "good-key".
func newOpenAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
			return
		}

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 0.8, req["temperature"], 1e-9)

		if stream, _ := req["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, part := range []string{"Think ", "about ", "halves"} {
				fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":"whole reply"},"finish_reason":"stop"}],`+
			`"usage":{"prompt_tokens":11,"completion_tokens":2,"total_tokens":13}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	srv := newOpenAIServer(t)
	usage := &usageSpy{}
	p, err := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "good-key", Model: "m", Temperature: 0.8, Usage: usage})
	require.NoError(t, err)

	out, err := p.Complete(context.Background(), conversation())
	require.NoError(t, err)
	assert.Equal(t, "whole reply", out)
	assert.Equal(t, 11, usage.tokens)
	assert.Equal(t, 5, usage.messages)
}

func TestOpenAIStream(t *testing.T) {
	srv := newOpenAIServer(t)
	p, err := NewMaritalkProvider(Config{BaseURL: srv.URL, APIKey: "good-key", Temperature: 0.8})
	require.NoError(t, err)

	var parts []string
	for part, err := range p.Stream(context.Background(), conversation()) {
		require.NoError(t, err)
		parts = append(parts, part)
	}
	assert.Equal(t, []string{"Think ", "about ", "halves"}, parts)
}

func TestOpenAIRejectedKeyIsAuthentication(t *testing.T) {
	srv := newOpenAIServer(t)
	p, err := NewOpenRouterProvider(Config{BaseURL: srv.URL, APIKey: "bad-key", Temperature: 0.8})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), conversation())
	assert.ErrorIs(t, err, model.ErrAuthentication)

	text, err := model.Collect(p.Stream(context.Background(), conversation()), nil)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, model.ErrAuthentication)

	var perr *model.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "openrouter", perr.Provider)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}
