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

var anthropicStreamEvents = []string{
	`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[],"stop_reason":null,"usage":{"input_tokens":5,"output_tokens":0}}}`,
	`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Try "}}`,
	`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"recursion"}}`,
	`{"type":"content_block_stop","index":0}`,
	`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`,
	`{"type":"message_stop"}`,
}

func newAnthropicServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "good-key" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}

		var req struct {
			Stream bool `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, ev := range anthropicStreamEvents {
				var head struct {
					Type string `json:"type"`
				}
				require.NoError(t, json.Unmarshal([]byte(ev), &head))
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, ev)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude",`+
			`"content":[{"type":"text","text":"whole "},{"type":"text","text":"reply"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":9,"output_tokens":2}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicComplete(t *testing.T) {
	srv := newAnthropicServer(t)
	usage := &usageSpy{}
	p, err := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "good-key", Model: "claude", Usage: usage})
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicMaxTokens, p.maxTokens)

	out, err := p.Complete(context.Background(), conversation())
	require.NoError(t, err)
	assert.Equal(t, "whole reply", out)
	assert.Equal(t, 9, usage.tokens)
}

func TestAnthropicStream(t *testing.T) {
	srv := newAnthropicServer(t)
	p, err := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "good-key", Model: "claude"})
	require.NoError(t, err)

	rec := []string{}
	text, err := model.Collect(p.Stream(context.Background(), conversation()), model.DisplayFunc(func(s string) {
		rec = append(rec, s)
	}))
	require.NoError(t, err)
	assert.Equal(t, "Try recursion", text)
	assert.Equal(t, []string{"Try ", "recursion"}, rec)
}

func TestAnthropicRejectedKey(t *testing.T) {
	srv := newAnthropicServer(t)
	p, err := NewAnthropicProvider(Config{BaseURL: srv.URL, APIKey: "bad-key"})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), conversation())
	assert.ErrorIs(t, err, model.ErrAuthentication)
	assert.ErrorIs(t, p.Ping(context.Background()), model.ErrAuthentication)
}
