package provider

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
)

func conversation() []model.Message {
	call := model.ToolCall{ID: "c1", Name: "retrieve", Args: map[string]any{"query": "q"}}
	return []model.Message{
		model.NewSystemMessage("be brief"),
		model.NewHumanMessage("hi"),
		model.NewToolCallMessage(`{"tool_call":{}}`, call),
		model.NewToolMessage(call, "Source: map[]\nContent: x"),
		model.NewAssistantMessage("hello"),
	}
}

func TestConvertToOllamaMessages(t *testing.T) {
	got := ConvertToOllamaMessages(conversation())
	require.Len(t, got, 5)
	assert.Equal(t, []string{"system", "user", "assistant", "tool", "assistant"},
		[]string{got[0].Role, got[1].Role, got[2].Role, got[3].Role, got[4].Role})
	assert.Equal(t, "retrieve", got[3].ToolName)
	assert.Equal(t, "hi", got[1].Content)
}

func TestConvertToOpenAIMessages(t *testing.T) {
	got := ConvertToOpenAIMessages(conversation())
	require.Len(t, got, 5)
	assert.NotNil(t, got[0].OfSystem)
	assert.NotNil(t, got[1].OfUser)
	assert.NotNil(t, got[2].OfAssistant)
	require.NotNil(t, got[3].OfUser)
	assert.Equal(t, toolResultPrefix+"Source: map[]\nContent: x", got[3].OfUser.Content.OfString.Value)
}

func TestConvertToAnthropicMessages(t *testing.T) {
	system, msgs := ConvertToAnthropicMessages(conversation())
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	assert.Equal(t, "assistant", string(msgs[3].Role))
}

func TestWrapUpstreamError(t *testing.T) {
	assert.Nil(t, wrapUpstreamError("ollama", nil))

	auth := wrapUpstreamError("ollama", api.StatusError{StatusCode: http.StatusForbidden, Status: "403 Forbidden"})
	assert.ErrorIs(t, auth, model.ErrAuthentication)
	assert.NotErrorIs(t, auth, model.ErrUpstream)

	var perr *model.ProviderError
	require.ErrorAs(t, auth, &perr)
	assert.Equal(t, "forbidden", perr.Message)

	other := wrapUpstreamError("ollama", errors.New("connection reset"))
	assert.ErrorIs(t, other, model.ErrUpstream)
	assert.NotErrorIs(t, other, model.ErrAuthentication)
}

func TestOllamaOptions(t *testing.T) {
	assert.Equal(t, map[string]any{"temperature": 0.8}, ollamaOptions(sampling{temperature: 0.8}))
	assert.Equal(t, map[string]any{"temperature": 0.2, "num_predict": 100}, ollamaOptions(sampling{temperature: 0.2, maxTokens: 100}))
}

type usageSpy struct {
	messages int
	tokens   int
}

func (u *usageSpy) RecordUsage(messages []model.Message, actual int) {
	u.messages, u.tokens = len(messages), actual
}
