package provider

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"mentor/model"
)

// toolResultPrefix introduces tool output on protocols that only accept
// system, user and assistant turns.
const toolResultPrefix = "Tool result:\n"

// ConvertToOllamaMessages converts model.Message to Ollama api.Message.
//
// Timestamps are not sent; Ollama has no field for them. Tool messages keep
// the "tool" role, which Ollama accepts natively.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.Role == model.RoleTool {
			result[i].ToolName = msg.SourceTool
		}
	}
	return result
}

// ConvertToOpenAIMessages converts model.Message to OpenAI chat completion
// message params. Tool output becomes a user turn because the tool call that
// produced it was never sent through the native tools API.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		case model.RoleTool:
			result = append(result, openai.UserMessage(toolResultPrefix+msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

// ConvertToAnthropicMessages splits messages into Anthropic system blocks
// and conversation turns. Anthropic takes system prompts out of band.
func ConvertToAnthropicMessages(messages []model.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case model.RoleTool:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(toolResultPrefix+msg.Content)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return system, result
}

// ollamaOptions maps sampling settings onto Ollama request options.
func ollamaOptions(s sampling) map[string]any {
	opts := map[string]any{"temperature": s.temperature}
	if s.maxTokens > 0 {
		opts["num_predict"] = s.maxTokens
	}
	return opts
}

// wrapUpstreamError turns an SDK error into a *model.ProviderError, keeping
// the HTTP status when the SDK exposes one.
func wrapUpstreamError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return model.NewProviderError(provider, openaiErr.StatusCode, statusMessage(openaiErr.StatusCode), err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return model.NewProviderError(provider, anthropicErr.StatusCode, statusMessage(anthropicErr.StatusCode), err)
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		msg := strings.TrimSpace(statusErr.ErrorMessage)
		if msg == "" {
			msg = statusMessage(statusErr.StatusCode)
		}
		return model.NewProviderError(provider, statusErr.StatusCode, msg, err)
	}

	return model.NewProviderError(provider, 0, "request failed", err)
}

func statusMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "request failed"
}
