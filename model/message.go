package model

import (
	"fmt"
	"time"
)

// Role tags each Message variant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "System"
	case RoleHuman:
		return "Human"
	case RoleAssistant:
		return "Assistant"
	case RoleTool:
		return "Tool"
	default:
		return fmt.Sprintf("Role(%s)", string(r))
	}
}

// ToolCall is a structured request from the routing model to run a named tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Message is one entry in a conversation. Role selects the variant:
// ToolCalls is only set on Assistant messages, ToolCallID and SourceTool
// only on Tool messages.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time

	ToolCalls []ToolCall

	ToolCallID string
	SourceTool string
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

func NewHumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content, Timestamp: time.Now()}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// NewToolCallMessage builds the Assistant message that carries the raw
// routing output together with the parsed calls.
func NewToolCallMessage(content string, calls ...ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: append([]ToolCall(nil), calls...),
		Timestamp: time.Now(),
	}
}

// NewToolMessage builds the result message answering call.
func NewToolMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		SourceTool: call.Name,
		Timestamp:  time.Now(),
	}
}

// HasToolCalls reports whether m is an Assistant message requesting tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Credentials is the per-session secret bundle. It is passed to the
// components that need it and never read from globals.
type Credentials struct {
	LLMKey         string
	IndexKey       string
	IndexName      string
	EmbeddingModel string
}

// Missing lists the names of required credentials that are empty.
func (c Credentials) Missing() []string {
	var missing []string
	if c.LLMKey == "" {
		missing = append(missing, "LLM API key")
	}
	if c.IndexKey == "" {
		missing = append(missing, "index API key")
	}
	if c.IndexName == "" {
		missing = append(missing, "index name")
	}
	if c.EmbeddingModel == "" {
		missing = append(missing, "embedding model")
	}
	return missing
}
