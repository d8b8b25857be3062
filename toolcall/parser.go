// Package toolcall decodes the JSON tool-call protocol the routing model
// answers with when it wants retrieval:
//
//	{"tool_call": {"function": "retrieve", "arguments": {"query": "..."}}}
//
// Models often drop trailing braces, so callers run RepairBraces first.
package toolcall

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"mentor/config"
	"mentor/model"
)

// Outcome says why Parse did or did not produce a call.
type Outcome int

const (
	Parsed Outcome = iota
	// DecodeFailed: the text is not valid JSON.
	DecodeFailed
	// MissingToolCall: valid JSON without a tool_call key (warning).
	MissingToolCall
	// MissingFields: tool_call lacks a usable function or arguments (error).
	MissingFields
)

func (o Outcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case DecodeFailed:
		return "decode failed"
	case MissingToolCall:
		return "missing tool_call"
	case MissingFields:
		return "missing fields"
	default:
		return "unknown"
	}
}

// LooksLikeToolCall reports whether the routing reply should be treated as
// a structured call rather than a direct answer.
func LooksLikeToolCall(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "{")
}

// RepairBraces appends the closing braces text is missing. Text with at
// least as many '}' as '{' is returned unchanged.
func RepairBraces(text string) string {
	open := strings.Count(text, "{")
	closed := strings.Count(text, "}")
	if open <= closed {
		return text
	}
	config.Debugf("[Parser] unbalanced braces: %d opening vs %d closing", open, closed)
	return text + strings.Repeat("}", open-closed)
}

type envelope struct {
	ToolCall json.RawMessage `json:"tool_call"`
}

type payload struct {
	Function  json.RawMessage `json:"function"`
	Arguments json.RawMessage `json:"arguments"`
	ID        json.RawMessage `json:"id"`
}

// Parse decodes a tool call. It never panics on malformed input; anything
// that is not a complete call yields (nil, outcome != Parsed).
func Parse(text string) (*model.ToolCall, Outcome) {
	var env envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &env); err != nil {
		config.Debugf("[Parser] ERROR: JSON decode error: %v", err)
		return nil, DecodeFailed
	}
	if isAbsent(env.ToolCall) {
		config.Debugf("[Parser] WARNING: no tool_call field found in the parsed JSON")
		return nil, MissingToolCall
	}

	var p payload
	if err := json.Unmarshal(env.ToolCall, &p); err != nil {
		config.Debugf("[Parser] ERROR: tool_call is not an object: %v", err)
		return nil, MissingFields
	}

	var name string
	if isAbsent(p.Function) || json.Unmarshal(p.Function, &name) != nil || strings.TrimSpace(name) == "" {
		config.Debugf("[Parser] ERROR: invalid tool call format: missing function")
		return nil, MissingFields
	}

	var args map[string]any
	if isAbsent(p.Arguments) || json.Unmarshal(p.Arguments, &args) != nil || args == nil {
		config.Debugf("[Parser] ERROR: invalid tool call format: missing arguments")
		return nil, MissingFields
	}

	id := idFrom(p.ID)
	if id == "" {
		id = uuid.New().String()
	}

	return &model.ToolCall{ID: id, Name: strings.TrimSpace(name), Args: args}, Parsed
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// idFrom accepts string or numeric ids.
func idFrom(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
