package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/model"
	"mentor/toolcall"
)

func TestRoutingPromptExampleParses(t *testing.T) {
	text, err := NewPrompts().Routing("retrieve", "algorithms", "nomic-embed-text")
	require.NoError(t, err)

	start := strings.Index(text, `{"tool_call"`)
	require.GreaterOrEqual(t, start, 0)
	example, _, _ := strings.Cut(text[start:], "\n")

	call, outcome := toolcall.Parse(example)
	require.Equal(t, toolcall.Parsed, outcome)
	assert.Equal(t, "retrieve", call.Name)
	assert.Equal(t, "algorithms", call.Args["index_name"])
}

func TestGeneratorPrompt(t *testing.T) {
	g := NewGenerator(NewPrompts())
	msgs, err := g.Prompt([]string{"Source: map[]\nContent: a", "Source: map[]\nContent: b"}, model.NewHumanMessage("why?"))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "Content: a\n\nSource: map[]\nContent: b")
	assert.Contains(t, msgs[0].Content, "ONLY the information")
	assert.Equal(t, model.RoleHuman, msgs[1].Role)
	assert.Equal(t, "why?", msgs[1].Content)
}
