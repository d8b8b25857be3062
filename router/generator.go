package router

import (
	"context"
	"fmt"
	"strings"

	"mentor/config"
	"mentor/model"
)

// Generator produces the final grounded answer of a retrieval turn.
type Generator struct {
	prompts *Prompts
}

func NewGenerator(prompts *Prompts) *Generator {
	return &Generator{prompts: prompts}
}

// Prompt builds the grounding prompt: RAG instructions with the tool
// contents as context, followed by the triggering question alone.
func (g *Generator) Prompt(toolContents []string, question model.Message) ([]model.Message, error) {
	system, err := g.prompts.RAG(strings.Join(toolContents, "\n\n"))
	if err != nil {
		return nil, fmt.Errorf("%w: render grounding prompt: %v", model.ErrInternal, err)
	}
	return []model.Message{
		model.NewSystemMessage(system),
		model.NewHumanMessage(question.Content),
	}, nil
}

// Generate streams the grounded answer through display and returns the
// accumulated text.
func (g *Generator) Generate(ctx context.Context, provider model.Provider, display model.Display, toolContents []string, question model.Message) (string, error) {
	prompt, err := g.Prompt(toolContents, question)
	if err != nil {
		return "", err
	}
	config.Debugf("[Generator] grounding %d tool result(s) for %q", len(toolContents), question.Content)
	return model.Collect(provider.Stream(ctx, prompt), display)
}
