package model

import (
	"encoding/json"
	"math"
	"sync"
)

// TokenCounter estimates how many tokens a message list costs.
type TokenCounter interface {
	CountTokens(messages []Message) int
}

// TokenCounterFunc adapts a function to TokenCounter.
type TokenCounterFunc func(messages []Message) int

func (f TokenCounterFunc) CountTokens(messages []Message) int { return f(messages) }

// UsageRecorder receives the input token count a provider reported for a
// request built from messages.
type UsageRecorder interface {
	RecordUsage(messages []Message, actualInputTokens int)
}

const (
	defaultCharactersPerToken = 4.0
	defaultSmoothingFactor    = 0.3

	// perMessageTokens covers role markers and separators.
	perMessageTokens = 3
)

// CharEstimator estimates token counts from character counts. The ratio
// starts at 4 characters per token and is calibrated with RecordUsage when
// a provider reports real input token counts. Estimates round up.
type CharEstimator struct {
	mu                 sync.Mutex
	charactersPerToken float64
	smoothingFactor    float64
	observationCount   int
}

func NewCharEstimator() *CharEstimator {
	return &CharEstimator{
		charactersPerToken: defaultCharactersPerToken,
		smoothingFactor:    defaultSmoothingFactor,
	}
}

func (e *CharEstimator) CountTokens(messages []Message) int {
	e.mu.Lock()
	ratio := e.charactersPerToken
	e.mu.Unlock()

	total := 0
	for _, m := range messages {
		total += int(math.Ceil(float64(messageChars(m))/ratio)) + perMessageTokens
	}
	return total
}

// RecordUsage blends the observed characters-per-token ratio into the
// running estimate. The first observation replaces the default outright.
func (e *CharEstimator) RecordUsage(messages []Message, actualInputTokens int) {
	if actualInputTokens <= 0 {
		return
	}
	chars := 0
	for _, m := range messages {
		chars += messageChars(m)
	}
	if chars == 0 {
		return
	}
	observed := float64(chars) / float64(actualInputTokens)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.observationCount++
	if e.observationCount == 1 {
		e.charactersPerToken = observed
		return
	}
	e.charactersPerToken = e.smoothingFactor*observed + (1.0-e.smoothingFactor)*e.charactersPerToken
}

func messageChars(m Message) int {
	n := len(m.Content)
	for _, c := range m.ToolCalls {
		n += len(c.Name)
		if args, err := json.Marshal(c.Args); err == nil {
			n += len(args)
		}
	}
	return n
}
