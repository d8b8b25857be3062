package model

import (
	"errors"
	"fmt"
)

// TrimStrategy selects which end of the history survives trimming.
type TrimStrategy string

// StrategyLast keeps the most recent messages.
const StrategyLast TrimStrategy = "last"

var (
	ErrPartialTrimUnsupported = errors.New("partial message trimming is not supported")
	ErrUnknownTrimStrategy    = errors.New("unknown trim strategy")
)

type TrimConfig struct {
	MaxTokens     int
	Strategy      TrimStrategy
	IncludeSystem bool
	StartOn       Role
	AllowPartial  bool
}

// DefaultTrimConfig is what the router uses for the routing prompt.
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		MaxTokens:     40000,
		Strategy:      StrategyLast,
		IncludeSystem: false,
		StartOn:       RoleHuman,
		AllowPartial:  false,
	}
}

// Trim returns the longest suffix of messages whose estimated cost fits in
// cfg.MaxTokens and whose first message has role cfg.StartOn. With
// IncludeSystem a leading System message is always kept in front of the
// suffix and counts against the budget; when it alone exceeds the budget it
// is returned by itself. Messages are never split and never
// reordered. An empty result is valid when nothing fits.
func Trim(messages []Message, cfg TrimConfig, counter TokenCounter) ([]Message, error) {
	if cfg.AllowPartial {
		return nil, ErrPartialTrimUnsupported
	}
	if cfg.Strategy != StrategyLast {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrimStrategy, cfg.Strategy)
	}
	if cfg.MaxTokens < 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("trim budget must not be negative, got %d", cfg.MaxTokens)}
	}
	if len(messages) == 0 {
		return nil, nil
	}

	var prefix []Message
	body := messages
	if cfg.IncludeSystem && messages[0].Role == RoleSystem {
		prefix = messages[:1]
		body = messages[1:]
		if counter.CountTokens(prefix) > cfg.MaxTokens {
			return []Message{messages[0]}, nil
		}
	}

	start := len(body)
	for start > 0 {
		candidate := make([]Message, 0, len(prefix)+len(body)-start+1)
		candidate = append(candidate, prefix...)
		candidate = append(candidate, body[start-1:]...)
		if counter.CountTokens(candidate) > cfg.MaxTokens {
			break
		}
		start--
	}

	kept := body[start:]
	if cfg.StartOn != "" {
		for len(kept) > 0 && kept[0].Role != cfg.StartOn {
			kept = kept[1:]
		}
	}

	out := make([]Message, 0, len(prefix)+len(kept))
	out = append(out, prefix...)
	out = append(out, kept...)
	return out, nil
}
