package chat

import (
	"context"
	"slices"
	"time"

	"mentor/config"
	"mentor/model"
	"mentor/provider"
	"mentor/router"
)

// llmKeyName matches the name model.Credentials.Missing uses for the key.
const llmKeyName = "LLM API key"

type ServiceConfig struct {
	Router  *router.Router
	Factory provider.Factory

	// RequireLLMKey is false for providers that need no key (Ollama).
	RequireLLMKey bool

	// ResetGrace is how long a reset-class error stays on screen before
	// the session is cleared.
	ResetGrace time.Duration

	// Sleep waits out the grace delay. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Service struct {
	router        *router.Router
	factory       provider.Factory
	requireLLMKey bool
	grace         time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewService(cfg ServiceConfig) *Service {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Service{
		router:        cfg.Router,
		factory:       cfg.Factory,
		requireLLMKey: cfg.RequireLLMKey,
		grace:         cfg.ResetGrace,
		sleep:         sleep,
	}
}

// HandleUserInput runs one turn for sess. Missing credentials are reported
// before any network call and leave the history untouched. Turns on the
// same session are serialized.
func (s *Service) HandleUserInput(ctx context.Context, sess *Session, input string, display model.Display) (*router.Outcome, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if missing := s.missing(sess.Credentials); len(missing) > 0 {
		config.Debugf("[Chat] session %s missing credentials: %v", sess.ID, missing)
		return &router.Outcome{}, &model.ConfigError{Missing: missing}
	}

	p, err := s.factory(sess.Credentials.LLMKey)
	if err != nil {
		return &router.Outcome{}, err
	}

	config.Debugf("[Chat] session %s turn start (model=%s, history=%d)", sess.ID, p.GetModel(), sess.History.Len())
	out, err := s.router.Run(ctx, router.Turn{
		Provider:    p,
		History:     sess.History,
		Credentials: sess.Credentials,
		Input:       input,
		Display:     display,
	})
	if err != nil {
		config.Debugf("[Chat] session %s turn failed (%s): %v", sess.ID, Classify(err), err)
		return out, err
	}
	config.Debugf("[Chat] session %s turn done via %s", sess.ID, out.Route)
	return out, nil
}

// Recover applies the recovery err calls for. Reset-class errors wait the
// grace delay and then reset sess; the returned bool reports whether a reset
// happened.
func (s *Service) Recover(ctx context.Context, sess *Session, err error) (bool, error) {
	kind := Classify(err)
	if kind == KindNone || kind.Recovery() != RecoveryReset {
		return false, nil
	}
	if waitErr := s.sleep(ctx, s.grace); waitErr != nil {
		return false, waitErr
	}
	config.Debugf("[Chat] resetting session %s after %s error", sess.ID, kind)
	sess.Reset()
	return true, nil
}

func (s *Service) missing(creds model.Credentials) []string {
	missing := creds.Missing()
	if !s.requireLLMKey {
		missing = slices.DeleteFunc(missing, func(name string) bool { return name == llmKeyName })
	}
	return missing
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
