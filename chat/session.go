// Package chat owns tutoring sessions: it checks credentials, runs turns
// through the router one at a time per session and applies the recovery
// each kind of failure calls for.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"mentor/model"
	"mentor/router"
)

// Session is the explicit per-user context a turn runs against. History
// and Credentials are only touched while mu is held.
type Session struct {
	ID          string
	CreatedAt   time.Time
	History     *model.History
	Credentials model.Credentials

	greeting       string
	embeddingModel string
	mu             sync.Mutex
}

// NewSession seeds the mentor persona and the greeting.
func NewSession(creds model.Credentials, greeting string) *Session {
	s := &Session{
		ID:             uuid.New().String(),
		CreatedAt:      time.Now(),
		Credentials:    creds,
		greeting:       greeting,
		embeddingModel: creds.EmbeddingModel,
	}
	s.History = model.NewHistory(initialMessages(greeting)...)
	return s
}

func initialMessages(greeting string) []model.Message {
	return []model.Message{
		model.NewSystemMessage(router.MentorPrompt),
		model.NewAssistantMessage(greeting),
	}
}

// Reset clears history, keys and the index name and starts over from the
// greeting. The session keeps its ID and the embedding model it was
// created with, which is configuration rather than a secret.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session) reset() {
	s.History.Reset()
	s.History.Append(initialMessages(s.greeting)...)
	s.Credentials = model.Credentials{EmbeddingModel: s.embeddingModel}
}

// UpdateCredentials applies fn to the credentials under the session lock.
func (s *Session) UpdateCredentials(fn func(*model.Credentials)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.Credentials)
}

// CurrentCredentials returns a copy of the session credentials.
func (s *Session) CurrentCredentials() model.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Credentials
}

// Snapshot returns a copy of the visible transcript: every message except
// System ones.
func (s *Session) Snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.History.NonSystem()
}
