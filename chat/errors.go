package chat

import (
	"errors"
	"fmt"
	"strings"

	"mentor/model"
	"mentor/router"
)

// Kind classifies a failed turn.
type Kind int

const (
	KindNone Kind = iota
	KindConfiguration
	KindParse
	KindRetrieval
	KindAuthentication
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindParse:
		return "parse"
	case KindRetrieval:
		return "retrieval"
	case KindAuthentication:
		return "authentication"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Recovery is what the session does after a failure.
type Recovery int

const (
	// RecoveryNotify shows the error and keeps the session.
	RecoveryNotify Recovery = iota
	// RecoveryReset shows the error, waits the grace delay and resets the
	// session.
	RecoveryReset
)

func (k Kind) Recovery() Recovery {
	switch k {
	case KindAuthentication, KindInternal:
		return RecoveryReset
	default:
		return RecoveryNotify
	}
}

// Classify maps a turn error onto a Kind.
func Classify(err error) Kind {
	var retrievalErr *router.RetrievalError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, model.ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, router.ErrUnroutable):
		return KindParse
	case errors.As(err, &retrievalErr):
		return KindRetrieval
	case errors.Is(err, model.ErrAuthentication):
		return KindAuthentication
	default:
		return KindInternal
	}
}

// ResetNotice is appended to messages of failures that reset the session.
const ResetNotice = "Restarting chat history"

// UserMessage renders err for the student.
func UserMessage(err error) string {
	kind := Classify(err)
	var cfgErr *model.ConfigError
	var retrievalErr *router.RetrievalError

	switch kind {
	case KindNone:
		return ""
	case KindConfiguration:
		if errors.As(err, &cfgErr) && len(cfgErr.Missing) > 0 {
			return "Please provide: " + strings.Join(cfgErr.Missing, ", ")
		}
		return "Configuration error: " + err.Error()
	case KindParse:
		return "I could not understand the model's reply. Please rephrase your question."
	case KindRetrieval:
		errors.As(err, &retrievalErr)
		return "Could not search the course material: " + retrievalErr.Message
	case KindAuthentication:
		return "Authentication failed, please check your API key. " + ResetNotice
	default:
		return "Something went wrong: " + err.Error() + ". " + ResetNotice
	}
}
