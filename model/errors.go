package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by every layer of a turn.
var (
	// ErrConfiguration: a required setting or credential is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthentication: the completion endpoint rejected the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrConnection: the index backend or embedding service is unreachable.
	ErrConnection = errors.New("connection error")

	// ErrUpstream: the completion endpoint failed for a non-auth reason.
	ErrUpstream = errors.New("upstream error")

	// ErrInternal: an invariant of the turn was violated.
	ErrInternal = errors.New("internal error")
)

// ErrorCode classifies a ProviderError.
type ErrorCode string

const (
	ErrorCodeAuth        ErrorCode = "authentication_failed"
	ErrorCodeRateLimit   ErrorCode = "rate_limit"
	ErrorCodeUnavailable ErrorCode = "service_unavailable"
	ErrorCodeRequest     ErrorCode = "invalid_request"
	ErrorCodeNetwork     ErrorCode = "network_error"
)

// ProviderError carries the failure of a completion endpoint call.
type ProviderError struct {
	Provider   string
	Code       ErrorCode
	StatusCode int
	Message    string
	Underlying error
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %s (%v)", e.Provider, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is match the sentinel that corresponds to Code.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Code == ErrorCodeAuth
	case ErrUpstream:
		return e.Code != ErrorCodeAuth
	}
	return false
}

// NewProviderError builds a ProviderError from an HTTP status code.
func NewProviderError(provider string, status int, message string, underlying error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       CodeForStatus(status),
		StatusCode: status,
		Message:    message,
		Underlying: underlying,
	}
}

// CodeForStatus maps an HTTP status to an ErrorCode.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrorCodeAuth
	case status == 429:
		return ErrorCodeRateLimit
	case status >= 500:
		return ErrorCodeUnavailable
	case status >= 400:
		return ErrorCodeRequest
	default:
		return ErrorCodeNetwork
	}
}

// ConfigError reports which required settings are missing.
type ConfigError struct {
	Missing []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required settings: %s", strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}
