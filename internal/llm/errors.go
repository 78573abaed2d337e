package llm

import "fmt"

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind string

const (
	// ErrKindConnection covers network failures and timeouts. Retryable.
	ErrKindConnection ErrorKind = "connection"
	// ErrKindRateLimit covers 429 responses. Retryable.
	ErrKindRateLimit ErrorKind = "rate_limit"
	// ErrKindProtocol covers malformed responses and non-retryable API
	// errors (auth failures, bad requests).
	ErrKindProtocol ErrorKind = "protocol"
)

// ProviderError is the typed error surfaced by Client implementations.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ErrKindConnection || e.Kind == ErrKindRateLimit
}
