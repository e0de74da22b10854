package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for completion calls.
var (
	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrMissingModel indicates a request without a model ID.
	ErrMissingModel = errors.New("model ID is required")
)

// ErrorKind classifies a completion failure. The compaction engine retries
// across its budget ladder only for KindBudget; everything else is fatal.
type ErrorKind string

const (
	// KindBudget indicates the prompt exceeded the model's context window
	// or the response was rejected for size reasons. Retryable with a
	// smaller token budget.
	KindBudget ErrorKind = "budget"

	// KindAuth indicates an authentication or permission failure.
	KindAuth ErrorKind = "auth"

	// KindRateLimit indicates the provider rejected the call for rate reasons.
	KindRateLimit ErrorKind = "rate_limit"

	// KindNetwork indicates a transport-level failure.
	KindNetwork ErrorKind = "network"

	// KindInvalid indicates a malformed request or response that is not
	// size-related.
	KindInvalid ErrorKind = "invalid"

	// KindUnknown is the fallback classification.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified completion failure.
type Error struct {
	// Kind is the classification driving retry decisions.
	Kind ErrorKind

	// Err is the underlying provider error.
	Err error
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified completion error.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Classify returns the ErrorKind of an error. Errors that did not come from
// a Client are reported as KindUnknown.
func Classify(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsBudgetError returns true if the error is retryable with a smaller
// token budget.
func IsBudgetError(err error) bool {
	return Classify(err) == KindBudget
}
