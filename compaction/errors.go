package compaction

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidConfig indicates invalid compaction configuration.
	ErrInvalidConfig = errors.New("invalid compaction configuration")

	// ErrEmptyTranscript indicates there are no messages to compact.
	ErrEmptyTranscript = errors.New("empty transcript")

	// ErrBudgetExhausted indicates every rung of the budget ladder failed
	// for a size-related reason.
	ErrBudgetExhausted = errors.New("all token budgets exhausted")

	// ErrTruncatedResponse indicates the model response was cut off at its
	// token limit. Treated as budget-retryable.
	ErrTruncatedResponse = errors.New("model response truncated")

	// ErrCancelled indicates the run was cancelled between model calls.
	ErrCancelled = errors.New("compaction cancelled")

	// ErrUnknownKind indicates an unrecognized artifact kind.
	ErrUnknownKind = errors.New("unknown artifact kind")
)

// Error provides structured error context for compaction operations.
type Error struct {
	// Op is the operation that failed (e.g., "Run", "MapChunk", "Reduce")
	Op string

	// SessionID is the session ID if applicable
	SessionID uuid.UUID

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.SessionID != uuid.Nil {
		msg += fmt.Sprintf(" for session %s", e.SessionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithSession sets the session ID on the error and returns the error for chaining.
func (e *Error) WithSession(sessionID uuid.UUID) *Error {
	e.SessionID = sessionID
	return e
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WrapError wraps an error with operation context. If err is nil, returns nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}
