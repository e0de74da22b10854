package distillpg

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the orchestrator configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyInProgress is returned when a session is already active for
	// the same workspace, conversation, and kind
	ErrAlreadyInProgress = errors.New("session already in progress")

	// ErrSessionNotFound is returned when a session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoTranscript is returned when a start request has no messages and
	// no transcript source is configured
	ErrNoTranscript = errors.New("no transcript available")

	// ErrClosed is returned when calling methods after Close
	ErrClosed = errors.New("orchestrator closed")
)

// SessionError represents an error with additional session context
type SessionError struct {
	Op        string         // Operation that failed
	Err       error          // Underlying error
	SessionID uuid.UUID      // Session ID if applicable
	Context   map[string]any // Additional context
}

// Error implements the error interface
func (e *SessionError) Error() string {
	if e.SessionID != uuid.Nil {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError
func NewSessionError(op string, err error) *SessionError {
	return &SessionError{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithSession sets the session ID and returns the error for chaining
func (e *SessionError) WithSession(sessionID uuid.UUID) *SessionError {
	e.SessionID = sessionID
	return e
}

// WithContext adds additional context to the error
func (e *SessionError) WithContext(key string, value any) *SessionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
