// Package sessionstate provides the state machine definition for compaction sessions.
//
// A session represents one attempt to produce a condensed artifact for a
// conversation. Each session has a state that progresses through the state
// machine until reaching a terminal state.
//
// State Machine:
//
//	pending -> processing   (orchestrator hands the session to the engine)
//	processing -> completed (engine produced an artifact, cache updated)
//	pending -> cancelled    (cancelled before the engine started)
//	processing -> cancelled (cooperative cancellation between chunks)
//	pending -> failed       (engine could not start)
//	processing -> failed    (engine exhausted the budget ladder or hit a fatal error)
//
// Terminal states (completed, cancelled, failed) cannot transition further;
// a session in a terminal state is immutable.
package sessionstate

import (
	"database/sql/driver"
	"fmt"
)

// State represents the current state of a compaction session.
type State string

const (
	// StatePending indicates the session is created but the engine has not started.
	StatePending State = "pending"

	// StateProcessing indicates the engine is running against the transcript.
	StateProcessing State = "processing"

	// StateCompleted indicates the session finished and its artifact was persisted.
	StateCompleted State = "completed"

	// StateCancelled indicates the session was cancelled before completion.
	// No artifact is persisted for a cancelled session.
	StateCancelled State = "cancelled"

	// StateFailed indicates the session failed with an error.
	// The error field of the session will be populated.
	StateFailed State = "failed"
)

// AllStates returns all possible session states.
func AllStates() []State {
	return []State{
		StatePending,
		StateProcessing,
		StateCompleted,
		StateCancelled,
		StateFailed,
	}
}

// TerminalStates returns all terminal (final) states.
func TerminalStates() []State {
	return []State{
		StateCompleted,
		StateCancelled,
		StateFailed,
	}
}

// IsValid returns true if the state is a valid State value.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the state is a terminal (final) state.
// Terminal states cannot transition to any other state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// IsActive returns true if the session still counts against the
// one-non-terminal-session-per-key invariant.
func (s State) IsActive() bool {
	return s == StatePending || s == StateProcessing
}

// CanTransitionTo returns true if a transition from this state to the
// target state is valid.
//
// Valid transitions:
//   - pending -> processing
//   - pending -> cancelled
//   - pending -> failed
//   - processing -> completed
//   - processing -> cancelled
//   - processing -> failed
//
// Invalid transitions:
//   - Any terminal state to any other state
//   - Same state to same state (no-op)
func (s State) CanTransitionTo(target State) bool {
	if s.IsTerminal() {
		return false
	}

	if s == target {
		return false
	}

	if target.IsTerminal() {
		return true
	}

	return s == StatePending && target == StateProcessing
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Value implements driver.Valuer for database serialization.
func (s State) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner for database deserialization.
func (s *State) Scan(src any) error {
	switch v := src.(type) {
	case string:
		state := State(v)
		if !state.IsValid() {
			return fmt.Errorf("sessionstate: invalid state %q", v)
		}
		*s = state
		return nil
	case []byte:
		state := State(v)
		if !state.IsValid() {
			return fmt.Errorf("sessionstate: invalid state %q", v)
		}
		*s = state
		return nil
	default:
		return fmt.Errorf("sessionstate: cannot scan type %T into State", src)
	}
}

// Transition represents a state transition with validation.
type Transition struct {
	From State
	To   State
}

// Validate returns an error if the transition is invalid.
func (t Transition) Validate() error {
	if !t.From.IsValid() {
		return fmt.Errorf("sessionstate: invalid source state %q", t.From)
	}
	if !t.To.IsValid() {
		return fmt.Errorf("sessionstate: invalid target state %q", t.To)
	}
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("sessionstate: invalid transition from %q to %q", t.From, t.To)
	}
	return nil
}

// ValidTransitions returns all valid state transitions.
func ValidTransitions() []Transition {
	return []Transition{
		// From pending
		{From: StatePending, To: StateProcessing},
		{From: StatePending, To: StateCancelled},
		{From: StatePending, To: StateFailed},
		// From processing
		{From: StateProcessing, To: StateCompleted},
		{From: StateProcessing, To: StateCancelled},
		{From: StateProcessing, To: StateFailed},
	}
}

// Step represents the engine phase an in-flight session is currently in.
type Step string

const (
	// StepAnalyzing indicates the transcript is being scored and typed.
	StepAnalyzing Step = "analyzing"

	// StepChunking indicates the truncated transcript is being split into chunks.
	StepChunking Step = "chunking"

	// StepMapping indicates per-chunk summarization calls are running.
	// This step repeats once per chunk, advancing chunksProcessed.
	StepMapping Step = "mapping"

	// StepReducing indicates chunk summaries are being combined.
	StepReducing Step = "reducing"

	// StepFinalizing indicates the final artifact is being assembled.
	StepFinalizing Step = "finalizing"
)

// AllSteps returns the engine steps in execution order.
func AllSteps() []Step {
	return []Step{StepAnalyzing, StepChunking, StepMapping, StepReducing, StepFinalizing}
}

// IsValid returns true if the step is a known value.
func (s Step) IsValid() bool {
	switch s {
	case StepAnalyzing, StepChunking, StepMapping, StepReducing, StepFinalizing:
		return true
	default:
		return false
	}
}

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}

// Progress returns the nominal percentage a session reaches when this
// step begins. The mapping step interpolates between its bound and the
// reducing bound as chunks complete.
func (s Step) Progress() int {
	switch s {
	case StepAnalyzing:
		return 5
	case StepChunking:
		return 15
	case StepMapping:
		return 20
	case StepReducing:
		return 85
	case StepFinalizing:
		return 95
	default:
		return 0
	}
}
