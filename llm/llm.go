// Package llm defines the language model collaborator consumed by the
// compaction engine, plus an Anthropic-backed implementation.
//
// The engine only ever sees the Client interface and the typed error
// classification in this package; it never inspects provider error strings.
package llm

import (
	"context"
)

// Request describes a single completion call.
type Request struct {
	// Model is the model ID to use (required).
	Model string

	// System is the system prompt, may be empty.
	System string

	// Prompt is the user-turn prompt text (required).
	Prompt string

	// MaxTokens limits the response length.
	MaxTokens int
}

// Completion is the result of a completion call.
type Completion struct {
	// Text is the accumulated response text.
	Text string

	// StopReason indicates why generation stopped: "end_turn", "max_tokens",
	// "stop_sequence". A "max_tokens" stop means the response was truncated.
	StopReason string

	// InputTokens and OutputTokens are reported usage, zero if unknown.
	InputTokens  int
	OutputTokens int
}

// Truncated returns true if the response was cut off before completion.
func (c *Completion) Truncated() bool {
	return c.StopReason == "max_tokens"
}

// Client is an opaque completion function: prompt in, text out.
// Implementations must return errors classifiable via Classify.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
