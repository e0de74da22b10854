package distillpg

import (
	"fmt"

	"github.com/distillpg/distillpg/llm"
	"github.com/distillpg/distillpg/store"
)

// ModelInfo contains model-specific parameters
type ModelInfo struct {
	MaxContextTokens int
	DefaultMaxTokens int
}

// KnownModels maps model IDs to their capabilities
var KnownModels = map[string]ModelInfo{
	// Claude 4 models
	"claude-sonnet-4-5-20250929": {MaxContextTokens: 200000, DefaultMaxTokens: 16384},
	"claude-opus-4-5-20251101":   {MaxContextTokens: 200000, DefaultMaxTokens: 16384},
	// Claude 3.5 models
	"claude-3-5-sonnet-20241022": {MaxContextTokens: 200000, DefaultMaxTokens: 8192},
	"claude-3-5-haiku-20241022":  {MaxContextTokens: 200000, DefaultMaxTokens: 8192},
	// Claude 3 models
	"claude-3-haiku-20240307": {MaxContextTokens: 200000, DefaultMaxTokens: 4096},
}

// GetModelInfo returns model info, using sensible defaults for unknown models
func GetModelInfo(model string) ModelInfo {
	if info, ok := KnownModels[model]; ok {
		return info
	}
	return ModelInfo{MaxContextTokens: 200000, DefaultMaxTokens: 8192}
}

// Config holds the required configuration for an Orchestrator.
//
// Example:
//
//	pool, _ := pgxpool.New(ctx, connString)
//	orch, _ := distillpg.New(distillpg.Config{
//	    Store:  store.NewPostgresStore(pool),
//	    Client: llm.NewAnthropicClient(&anthropicClient),
//	    Source: mySource,
//	})
type Config struct {
	// Store persists artifacts and session records (required).
	Store store.Store

	// Client is the summarization model client (required).
	Client llm.Client

	// Source loads transcripts for Start requests that carry no messages
	// (optional; without it every request must include Messages).
	Source TranscriptSource
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: Store is required", ErrInvalidConfig)
	}

	if c.Client == nil {
		return fmt.Errorf("%w: Client is required", ErrInvalidConfig)
	}

	return nil
}
