package compaction

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Default configuration values.
const (
	DefaultMaxTokensPerChunk   = 4000
	DefaultPreserveHead        = 3 // opening turns always kept by truncation
	DefaultPreserveTail        = 5 // closing turns always kept by truncation
	DefaultMaxTurnChars        = 8000
	DefaultSummarizerModel     = "claude-3-5-haiku-20241022"
	DefaultSummarizerMaxTokens = 4096
)

// DefaultBudgetLadder is the descending sequence of context token budgets the
// engine tries when a run fails for a size-related reason. Exactly one ladder
// traversal happens per session.
var DefaultBudgetLadder = []int{8000, 6000, 4000, 2000}

// Config holds compaction configuration.
type Config struct {
	// BudgetLadder is the descending list of context token budgets to try.
	// The first entry is the normal operating budget.
	// Default: 8000, 6000, 4000, 2000
	BudgetLadder []int `env:"BUDGET_LADDER" envSeparator:","`

	// MaxTokensPerChunk is the per-chunk token ceiling for chunk planning.
	// Default: 4000
	MaxTokensPerChunk int `env:"MAX_TOKENS_PER_CHUNK"`

	// PreserveHead is the number of opening turns truncation always keeps.
	// Default: 3
	PreserveHead int `env:"PRESERVE_HEAD"`

	// PreserveTail is the number of closing turns truncation always keeps.
	// Default: 5
	PreserveTail int `env:"PRESERVE_TAIL"`

	// MaxTurnChars caps a single turn's content length before chunk-level
	// truncation; longer turns are cut and marked.
	// Default: 8000
	MaxTurnChars int `env:"MAX_TURN_CHARS"`

	// SummarizerModel is the model used for map and reduce calls.
	// Using a faster/cheaper model is recommended.
	// Default: "claude-3-5-haiku-20241022"
	SummarizerModel string `env:"SUMMARIZER_MODEL"`

	// SummarizerMaxTokens is the maximum tokens for a summarization response.
	// Default: 4096
	SummarizerMaxTokens int `env:"SUMMARIZER_MAX_TOKENS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BudgetLadder:        append([]int(nil), DefaultBudgetLadder...),
		MaxTokensPerChunk:   DefaultMaxTokensPerChunk,
		PreserveHead:        DefaultPreserveHead,
		PreserveTail:        DefaultPreserveTail,
		MaxTurnChars:        DefaultMaxTurnChars,
		SummarizerModel:     DefaultSummarizerModel,
		SummarizerMaxTokens: DefaultSummarizerMaxTokens,
	}
}

// FromEnv builds a Config from DISTILLPG_-prefixed environment variables,
// falling back to defaults for unset fields.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "DISTILLPG_"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.BudgetLadder) == 0 {
		return fmt.Errorf("%w: budget ladder must not be empty", ErrInvalidConfig)
	}

	for i, budget := range c.BudgetLadder {
		if budget <= 0 {
			return fmt.Errorf("%w: budget ladder entries must be positive, got %d", ErrInvalidConfig, budget)
		}
		if i > 0 && budget >= c.BudgetLadder[i-1] {
			return fmt.Errorf("%w: budget ladder must be strictly descending, got %d after %d",
				ErrInvalidConfig, budget, c.BudgetLadder[i-1])
		}
	}

	if c.MaxTokensPerChunk <= 0 {
		return fmt.Errorf("%w: max_tokens_per_chunk must be positive, got %d", ErrInvalidConfig, c.MaxTokensPerChunk)
	}

	if c.PreserveHead < 0 {
		return fmt.Errorf("%w: preserve_head must be non-negative, got %d", ErrInvalidConfig, c.PreserveHead)
	}

	if c.PreserveTail < 0 {
		return fmt.Errorf("%w: preserve_tail must be non-negative, got %d", ErrInvalidConfig, c.PreserveTail)
	}

	if c.MaxTurnChars <= len(truncationMarker) {
		return fmt.Errorf("%w: max_turn_chars must exceed the truncation marker length, got %d",
			ErrInvalidConfig, c.MaxTurnChars)
	}

	if c.SummarizerModel == "" {
		return fmt.Errorf("%w: summarizer_model is required", ErrInvalidConfig)
	}

	if c.SummarizerMaxTokens <= 0 {
		return fmt.Errorf("%w: summarizer_max_tokens must be positive, got %d", ErrInvalidConfig, c.SummarizerMaxTokens)
	}

	return nil
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if len(c.BudgetLadder) == 0 {
		c.BudgetLadder = append([]int(nil), DefaultBudgetLadder...)
	}
	if c.MaxTokensPerChunk == 0 {
		c.MaxTokensPerChunk = DefaultMaxTokensPerChunk
	}
	if c.PreserveHead == 0 {
		c.PreserveHead = DefaultPreserveHead
	}
	if c.PreserveTail == 0 {
		c.PreserveTail = DefaultPreserveTail
	}
	if c.MaxTurnChars == 0 {
		c.MaxTurnChars = DefaultMaxTurnChars
	}
	if c.SummarizerModel == "" {
		c.SummarizerModel = DefaultSummarizerModel
	}
	if c.SummarizerMaxTokens == 0 {
		c.SummarizerMaxTokens = DefaultSummarizerMaxTokens
	}
}

// Logger interface for compaction logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }
