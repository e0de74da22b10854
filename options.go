package distillpg

import (
	"github.com/distillpg/distillpg/compaction"
	"github.com/distillpg/distillpg/hooks"
)

// internalConfig holds option-configurable settings.
type internalConfig struct {
	logger     compaction.Logger
	hooks      *hooks.Registry
	compaction *compaction.Config
	busBuffer  int
}

// Option is a functional option for configuring an Orchestrator
type Option func(*internalConfig) error

// WithLogger sets the logger used by the orchestrator and the engine
func WithLogger(logger compaction.Logger) Option {
	return func(c *internalConfig) error {
		c.logger = logger
		return nil
	}
}

// WithHooks sets the lifecycle hook registry
func WithHooks(registry *hooks.Registry) Option {
	return func(c *internalConfig) error {
		c.hooks = registry
		return nil
	}
}

// WithCompactionConfig replaces the whole compaction configuration.
// Later ladder/anchor/model options modify the config set here.
func WithCompactionConfig(cfg *compaction.Config) Option {
	return func(c *internalConfig) error {
		if err := validateCompaction(cfg); err != nil {
			return err
		}
		c.compaction = cfg
		return nil
	}
}

// WithBudgetLadder sets the descending token budget ladder
func WithBudgetLadder(budgets ...int) Option {
	return func(c *internalConfig) error {
		c.compaction.BudgetLadder = budgets
		return c.compaction.Validate()
	}
}

// WithPreserveAnchors sets how many opening and closing turns truncation
// always keeps
func WithPreserveAnchors(head, tail int) Option {
	return func(c *internalConfig) error {
		c.compaction.PreserveHead = head
		c.compaction.PreserveTail = tail
		return c.compaction.Validate()
	}
}

// WithSummarizerModel sets the model used for map and reduce calls
func WithSummarizerModel(model string) Option {
	return func(c *internalConfig) error {
		c.compaction.SummarizerModel = model
		return c.compaction.Validate()
	}
}

// WithMaxTokensPerChunk sets the per-chunk token ceiling
func WithMaxTokensPerChunk(n int) Option {
	return func(c *internalConfig) error {
		c.compaction.MaxTokensPerChunk = n
		return c.compaction.Validate()
	}
}

// WithProgressBuffer sets the per-subscriber progress event buffer
func WithProgressBuffer(n int) Option {
	return func(c *internalConfig) error {
		c.busBuffer = n
		return nil
	}
}

func validateCompaction(cfg *compaction.Config) error {
	if cfg == nil {
		return NewSessionError("WithCompactionConfig", compaction.ErrInvalidConfig)
	}
	cfg.ApplyDefaults()
	return cfg.Validate()
}

func defaultInternalConfig() *internalConfig {
	return &internalConfig{
		logger:     compaction.NopLogger(),
		hooks:      hooks.NewRegistry(),
		compaction: compaction.DefaultConfig(),
		busBuffer:  0, // progress.NewBus picks its default
	}
}
