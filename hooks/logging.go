package hooks

import (
	"context"
	"log"

	"github.com/distillpg/distillpg/compaction"
	"github.com/distillpg/distillpg/progress"
	"github.com/distillpg/distillpg/store"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Register attaches every logging hook to the registry.
func (h *LoggingHooks) Register(registry *Registry) {
	registry.OnSessionStart(h.SessionStart)
	registry.OnProgress(h.Progress)
	registry.OnSessionEnd(h.SessionEnd)
	registry.OnArtifactSaved(h.ArtifactSaved)
}

// SessionStart logs when a session begins processing
func (h *LoggingHooks) SessionStart(ctx context.Context, session *store.SessionRecord) error {
	h.logger.Printf("[distillpg] Session %s started: %s/%s kind=%s",
		session.ID, session.WorkspaceID, session.ConversationID, session.Kind)
	return nil
}

// Progress logs progress events
func (h *LoggingHooks) Progress(ctx context.Context, event progress.Event) error {
	if event.Terminal() {
		return nil
	}
	h.logger.Printf("[distillpg] Session %s: %s %d%% (%d/%d chunks)",
		event.SessionID, event.Step, event.Percent, event.ChunksProcessed, event.ChunksTotal)
	return nil
}

// SessionEnd logs the terminal outcome of a session
func (h *LoggingHooks) SessionEnd(ctx context.Context, session *store.SessionRecord, result *compaction.Result) error {
	if result == nil {
		h.logger.Printf("[distillpg] Session %s ended: state=%s error=%q",
			session.ID, session.State, session.ErrorMessage)
		return nil
	}

	reduction := float64(0)
	if result.OriginalTokens > 0 {
		reduction = float64(result.OriginalTokens-result.CompactedTokens) / float64(result.OriginalTokens) * 100
	}

	h.logger.Printf("[distillpg] Session %s completed: %d -> %d tokens (%.1f%% reduction, strategy: %s, budget: %d)",
		session.ID, result.OriginalTokens, result.CompactedTokens, reduction, result.Strategy, result.BudgetUsed)
	return nil
}

// ArtifactSaved logs persisted artifacts
func (h *LoggingHooks) ArtifactSaved(ctx context.Context, artifact *store.Artifact) error {
	h.logger.Printf("[distillpg] Artifact saved: %s/%s kind=%s (%d tokens, ratio %.2f)",
		artifact.WorkspaceID, artifact.ConversationID, artifact.Kind,
		artifact.CompactedTokens, artifact.CompressionRatio())
	return nil
}
