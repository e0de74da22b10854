// Package hooks provides lifecycle hooks for compaction sessions.
//
// Hooks run synchronously in registration order. A hook returning an error
// aborts the trigger; for session hooks the orchestrator logs the error and
// continues, so hooks observe the pipeline but cannot corrupt it.
package hooks

import (
	"context"
	"sync"

	"github.com/distillpg/distillpg/compaction"
	"github.com/distillpg/distillpg/progress"
	"github.com/distillpg/distillpg/store"
)

// SessionStartHook is called when a session begins processing.
type SessionStartHook func(ctx context.Context, session *store.SessionRecord) error

// ProgressHook is called for every progress event of a running session.
type ProgressHook func(ctx context.Context, event progress.Event) error

// SessionEndHook is called when a session reaches a terminal state.
// result is nil for failed and cancelled sessions.
type SessionEndHook func(ctx context.Context, session *store.SessionRecord, result *compaction.Result) error

// ArtifactSavedHook is called after an artifact is persisted.
type ArtifactSavedHook func(ctx context.Context, artifact *store.Artifact) error

// Registry holds all registered hooks
type Registry struct {
	mu            sync.RWMutex
	sessionStart  []SessionStartHook
	progress      []ProgressHook
	sessionEnd    []SessionEndHook
	artifactSaved []ArtifactSavedHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		sessionStart:  []SessionStartHook{},
		progress:      []ProgressHook{},
		sessionEnd:    []SessionEndHook{},
		artifactSaved: []ArtifactSavedHook{},
	}
}

// OnSessionStart registers a hook called when a session begins processing
func (r *Registry) OnSessionStart(hook SessionStartHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionStart = append(r.sessionStart, hook)
}

// OnProgress registers a hook called for every progress event
func (r *Registry) OnProgress(hook ProgressHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, hook)
}

// OnSessionEnd registers a hook called when a session reaches a terminal state
func (r *Registry) OnSessionEnd(hook SessionEndHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionEnd = append(r.sessionEnd, hook)
}

// OnArtifactSaved registers a hook called after an artifact is persisted
func (r *Registry) OnArtifactSaved(hook ArtifactSavedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifactSaved = append(r.artifactSaved, hook)
}

// TriggerSessionStart calls all registered session-start hooks
func (r *Registry) TriggerSessionStart(ctx context.Context, session *store.SessionRecord) error {
	r.mu.RLock()
	hooks := make([]SessionStartHook, len(r.sessionStart))
	copy(hooks, r.sessionStart)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, session); err != nil {
			return err
		}
	}
	return nil
}

// TriggerProgress calls all registered progress hooks
func (r *Registry) TriggerProgress(ctx context.Context, event progress.Event) error {
	r.mu.RLock()
	hooks := make([]ProgressHook, len(r.progress))
	copy(hooks, r.progress)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// TriggerSessionEnd calls all registered session-end hooks
func (r *Registry) TriggerSessionEnd(ctx context.Context, session *store.SessionRecord, result *compaction.Result) error {
	r.mu.RLock()
	hooks := make([]SessionEndHook, len(r.sessionEnd))
	copy(hooks, r.sessionEnd)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, session, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerArtifactSaved calls all registered artifact-saved hooks
func (r *Registry) TriggerArtifactSaved(ctx context.Context, artifact *store.Artifact) error {
	r.mu.RLock()
	hooks := make([]ArtifactSavedHook, len(r.artifactSaved))
	copy(hooks, r.artifactSaved)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, artifact); err != nil {
			return err
		}
	}
	return nil
}
