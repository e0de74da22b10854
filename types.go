package distillpg

import (
	"context"

	"github.com/google/uuid"

	"github.com/distillpg/distillpg/compaction"
	"github.com/distillpg/distillpg/store"
)

// Key identifies one conversation inside one workspace. Together with an
// artifact kind it forms the cache and session-uniqueness key.
type Key struct {
	WorkspaceID    string `json:"workspace_id"`
	ConversationID string `json:"conversation_id"`
}

// Valid returns true when both components are set.
func (k Key) Valid() bool {
	return k.WorkspaceID != "" && k.ConversationID != ""
}

// TranscriptSource loads a conversation's raw messages. Implementations are
// called once per session start, after the cache check misses.
type TranscriptSource interface {
	Load(ctx context.Context, key Key) ([]compaction.RawMessage, error)
}

// TranscriptSourceFunc adapts a function to the TranscriptSource interface.
type TranscriptSourceFunc func(ctx context.Context, key Key) ([]compaction.RawMessage, error)

// Load implements TranscriptSource.
func (f TranscriptSourceFunc) Load(ctx context.Context, key Key) ([]compaction.RawMessage, error) {
	return f(ctx, key)
}

// StartRequest describes one session start.
type StartRequest struct {
	// Key identifies the conversation (required).
	Key Key

	// Kind selects the artifact to produce (required).
	Kind compaction.Kind

	// Messages is the transcript to compact. When nil the configured
	// TranscriptSource is consulted instead.
	Messages []compaction.RawMessage

	// Force skips the cache check and recomputes the artifact even when one
	// already exists.
	Force bool
}

// StartResult is the synchronous outcome of Start.
type StartResult struct {
	// Session is the created session record, nil on a cache hit.
	Session *store.SessionRecord

	// Artifact is set on a cache hit: the existing artifact for the key and
	// kind, returned without starting a session.
	Artifact *store.Artifact

	// CacheHit is true when Artifact short-circuited the start.
	CacheHit bool
}

// SessionID returns the started session's ID, or uuid.Nil on a cache hit.
func (r *StartResult) SessionID() uuid.UUID {
	if r.Session == nil {
		return uuid.Nil
	}
	return r.Session.ID
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value pointed to, or the zero value for nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// DerefOr returns the value pointed to, or def for nil.
func DerefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
