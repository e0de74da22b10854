// Package store defines persistence for compaction artifacts and session
// records, with a PostgreSQL implementation backed by pgx and an in-memory
// implementation for embedding and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/distillpg/distillpg/sessionstate"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates the requested artifact or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateActive indicates a non-terminal session already exists for
	// the same workspace, conversation, and kind.
	ErrDuplicateActive = errors.New("active session already exists")
)

// Artifact is a produced compaction artifact. At most one artifact exists per
// (workspace, conversation, kind); saving again replaces it.
type Artifact struct {
	ID             uuid.UUID `json:"id"`
	WorkspaceID    string    `json:"workspace_id"`
	ConversationID string    `json:"conversation_id"`
	Kind           string    `json:"kind"`

	// Content is the artifact text.
	Content string `json:"content"`

	// Strategy records how the artifact was produced: "single_pass" or
	// "map_reduce".
	Strategy   string `json:"strategy"`
	ChunkCount int    `json:"chunk_count"`

	OriginalTokens  int `json:"original_tokens"`
	CompactedTokens int `json:"compacted_tokens"`

	// BudgetUsed is the token budget the producing run succeeded at.
	BudgetUsed int    `json:"budget_used"`
	ModelUsed  string `json:"model_used,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompressionRatio returns compacted/original token size, or 0 when the
// original size is unknown. Smaller is better; 0.25 means the artifact is a
// quarter of the source transcript.
func (a *Artifact) CompressionRatio() float64 {
	if a.OriginalTokens <= 0 {
		return 0
	}
	return float64(a.CompactedTokens) / float64(a.OriginalTokens)
}

// LogEntry is one line of a session's execution log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// SessionRecord is the persisted state of one compaction session.
type SessionRecord struct {
	ID             uuid.UUID `json:"id"`
	WorkspaceID    string    `json:"workspace_id"`
	ConversationID string    `json:"conversation_id"`
	Kind           string    `json:"kind"`

	State sessionstate.State `json:"state"`

	// Step and Percent track pipeline position while processing.
	Step    sessionstate.Step `json:"step,omitempty"`
	Percent int               `json:"percent"`

	// ChunksTotal and ChunksProcessed track map progress, both zero before
	// chunk planning.
	ChunksTotal     int `json:"chunks_total"`
	ChunksProcessed int `json:"chunks_processed"`

	// ErrorMessage carries the failure reason for failed sessions.
	ErrorMessage string `json:"error_message,omitempty"`

	// ArtifactID links a completed session to the artifact it produced.
	ArtifactID *uuid.UUID `json:"artifact_id,omitempty"`

	// Log is the append-only execution log, oldest first.
	Log []LogEntry `json:"log,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store is the persistence interface for artifacts and sessions.
type Store interface {
	// SaveArtifact inserts or replaces the artifact for its
	// (workspace, conversation, kind). Last write wins.
	SaveArtifact(ctx context.Context, artifact *Artifact) error

	// GetArtifact returns the artifact for the key, or ErrNotFound.
	GetArtifact(ctx context.Context, workspaceID, conversationID, kind string) (*Artifact, error)

	// CreateSession persists a new session record. It fails with
	// ErrDuplicateActive when a non-terminal session already exists for the
	// same (workspace, conversation, kind).
	CreateSession(ctx context.Context, session *SessionRecord) error

	// UpdateSession persists the session's current state, step, progress,
	// error message, and artifact link. Returns ErrNotFound for unknown IDs.
	UpdateSession(ctx context.Context, session *SessionRecord) error

	// GetSession returns a session by ID, or ErrNotFound.
	GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error)

	// GetActiveSession returns the non-terminal session for the key, or
	// ErrNotFound when none is active.
	GetActiveSession(ctx context.Context, workspaceID, conversationID, kind string) (*SessionRecord, error)

	// GetSessionHistory returns all sessions for a conversation, newest
	// first.
	GetSessionHistory(ctx context.Context, workspaceID, conversationID string) ([]*SessionRecord, error)

	// AppendSessionLog adds one entry to a session's execution log.
	AppendSessionLog(ctx context.Context, id uuid.UUID, entry LogEntry) error
}
