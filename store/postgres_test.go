package store

import (
	"context"
	"errors"
	"testing"

	"github.com/distillpg/distillpg/internal/testutil"
	"github.com/distillpg/distillpg/sessionstate"
)

func setupPostgres(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return nil, nil
	}
	t.Cleanup(db.Close)

	ctx := context.Background()
	store := NewPostgresStore(db.Pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}

	return store, ctx
}

func TestIntegration_PostgresStore_ArtifactUpsert(t *testing.T) {
	store, ctx := setupPostgres(t)

	artifact := &Artifact{
		WorkspaceID:     "ws-1",
		ConversationID:  "conv-1",
		Kind:            "compact",
		Content:         "first version",
		Strategy:        "map_reduce",
		ChunkCount:      3,
		OriginalTokens:  9000,
		CompactedTokens: 800,
		BudgetUsed:      8000,
		ModelUsed:       "claude-3-5-haiku-20241022",
	}
	if err := store.SaveArtifact(ctx, artifact); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}
	firstID := artifact.ID

	// Same key again: last write wins, ID stable.
	replacement := &Artifact{
		WorkspaceID:    "ws-1",
		ConversationID: "conv-1",
		Kind:           "compact",
		Content:        "second version",
		Strategy:       "single_pass",
		ChunkCount:     1,
	}
	if err := store.SaveArtifact(ctx, replacement); err != nil {
		t.Fatalf("SaveArtifact (replace) failed: %v", err)
	}

	got, err := store.GetArtifact(ctx, "ws-1", "conv-1", "compact")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if got.Content != "second version" {
		t.Errorf("Expected replaced content, got %q", got.Content)
	}
	if got.ID != firstID {
		t.Errorf("Expected stable ID %s, got %s", firstID, got.ID)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("Expected updated_at >= created_at")
	}

	if _, err := store.GetArtifact(ctx, "ws-1", "conv-1", "overview"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_PostgresStore_SessionLifecycle(t *testing.T) {
	store, ctx := setupPostgres(t)

	session := &SessionRecord{
		WorkspaceID:    "ws-1",
		ConversationID: "conv-1",
		Kind:           "compact",
		State:          sessionstate.StatePending,
	}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Partial unique index rejects a second active session per key.
	dup := &SessionRecord{
		WorkspaceID:    "ws-1",
		ConversationID: "conv-1",
		Kind:           "compact",
		State:          sessionstate.StatePending,
	}
	if err := store.CreateSession(ctx, dup); !errors.Is(err, ErrDuplicateActive) {
		t.Errorf("Expected ErrDuplicateActive, got %v", err)
	}

	active, err := store.GetActiveSession(ctx, "ws-1", "conv-1", "compact")
	if err != nil {
		t.Fatalf("GetActiveSession failed: %v", err)
	}
	if active.ID != session.ID {
		t.Errorf("Expected session %s, got %s", session.ID, active.ID)
	}

	// Progress through processing with log entries.
	session.State = sessionstate.StateProcessing
	session.Step = sessionstate.StepMapping
	session.Percent = 40
	session.ChunksTotal = 3
	session.ChunksProcessed = 1
	if err := store.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if err := store.AppendSessionLog(ctx, session.ID, LogEntry{Level: "info", Message: "mapping chunk 1/3"}); err != nil {
		t.Fatalf("AppendSessionLog failed: %v", err)
	}

	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.State != sessionstate.StateProcessing || got.Step != sessionstate.StepMapping || got.Percent != 40 {
		t.Errorf("Unexpected session: %+v", got)
	}
	if got.ChunksTotal != 3 || got.ChunksProcessed != 1 {
		t.Errorf("Expected 1/3 chunks, got %d/%d", got.ChunksProcessed, got.ChunksTotal)
	}
	if len(got.Log) != 1 || got.Log[0].Message != "mapping chunk 1/3" {
		t.Errorf("Unexpected log: %+v", got.Log)
	}

	// Completing frees the key for the next session.
	session.State = sessionstate.StateCompleted
	session.Percent = 100
	if err := store.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	if _, err := store.GetActiveSession(ctx, "ws-1", "conv-1", "compact"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after completion, got %v", err)
	}

	next := &SessionRecord{
		WorkspaceID:    "ws-1",
		ConversationID: "conv-1",
		Kind:           "compact",
		State:          sessionstate.StatePending,
	}
	if err := store.CreateSession(ctx, next); err != nil {
		t.Errorf("CreateSession after terminal failed: %v", err)
	}

	history, err := store.GetSessionHistory(ctx, "ws-1", "conv-1")
	if err != nil {
		t.Fatalf("GetSessionHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 sessions in history, got %d", len(history))
	}
	if history[0].ID != next.ID {
		t.Error("Expected newest session first")
	}
}
