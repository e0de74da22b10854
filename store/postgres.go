package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distillpg/distillpg/sessionstate"
)

// Schema creates the tables and indexes used by PostgresStore. Idempotent;
// run it once per database, or call EnsureSchema at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS distillpg_artifacts (
	id UUID PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	chunk_count INT NOT NULL DEFAULT 0,
	original_tokens INT NOT NULL DEFAULT 0,
	compacted_tokens INT NOT NULL DEFAULT 0,
	budget_used INT NOT NULL DEFAULT 0,
	model_used TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (workspace_id, conversation_id, kind)
);

CREATE TABLE IF NOT EXISTS distillpg_sessions (
	id UUID PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	state TEXT NOT NULL,
	step TEXT NOT NULL DEFAULT '',
	percent INT NOT NULL DEFAULT 0,
	chunks_total INT NOT NULL DEFAULT 0,
	chunks_processed INT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	artifact_id UUID,
	log JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS distillpg_sessions_conversation_idx
	ON distillpg_sessions (workspace_id, conversation_id, created_at DESC);

CREATE UNIQUE INDEX IF NOT EXISTS distillpg_sessions_active_idx
	ON distillpg_sessions (workspace_id, conversation_id, kind)
	WHERE state IN ('pending', 'processing');
`

// txContextKey is the context key for storing pgx.Tx
type txContextKey struct{}

// WithTx returns a new context with the given transaction. Store calls made
// with the returned context run inside that transaction.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction from context, or nil if not present
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// querier is a common interface for pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL with pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// getQuerier returns the transaction from context if present, otherwise the pool
func (s *PostgresStore) getQuerier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) SaveArtifact(ctx context.Context, artifact *Artifact) error {
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}

	query := `
		INSERT INTO distillpg_artifacts (
			id, workspace_id, conversation_id, kind, content, strategy,
			chunk_count, original_tokens, compacted_tokens, budget_used,
			model_used, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (workspace_id, conversation_id, kind) DO UPDATE SET
			content = EXCLUDED.content,
			strategy = EXCLUDED.strategy,
			chunk_count = EXCLUDED.chunk_count,
			original_tokens = EXCLUDED.original_tokens,
			compacted_tokens = EXCLUDED.compacted_tokens,
			budget_used = EXCLUDED.budget_used,
			model_used = EXCLUDED.model_used,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := s.getQuerier(ctx).QueryRow(ctx, query,
		artifact.ID,
		artifact.WorkspaceID,
		artifact.ConversationID,
		artifact.Kind,
		artifact.Content,
		artifact.Strategy,
		artifact.ChunkCount,
		artifact.OriginalTokens,
		artifact.CompactedTokens,
		artifact.BudgetUsed,
		artifact.ModelUsed,
	).Scan(&artifact.ID, &artifact.CreatedAt, &artifact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetArtifact(ctx context.Context, workspaceID, conversationID, kind string) (*Artifact, error) {
	query := `
		SELECT id, workspace_id, conversation_id, kind, content, strategy,
		       chunk_count, original_tokens, compacted_tokens, budget_used,
		       model_used, created_at, updated_at
		FROM distillpg_artifacts
		WHERE workspace_id = $1 AND conversation_id = $2 AND kind = $3
	`

	var artifact Artifact
	err := s.getQuerier(ctx).QueryRow(ctx, query, workspaceID, conversationID, kind).Scan(
		&artifact.ID,
		&artifact.WorkspaceID,
		&artifact.ConversationID,
		&artifact.Kind,
		&artifact.Content,
		&artifact.Strategy,
		&artifact.ChunkCount,
		&artifact.OriginalTokens,
		&artifact.CompactedTokens,
		&artifact.BudgetUsed,
		&artifact.ModelUsed,
		&artifact.CreatedAt,
		&artifact.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return &artifact, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *SessionRecord) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	query := `
		INSERT INTO distillpg_sessions (
			id, workspace_id, conversation_id, kind, state, step, percent,
			chunks_total, chunks_processed, error_message, artifact_id, log,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '[]', NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := s.getQuerier(ctx).QueryRow(ctx, query,
		session.ID,
		session.WorkspaceID,
		session.ConversationID,
		session.Kind,
		string(session.State),
		string(session.Step),
		session.Percent,
		session.ChunksTotal,
		session.ChunksProcessed,
		session.ErrorMessage,
		session.ArtifactID,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateActive
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *SessionRecord) error {
	query := `
		UPDATE distillpg_sessions
		SET state = $2, step = $3, percent = $4, chunks_total = $5,
		    chunks_processed = $6, error_message = $7, artifact_id = $8,
		    finished_at = $9, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := s.getQuerier(ctx).Exec(ctx, query,
		session.ID,
		string(session.State),
		string(session.Step),
		session.Percent,
		session.ChunksTotal,
		session.ChunksProcessed,
		session.ErrorMessage,
		session.ArtifactID,
		session.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

const sessionColumns = `id, workspace_id, conversation_id, kind, state, step, percent,
	chunks_total, chunks_processed, error_message, artifact_id, log,
	created_at, updated_at, finished_at`

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM distillpg_sessions WHERE id = $1`

	session, err := scanSession(s.getQuerier(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetActiveSession(ctx context.Context, workspaceID, conversationID, kind string) (*SessionRecord, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM distillpg_sessions
		WHERE workspace_id = $1 AND conversation_id = $2 AND kind = $3
		  AND state IN ('pending', 'processing')
	`

	session, err := scanSession(s.getQuerier(ctx).QueryRow(ctx, query, workspaceID, conversationID, kind))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetSessionHistory(ctx context.Context, workspaceID, conversationID string) ([]*SessionRecord, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM distillpg_sessions
		WHERE workspace_id = $1 AND conversation_id = $2
		ORDER BY created_at DESC
	`

	rows, err := s.getQuerier(ctx).Query(ctx, query, workspaceID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var sessions []*SessionRecord
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

func (s *PostgresStore) AppendSessionLog(ctx context.Context, id uuid.UUID, entry LogEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	query := `
		UPDATE distillpg_sessions
		SET log = log || $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := s.getQuerier(ctx).Exec(ctx, query, id, entryJSON)
	if err != nil {
		return fmt.Errorf("failed to append session log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// scanSession reads one session row. Works for both QueryRow and rows.Next
// iteration.
func scanSession(row pgx.Row) (*SessionRecord, error) {
	var (
		session SessionRecord
		state   string
		step    string
		logJSON []byte
	)

	err := row.Scan(
		&session.ID,
		&session.WorkspaceID,
		&session.ConversationID,
		&session.Kind,
		&state,
		&step,
		&session.Percent,
		&session.ChunksTotal,
		&session.ChunksProcessed,
		&session.ErrorMessage,
		&session.ArtifactID,
		&logJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
		&session.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	session.State = sessionstate.State(state)
	session.Step = sessionstate.Step(step)

	if len(logJSON) > 0 {
		if err := json.Unmarshal(logJSON, &session.Log); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session log: %w", err)
		}
	}

	return &session, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
