package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type artifactKey struct {
	workspaceID    string
	conversationID string
	kind           string
}

// MemoryStore is an in-memory Store for embedding and tests. Safe for
// concurrent use; nothing survives process restart.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[artifactKey]*Artifact
	sessions  map[uuid.UUID]*SessionRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[artifactKey]*Artifact),
		sessions:  make(map[uuid.UUID]*SessionRecord),
	}
}

func (s *MemoryStore) SaveArtifact(ctx context.Context, artifact *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := artifactKey{artifact.WorkspaceID, artifact.ConversationID, artifact.Kind}

	saved := *artifact
	now := time.Now()
	if existing, ok := s.artifacts[key]; ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	} else {
		if saved.ID == uuid.Nil {
			saved.ID = uuid.New()
		}
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	s.artifacts[key] = &saved
	*artifact = saved
	return nil
}

func (s *MemoryStore) GetArtifact(ctx context.Context, workspaceID, conversationID, kind string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.artifacts[artifactKey{workspaceID, conversationID, kind}]
	if !ok {
		return nil, ErrNotFound
	}

	out := *artifact
	return &out, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sessions {
		if existing.WorkspaceID == session.WorkspaceID &&
			existing.ConversationID == session.ConversationID &&
			existing.Kind == session.Kind &&
			!existing.State.IsTerminal() {
			return ErrDuplicateActive
		}
	}

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	saved := cloneSession(session)
	s.sessions[session.ID] = saved
	return nil
}

func (s *MemoryStore) UpdateSession(ctx context.Context, session *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}

	session.CreatedAt = existing.CreatedAt
	session.Log = existing.Log
	session.UpdatedAt = time.Now()

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *MemoryStore) GetActiveSession(ctx context.Context, workspaceID, conversationID, kind string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.WorkspaceID == workspaceID &&
			session.ConversationID == conversationID &&
			session.Kind == kind &&
			!session.State.IsTerminal() {
			return cloneSession(session), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetSessionHistory(ctx context.Context, workspaceID, conversationID string) ([]*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*SessionRecord
	for _, session := range s.sessions {
		if session.WorkspaceID == workspaceID && session.ConversationID == conversationID {
			out = append(out, cloneSession(session))
		}
	}

	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AppendSessionLog(ctx context.Context, id uuid.UUID, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}

	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	session.Log = append(session.Log, entry)
	return nil
}

func cloneSession(session *SessionRecord) *SessionRecord {
	out := *session
	if session.ArtifactID != nil {
		id := *session.ArtifactID
		out.ArtifactID = &id
	}
	if session.FinishedAt != nil {
		t := *session.FinishedAt
		out.FinishedAt = &t
	}
	out.Log = append([]LogEntry(nil), session.Log...)
	return &out
}
