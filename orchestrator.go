package distillpg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/distillpg/distillpg/compaction"
	"github.com/distillpg/distillpg/hooks"
	"github.com/distillpg/distillpg/progress"
	"github.com/distillpg/distillpg/sessionstate"
	"github.com/distillpg/distillpg/store"
)

// Version is the current distillpg version
const Version = "1.0.0"

type activeKey struct {
	workspaceID    string
	conversationID string
	kind           string
}

// activeSession is the in-process handle for a running session.
type activeSession struct {
	id        uuid.UUID
	cancelled atomic.Bool
	done      chan struct{}
}

// Orchestrator coordinates compaction sessions: it enforces one active
// session per (workspace, conversation, kind), runs the engine in the
// background, persists session state, and publishes progress events.
//
// All methods are safe for concurrent use.
type Orchestrator struct {
	store  store.Store
	source TranscriptSource
	engine *compaction.Engine
	bus    *progress.Bus
	hooks  *hooks.Registry
	logger compaction.Logger

	// lookups collapses concurrent cache reads for the same key into one
	// store query.
	lookups singleflight.Group

	mu     sync.Mutex
	active map[activeKey]*activeSession
	closed bool
	wg     sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ic := defaultInternalConfig()
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}

	engine, err := compaction.NewEngine(cfg.Client, ic.compaction, ic.logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		store:  cfg.Store,
		source: cfg.Source,
		engine: engine,
		bus:    progress.NewBus(ic.busBuffer),
		hooks:  ic.hooks,
		logger: ic.logger,
		active: make(map[activeKey]*activeSession),
	}, nil
}

// Start begins producing an artifact for the request's key and kind.
//
// Unless Force is set, an existing artifact short-circuits the start: the
// result carries the cached artifact and no session is created. Otherwise a
// session record is persisted in the pending state and the pipeline runs in
// the background; follow it via OnProgress or GetSessionStatus.
//
// Only input and conflict errors are returned here. Failures inside the
// pipeline surface as a failed session, never as a Start error.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if !req.Key.Valid() {
		return nil, NewSessionError("Start", fmt.Errorf("%w: workspace and conversation IDs are required", ErrInvalidConfig))
	}
	if !req.Kind.IsValid() {
		return nil, NewSessionError("Start", compaction.ErrUnknownKind).
			WithContext("kind", string(req.Kind))
	}
	if req.Messages != nil && len(req.Messages) == 0 {
		return nil, NewSessionError("Start", compaction.ErrEmptyTranscript)
	}
	if req.Messages == nil && o.source == nil {
		return nil, NewSessionError("Start", ErrNoTranscript)
	}

	if !req.Force {
		artifact, err := o.lookupArtifact(ctx, req.Key, req.Kind)
		if err == nil {
			return &StartResult{Artifact: artifact, CacheHit: true}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, NewSessionError("Start", err)
		}
	}

	record := &store.SessionRecord{
		WorkspaceID:    req.Key.WorkspaceID,
		ConversationID: req.Key.ConversationID,
		Kind:           string(req.Kind),
		State:          sessionstate.StatePending,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, NewSessionError("Start", ErrClosed)
	}

	key := activeKey{req.Key.WorkspaceID, req.Key.ConversationID, string(req.Kind)}
	if _, exists := o.active[key]; exists {
		o.mu.Unlock()
		return nil, NewSessionError("Start", ErrAlreadyInProgress)
	}

	if err := o.store.CreateSession(ctx, record); err != nil {
		o.mu.Unlock()
		if errors.Is(err, store.ErrDuplicateActive) {
			return nil, NewSessionError("Start", ErrAlreadyInProgress)
		}
		return nil, NewSessionError("Start", err)
	}

	sess := &activeSession{id: record.ID, done: make(chan struct{})}
	o.active[key] = sess
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(key, sess, record, req)

	// The goroutine owns record from here on; hand the caller a snapshot.
	snapshot := *record
	return &StartResult{Session: &snapshot}, nil
}

// run drives one session to a terminal state. It always publishes exactly
// one terminal event, regardless of outcome. The active-map entry is removed
// before the terminal state is persisted, so a caller that observes a
// terminal session can start the next one immediately.
func (o *Orchestrator) run(key activeKey, sess *activeSession, record *store.SessionRecord, req StartRequest) {
	// Lifecycle outlives the Start caller's context.
	ctx := context.Background()

	finalState := sessionstate.StateFailed
	finalMsg := "internal error"
	var finalResult *compaction.Result

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("session panicked", "session_id", record.ID, "panic", r)
			finalState = sessionstate.StateFailed
			finalMsg = fmt.Sprintf("internal error: %v", r)
			finalResult = nil
		}

		o.mu.Lock()
		delete(o.active, key)
		o.mu.Unlock()

		o.finish(ctx, record, finalState, finalMsg, finalResult)
		close(sess.done)
		o.wg.Done()
	}()

	messages := req.Messages
	if messages == nil {
		loaded, err := o.source.Load(ctx, req.Key)
		if err != nil {
			finalMsg = fmt.Sprintf("loading transcript: %v", err)
			return
		}
		messages = loaded
	}

	record.State = sessionstate.StateProcessing
	record.Step = sessionstate.StepAnalyzing
	record.Percent = sessionstate.StepAnalyzing.Progress()
	o.persist(ctx, record)
	o.appendLog(ctx, record.ID, "info", "session started")

	if err := o.hooks.TriggerSessionStart(ctx, record); err != nil {
		o.logger.Warn("session start hook failed", "session_id", record.ID, "error", err)
	}
	o.publish(record)

	lastStep := record.Step
	result, err := o.engine.Run(ctx, compaction.RunRequest{
		Messages:  messages,
		Kind:      req.Kind,
		SessionID: record.ID,
		Cancelled: sess.cancelled.Load,
		OnProgress: func(p compaction.Progress) {
			record.Step = p.Step
			record.Percent = p.Percent
			record.ChunksTotal = p.ChunksTotal
			record.ChunksProcessed = p.ChunksProcessed
			o.persist(ctx, record)
			if p.Step != lastStep {
				o.appendLog(ctx, record.ID, "info", fmt.Sprintf("entered step %s", p.Step))
				lastStep = p.Step
			}
			o.publish(record)
			if hookErr := o.hooks.TriggerProgress(ctx, o.event(record)); hookErr != nil {
				o.logger.Warn("progress hook failed", "session_id", record.ID, "error", hookErr)
			}
		},
	})

	switch {
	case err == nil:
		artifact := &store.Artifact{
			WorkspaceID:     record.WorkspaceID,
			ConversationID:  record.ConversationID,
			Kind:            record.Kind,
			Content:         result.Content,
			Strategy:        string(result.Strategy),
			ChunkCount:      result.ChunkCount,
			OriginalTokens:  result.OriginalTokens,
			CompactedTokens: result.CompactedTokens,
			BudgetUsed:      result.BudgetUsed,
			ModelUsed:       result.ModelUsed,
		}
		if saveErr := o.store.SaveArtifact(ctx, artifact); saveErr != nil {
			o.appendLog(ctx, record.ID, "error", fmt.Sprintf("saving artifact: %v", saveErr))
			finalMsg = fmt.Sprintf("saving artifact: %v", saveErr)
			return
		}
		if hookErr := o.hooks.TriggerArtifactSaved(ctx, artifact); hookErr != nil {
			o.logger.Warn("artifact hook failed", "session_id", record.ID, "error", hookErr)
		}
		record.ArtifactID = &artifact.ID
		o.appendLog(ctx, record.ID, "info",
			fmt.Sprintf("completed: %d -> %d tokens (%s, %d chunks)",
				result.OriginalTokens, result.CompactedTokens, result.Strategy, result.ChunkCount))
		finalState = sessionstate.StateCompleted
		finalMsg = ""
		finalResult = result

	case errors.Is(err, compaction.ErrCancelled):
		o.appendLog(ctx, record.ID, "info", "session cancelled")
		finalState = sessionstate.StateCancelled
		finalMsg = ""

	default:
		o.appendLog(ctx, record.ID, "error", err.Error())
		finalMsg = err.Error()
	}
}

// finish moves the record to a terminal state, persists it, and publishes
// the terminal event.
func (o *Orchestrator) finish(ctx context.Context, record *store.SessionRecord, state sessionstate.State, errMsg string, result *compaction.Result) {
	record.State = state
	record.ErrorMessage = errMsg
	if state == sessionstate.StateCompleted {
		record.Percent = 100
	}
	now := time.Now()
	record.FinishedAt = &now

	o.persist(ctx, record)
	o.publish(record)

	if err := o.hooks.TriggerSessionEnd(ctx, record, result); err != nil {
		o.logger.Warn("session end hook failed", "session_id", record.ID, "error", err)
	}
}

func (o *Orchestrator) persist(ctx context.Context, record *store.SessionRecord) {
	if err := o.store.UpdateSession(ctx, record); err != nil {
		o.logger.Error("failed to persist session", "session_id", record.ID, "error", err)
	}
}

func (o *Orchestrator) appendLog(ctx context.Context, id uuid.UUID, level, msg string) {
	if err := o.store.AppendSessionLog(ctx, id, store.LogEntry{Level: level, Message: msg}); err != nil {
		o.logger.Error("failed to append session log", "session_id", id, "error", err)
	}
}

func (o *Orchestrator) event(record *store.SessionRecord) progress.Event {
	return progress.Event{
		WorkspaceID:     record.WorkspaceID,
		ConversationID:  record.ConversationID,
		Kind:            record.Kind,
		SessionID:       record.ID,
		State:           record.State,
		Step:            record.Step,
		Percent:         record.Percent,
		ChunksTotal:     record.ChunksTotal,
		ChunksProcessed: record.ChunksProcessed,
		Err:             record.ErrorMessage,
	}
}

func (o *Orchestrator) publish(record *store.SessionRecord) {
	o.bus.Publish(o.event(record))
}

// lookupArtifact reads from the cache, collapsing concurrent lookups of the
// same key into one query.
func (o *Orchestrator) lookupArtifact(ctx context.Context, key Key, kind compaction.Kind) (*store.Artifact, error) {
	flightKey := key.WorkspaceID + "\x00" + key.ConversationID + "\x00" + string(kind)
	v, err, _ := o.lookups.Do(flightKey, func() (any, error) {
		return o.store.GetArtifact(ctx, key.WorkspaceID, key.ConversationID, string(kind))
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Artifact), nil
}

// Cancel requests cancellation of a session. For a running session the
// request is cooperative: the in-flight model call finishes, nothing further
// starts, and the session lands in the cancelled state without a partial
// artifact. Cancelling a terminal session is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID uuid.UUID) error {
	o.mu.Lock()
	for _, sess := range o.active {
		if sess.id == sessionID {
			sess.cancelled.Store(true)
			o.mu.Unlock()
			return nil
		}
	}
	o.mu.Unlock()

	record, err := o.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return NewSessionError("Cancel", ErrSessionNotFound).WithSession(sessionID)
	}
	if err != nil {
		return NewSessionError("Cancel", err).WithSession(sessionID)
	}

	if record.State.IsTerminal() {
		return nil
	}

	// Not running in this process (e.g. orphaned by a crash): mark it
	// cancelled directly.
	record.State = sessionstate.StateCancelled
	now := time.Now()
	record.FinishedAt = &now
	if err := o.store.UpdateSession(ctx, record); err != nil {
		return NewSessionError("Cancel", err).WithSession(sessionID)
	}
	o.bus.Publish(o.event(record))
	return nil
}

// GetSessionStatus returns the current session record.
func (o *Orchestrator) GetSessionStatus(ctx context.Context, sessionID uuid.UUID) (*store.SessionRecord, error) {
	record, err := o.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewSessionError("GetSessionStatus", ErrSessionNotFound).WithSession(sessionID)
	}
	if err != nil {
		return nil, NewSessionError("GetSessionStatus", err).WithSession(sessionID)
	}
	return record, nil
}

// GetActiveSession returns the non-terminal session for the key and kind,
// or ErrSessionNotFound when none is active.
func (o *Orchestrator) GetActiveSession(ctx context.Context, key Key, kind compaction.Kind) (*store.SessionRecord, error) {
	record, err := o.store.GetActiveSession(ctx, key.WorkspaceID, key.ConversationID, string(kind))
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewSessionError("GetActiveSession", ErrSessionNotFound)
	}
	if err != nil {
		return nil, NewSessionError("GetActiveSession", err)
	}
	return record, nil
}

// GetArtifact returns the cached artifact for the key and kind, or
// store.ErrNotFound (wrapped) when none exists.
func (o *Orchestrator) GetArtifact(ctx context.Context, key Key, kind compaction.Kind) (*store.Artifact, error) {
	artifact, err := o.lookupArtifact(ctx, key, kind)
	if err != nil {
		return nil, NewSessionError("GetArtifact", err)
	}
	return artifact, nil
}

// GetSessionHistory returns all sessions for a conversation, newest first.
func (o *Orchestrator) GetSessionHistory(ctx context.Context, key Key) ([]*store.SessionRecord, error) {
	history, err := o.store.GetSessionHistory(ctx, key.WorkspaceID, key.ConversationID)
	if err != nil {
		return nil, NewSessionError("GetSessionHistory", err)
	}
	return history, nil
}

// OnProgress subscribes to progress events for all sessions. Events are
// delivered from the moment of subscription; there is no replay. The
// returned function unsubscribes and closes the channel.
func (o *Orchestrator) OnProgress() (<-chan progress.Event, func()) {
	return o.bus.Subscribe()
}

// Close cancels every running session and waits for them to finish or for
// the context to expire. After Close, Start returns ErrClosed.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for _, sess := range o.active {
		sess.cancelled.Store(true)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.bus.Close()
		return nil
	case <-ctx.Done():
		return NewSessionError("Close", ctx.Err())
	}
}
