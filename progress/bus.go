// Package progress provides an in-process event bus for compaction session
// progress.
//
// The bus is fire-and-forget: publishing never blocks, there is no replay for
// late subscribers, and a slow consumer loses its oldest buffered events
// rather than stalling the pipeline. Buffered terminal events are exempt from
// eviction. Callers that need history read the session log from the store
// instead.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/distillpg/distillpg/sessionstate"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

// Event is one progress report for a compaction session.
type Event struct {
	// WorkspaceID, ConversationID, and Kind identify the artifact being
	// produced.
	WorkspaceID    string `json:"workspace_id"`
	ConversationID string `json:"conversation_id"`
	Kind           string `json:"kind"`

	// SessionID is the session producing the artifact.
	SessionID uuid.UUID `json:"session_id"`

	// State is the session state at the time of the event.
	State sessionstate.State `json:"state"`

	// Step and Percent describe pipeline position for processing sessions.
	Step    sessionstate.Step `json:"step,omitempty"`
	Percent int               `json:"percent"`

	// ChunksTotal and ChunksProcessed describe map progress, both zero
	// before chunk planning.
	ChunksTotal     int `json:"chunks_total"`
	ChunksProcessed int `json:"chunks_processed"`

	// Err carries the failure message for failed sessions.
	Err string `json:"error,omitempty"`

	// Time is when the event was published.
	Time time.Time `json:"time"`
}

// Terminal returns true if this event reports a finished session. A terminal
// event is the last one published for its session.
func (e Event) Terminal() bool {
	return e.State.IsTerminal()
}

type subscriber struct {
	id int64
	ch chan Event
}

// Bus fans progress events out to subscribers.
type Bus struct {
	bufferSize int

	mu     sync.RWMutex
	subs   []*subscriber
	nextID int64
	closed bool

	dropped atomic.Int64
}

// NewBus creates a Bus. bufferSize is the per-subscriber buffer; values
// below 1 use DefaultBufferSize.
func NewBus(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers a consumer and returns its event channel plus an
// unsubscribe function. Only events published after the call are delivered.
// Unsubscribing closes the channel; unsubscribe is idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		id: b.nextID,
		ch: make(chan Event, b.bufferSize),
	}
	b.nextID++

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	b.subs = append(b.subs, sub)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.unsubscribe(sub.id) })
	}
}

func (b *Bus) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Publish delivers an event to every subscriber without blocking. When a
// subscriber's buffer is full its oldest event is discarded to make room;
// drops are counted, never waited on.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		// Buffer full: evict the oldest event to make room, then retry
		// once. A buffered terminal event is never discarded -- it is
		// requeued and the new event loses instead, so a flood from one
		// session cannot erase another session's final state. The sends
		// can still lose a race with a concurrent publisher; give up
		// rather than block.
		select {
		case old := <-sub.ch:
			if !old.Terminal() {
				b.dropped.Add(1)
				break
			}
			select {
			case sub.ch <- old:
			default:
				b.dropped.Add(1)
			}
		default:
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the total number of events discarded across all
// subscribers since the bus was created.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down: all subscriber channels are closed and further
// publishes are discarded. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
