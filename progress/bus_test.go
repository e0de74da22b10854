package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/distillpg/distillpg/sessionstate"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(8)

	ch1, unsub1 := bus.Subscribe()
	ch2, unsub2 := bus.Subscribe()
	defer unsub1()
	defer unsub2()

	event := Event{
		SessionID: uuid.New(),
		State:     sessionstate.StateProcessing,
		Step:      sessionstate.StepMapping,
		Percent:   40,
	}
	bus.Publish(event)

	for i, ch := range []<-chan Event{ch1, ch2} {
		got := drain(ch)
		if len(got) != 1 {
			t.Fatalf("subscriber %d got %d events, want 1", i, len(got))
		}
		if got[0].SessionID != event.SessionID || got[0].Step != event.Step {
			t.Errorf("subscriber %d got %+v", i, got[0])
		}
		if got[0].Time.IsZero() {
			t.Errorf("subscriber %d event has zero time", i)
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(8)

	ch, unsub := bus.Subscribe()
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel must be closed after unsubscribe")
	}
	if bus.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", bus.Subscribers())
	}

	// Publishing after the only subscriber left must not panic.
	bus.Publish(Event{State: sessionstate.StateCompleted})
}

func TestBusNoReplay(t *testing.T) {
	bus := NewBus(8)

	bus.Publish(Event{Percent: 10})

	ch, unsub := bus.Subscribe()
	defer unsub()

	if got := drain(ch); len(got) != 0 {
		t.Errorf("late subscriber received %d replayed events", len(got))
	}
}

func TestBusSlowConsumerDoesNotBlock(t *testing.T) {
	bus := NewBus(2)

	ch, unsub := bus.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Percent: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow consumer")
	}

	if bus.Dropped() == 0 {
		t.Error("expected dropped events with a full buffer")
	}

	// The survivors are the newest events, oldest evicted first.
	got := drain(ch)
	if len(got) == 0 || len(got) > 2 {
		t.Fatalf("buffered %d events with buffer size 2", len(got))
	}
	if last := got[len(got)-1].Percent; last != 99 {
		t.Errorf("newest buffered event = %d, want 99", last)
	}
}

func TestBusTerminalEventSurvivesEviction(t *testing.T) {
	bus := NewBus(2)

	ch, unsub := bus.Subscribe()
	defer unsub()

	finished := uuid.New()
	bus.Publish(Event{SessionID: finished, State: sessionstate.StateCompleted})

	// Flood from another still-running session: it may evict anything except
	// the buffered terminal event.
	noisy := uuid.New()
	for i := 0; i < 50; i++ {
		bus.Publish(Event{SessionID: noisy, State: sessionstate.StateProcessing, Percent: i})
	}

	var sawTerminal bool
	for _, ev := range drain(ch) {
		if ev.SessionID == finished && ev.Terminal() {
			sawTerminal = true
		}
	}
	if !sawTerminal {
		t.Error("terminal event was evicted by another session's flood")
	}
	if bus.Dropped() == 0 {
		t.Error("expected dropped events with a full buffer")
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus(8)

	ch, _ := bus.Subscribe()
	bus.Close()
	bus.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel must be closed after bus Close")
	}

	bus.Publish(Event{}) // discarded, no panic

	late, unsub := bus.Subscribe()
	unsub()
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed bus must return a closed channel")
	}
}

func TestEventTerminal(t *testing.T) {
	tests := []struct {
		state sessionstate.State
		want  bool
	}{
		{sessionstate.StatePending, false},
		{sessionstate.StateProcessing, false},
		{sessionstate.StateCompleted, true},
		{sessionstate.StateFailed, true},
		{sessionstate.StateCancelled, true},
	}

	for _, tt := range tests {
		ev := Event{State: tt.state}
		if ev.Terminal() != tt.want {
			t.Errorf("Terminal() for %q = %v, want %v", tt.state, ev.Terminal(), tt.want)
		}
	}
}
