package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/distillpg/distillpg/compaction"
	"github.com/distillpg/distillpg/progress"
	"github.com/distillpg/distillpg/store"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
}

func TestOnSessionStart(t *testing.T) {
	r := NewRegistry()
	var captured *store.SessionRecord

	r.OnSessionStart(func(ctx context.Context, session *store.SessionRecord) error {
		captured = session
		return nil
	})

	session := &store.SessionRecord{ID: uuid.New(), Kind: "compact"}
	if err := r.TriggerSessionStart(context.Background(), session); err != nil {
		t.Errorf("TriggerSessionStart returned error: %v", err)
	}
	if captured != session {
		t.Error("hook did not receive the session")
	}
}

func TestOnProgress(t *testing.T) {
	r := NewRegistry()
	var captured progress.Event

	r.OnProgress(func(ctx context.Context, event progress.Event) error {
		captured = event
		return nil
	})

	event := progress.Event{Percent: 40}
	if err := r.TriggerProgress(context.Background(), event); err != nil {
		t.Errorf("TriggerProgress returned error: %v", err)
	}
	if captured.Percent != 40 {
		t.Error("hook did not receive the event")
	}
}

func TestOnSessionEnd(t *testing.T) {
	r := NewRegistry()
	var gotResult *compaction.Result

	r.OnSessionEnd(func(ctx context.Context, session *store.SessionRecord, result *compaction.Result) error {
		gotResult = result
		return nil
	})

	result := &compaction.Result{Content: "artifact", Strategy: compaction.StrategySinglePass}
	err := r.TriggerSessionEnd(context.Background(), &store.SessionRecord{}, result)
	if err != nil {
		t.Errorf("TriggerSessionEnd returned error: %v", err)
	}
	if gotResult != result {
		t.Error("hook did not receive the result")
	}
}

func TestOnArtifactSaved(t *testing.T) {
	r := NewRegistry()
	called := false

	r.OnArtifactSaved(func(ctx context.Context, artifact *store.Artifact) error {
		called = true
		return nil
	})

	if err := r.TriggerArtifactSaved(context.Background(), &store.Artifact{}); err != nil {
		t.Errorf("TriggerArtifactSaved returned error: %v", err)
	}
	if !called {
		t.Error("hook was not called")
	}
}

func TestHooksCalledInOrder(t *testing.T) {
	r := NewRegistry()
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		r.OnSessionStart(func(ctx context.Context, session *store.SessionRecord) error {
			order = append(order, i)
			return nil
		})
	}

	if err := r.TriggerSessionStart(context.Background(), &store.SessionRecord{}); err != nil {
		t.Fatalf("TriggerSessionStart returned error: %v", err)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("hooks ran out of order: %v", order)
	}
}

func TestHookErrorAbortsTrigger(t *testing.T) {
	r := NewRegistry()
	hookErr := errors.New("hook failed")
	secondCalled := false

	r.OnSessionStart(func(ctx context.Context, session *store.SessionRecord) error {
		return hookErr
	})
	r.OnSessionStart(func(ctx context.Context, session *store.SessionRecord) error {
		secondCalled = true
		return nil
	})

	err := r.TriggerSessionStart(context.Background(), &store.SessionRecord{})
	if !errors.Is(err, hookErr) {
		t.Errorf("expected hook error, got %v", err)
	}
	if secondCalled {
		t.Error("later hooks must not run after an error")
	}
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.OnProgress(func(ctx context.Context, event progress.Event) error { return nil })
			_ = r.TriggerProgress(context.Background(), progress.Event{})
		}()
	}
	wg.Wait()
}
