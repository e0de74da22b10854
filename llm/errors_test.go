package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"budget", NewError(KindBudget, errors.New("prompt is too long")), KindBudget},
		{"auth", NewError(KindAuth, errors.New("invalid api key")), KindAuth},
		{"wrapped budget", fmt.Errorf("chunk 2: %w", NewError(KindBudget, errors.New("x"))), KindBudget},
		{"plain error", errors.New("boom"), KindUnknown},
		{"nil-ish sentinel", ErrEmptyResponse, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsBudgetError(t *testing.T) {
	if !IsBudgetError(NewError(KindBudget, errors.New("too big"))) {
		t.Error("expected budget error to be retryable")
	}
	if IsBudgetError(NewError(KindAuth, errors.New("denied"))) {
		t.Error("auth error must not be budget-retryable")
	}
	if IsBudgetError(nil) {
		t.Error("nil must not be budget-retryable")
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewError(KindNetwork, inner)
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to reach the underlying error")
	}
}

func TestCompletion_Truncated(t *testing.T) {
	c := &Completion{StopReason: "max_tokens"}
	if !c.Truncated() {
		t.Error("max_tokens stop should report truncated")
	}
	c = &Completion{StopReason: "end_turn"}
	if c.Truncated() {
		t.Error("end_turn stop should not report truncated")
	}
}
