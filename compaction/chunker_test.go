package compaction

import (
	"reflect"
	"testing"
)

func TestPlanChunksPartitionsInput(t *testing.T) {
	turns := makeTurns(10, 30)

	chunks := PlanChunks(turns, 100)

	// 30+30+30 = 90 fits, a fourth turn would overflow: chunks of 3,3,3,1.
	wantSizes := []int{3, 3, 3, 1}
	if len(chunks) != len(wantSizes) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantSizes))
	}

	var flat []Turn
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if len(c.Turns) != wantSizes[i] {
			t.Errorf("chunk %d has %d turns, want %d", i, len(c.Turns), wantSizes[i])
		}
		if c.TokenCount != SumTokens(c.Turns) {
			t.Errorf("chunk %d TokenCount = %d, want %d", i, c.TokenCount, SumTokens(c.Turns))
		}
		if c.TokenCount > 100 && len(c.Turns) > 1 {
			t.Errorf("chunk %d exceeds ceiling with %d turns", i, len(c.Turns))
		}
		flat = append(flat, c.Turns...)
	}

	if !reflect.DeepEqual(flat, turns) {
		t.Error("concatenated chunks do not reproduce the input")
	}
}

func TestPlanChunksOversizedTurn(t *testing.T) {
	turns := []Turn{
		{Index: 0, TokenCount: 10},
		{Index: 1, TokenCount: 500}, // alone exceeds the ceiling
		{Index: 2, TokenCount: 10},
	}

	chunks := PlanChunks(turns, 100)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[1].Turns) != 1 || chunks[1].Turns[0].Index != 1 {
		t.Errorf("oversized turn must occupy its own chunk, got %+v", chunks[1])
	}
}

func TestPlanChunksSingle(t *testing.T) {
	turns := makeTurns(3, 10)

	chunks := PlanChunks(turns, 1000)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Index != 0 || len(chunks[0].Turns) != 3 {
		t.Errorf("unexpected chunk: index %d, %d turns", chunks[0].Index, len(chunks[0].Turns))
	}
}

func TestPlanChunksEmpty(t *testing.T) {
	if chunks := PlanChunks(nil, 100); chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
}
