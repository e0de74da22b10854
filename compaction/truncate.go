package compaction

import (
	"sort"
	"unicode/utf8"
)

// truncationMarker is appended to a turn's content when it is cut at the
// character cap.
const truncationMarker = "\n[... truncated ...]"

// TruncateToBudget selects the subset of turns to keep under the given token
// budget, preserving structural anchors and high-importance content.
//
// The first head and last tail turns are always preserved: the opening turns
// establish context and the closing turns capture the most recent exchange.
// When the anchors alone exceed the budget they are still all kept -- the
// budget is a soft target for anchors, not a hard ceiling.
//
// Non-anchor turns are dropped lowest-ranked first, ranked by
// (importance weight, importance score) descending, until the remaining total
// fits the budget or nothing droppable remains. Dropped turns are omitted,
// not replaced with placeholders, and the output preserves original order.
func TruncateToBudget(turns []Turn, budget, head, tail int) []Turn {
	total := SumTokens(turns)
	if total <= budget {
		return turns
	}

	preserved := anchorSet(len(turns), head, tail)

	// Droppable turns, lowest-ranked first.
	droppable := make([]int, 0, len(turns))
	for i := range turns {
		if !preserved[i] {
			droppable = append(droppable, i)
		}
	}
	sort.SliceStable(droppable, func(a, b int) bool {
		ta, tb := turns[droppable[a]], turns[droppable[b]]
		wa, wb := ta.Importance.Weight(), tb.Importance.Weight()
		if wa != wb {
			return wa < wb
		}
		if ta.ImportanceScore != tb.ImportanceScore {
			return ta.ImportanceScore < tb.ImportanceScore
		}
		// Equal rank: drop earlier turns first, recency wins.
		return droppable[a] < droppable[b]
	})

	dropped := make(map[int]bool, len(droppable))
	for _, idx := range droppable {
		if total <= budget {
			break
		}
		dropped[idx] = true
		total -= turns[idx].TokenCount
	}

	kept := make([]Turn, 0, len(turns)-len(dropped))
	for i, t := range turns {
		if !dropped[i] {
			kept = append(kept, t)
		}
	}
	return kept
}

// anchorSet marks the first head and last tail indexes of n turns.
// Overlapping ranges (short transcripts) simply preserve everything.
func anchorSet(n, head, tail int) map[int]bool {
	preserved := make(map[int]bool, head+tail)
	for i := 0; i < head && i < n; i++ {
		preserved[i] = true
	}
	for i := n - tail; i < n; i++ {
		if i >= 0 {
			preserved[i] = true
		}
	}
	return preserved
}

// TruncateTurnContent bounds a single turn's content to maxChars, appending a
// truncation marker and recomputing the token estimate. Turns at or under the
// cap are returned unchanged. Used before chunk planning so one pathologically
// long message cannot dominate a chunk.
func TruncateTurnContent(t Turn, maxChars int) Turn {
	if maxChars <= 0 || len(t.Content) <= maxChars {
		return t
	}

	cut := maxChars - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	// The cap is in bytes; back off to a rune boundary so the cut never
	// leaves invalid UTF-8 behind.
	for cut > 0 && !utf8.RuneStart(t.Content[cut]) {
		cut--
	}

	t.Content = t.Content[:cut] + truncationMarker
	t.TokenCount = EstimateTokens(t.Content)
	return t
}

// TruncateAllTurnContent applies TruncateTurnContent across a slice,
// returning a new slice. The input is never mutated.
func TruncateAllTurnContent(turns []Turn, maxChars int) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = TruncateTurnContent(t, maxChars)
	}
	return out
}
