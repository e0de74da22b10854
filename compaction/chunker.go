package compaction

// PlanChunks splits an ordered turn sequence into budget-bounded chunks
// suitable for independent summarization.
//
// The pass is greedy: turns accumulate into the current chunk while the
// running total stays within maxTokensPerChunk; otherwise the chunk is closed
// and a new one starts with the next turn. A chunk always contains at least
// one turn, even when that turn alone exceeds the ceiling -- content is never
// silently dropped here, truncation happens earlier.
//
// Output chunks are 0-indexed, strictly ordered, and partition the input:
// concatenating their turns reproduces the input exactly.
func PlanChunks(turns []Turn, maxTokensPerChunk int) []Chunk {
	if len(turns) == 0 {
		return nil
	}

	var chunks []Chunk
	current := Chunk{Index: 0}

	for _, t := range turns {
		if len(current.Turns) > 0 && current.TokenCount+t.TokenCount > maxTokensPerChunk {
			chunks = append(chunks, current)
			current = Chunk{Index: len(chunks)}
		}
		current.Turns = append(current.Turns, t)
		current.TokenCount += t.TokenCount
	}

	chunks = append(chunks, current)
	return chunks
}
