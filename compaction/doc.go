// Package compaction condenses long coding-conversation transcripts into
// compact artifacts using a map-reduce summarization pipeline.
//
// The pipeline has four stages. Analyze scores each transcript turn for
// importance and detects structural features (code blocks, errors,
// decisions). TruncateToBudget drops the least important middle turns until
// the transcript fits a token budget, always preserving the opening and
// closing anchor turns. PlanChunks partitions the surviving turns into
// contiguous chunks under a per-chunk ceiling. The Engine then either
// summarizes the single chunk directly, or summarizes every chunk in order
// and combines the summaries with a kind-specific reduce prompt.
//
// When a run fails for a size-related reason (context overflow, truncated
// response), the Engine retries at the next rung of a descending budget
// ladder. Only when every rung fails does the caller see ErrBudgetExhausted.
//
// Analysis, truncation, and chunk planning are pure and deterministic; only
// the Engine touches the model.
package compaction
