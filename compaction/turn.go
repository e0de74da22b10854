package compaction

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RawMessage is one message of a transcript as received from the
// transcript source, before analysis.
type RawMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Importance classifies a turn's likely relevance for truncation ordering.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Weight returns the coarse rank used as the primary truncation sort key.
func (i Importance) Weight() int {
	switch i {
	case ImportanceHigh:
		return 3
	case ImportanceMedium:
		return 2
	default:
		return 1
	}
}

// Turn is one analyzed message of the transcript. Turns are immutable once
// produced by Analyze; truncation returns modified copies.
type Turn struct {
	// Index is the position in the original transcript, unique and
	// monotonically increasing. It is the stable ordering key.
	Index int `json:"index"`

	Role    Role   `json:"role"`
	Content string `json:"content"`

	// TokenCount is the estimated token count, ceil(len(content)/4).
	TokenCount int `json:"token_count"`

	// ImportanceScore is the 1-10 heuristic score driving truncation order.
	ImportanceScore int        `json:"importance_score"`
	Importance      Importance `json:"importance"`

	// Structural flags derived from content pattern matching.
	HasCode     bool `json:"has_code"`
	HasError    bool `json:"has_error"`
	HasDecision bool `json:"has_decision"`
}

// Stats summarizes an analyzed transcript.
type Stats struct {
	// TotalTurns is the number of analyzed turns.
	TotalTurns int `json:"total_turns"`

	// TotalTokens is the estimated token count across all turns.
	TotalTokens int `json:"total_tokens"`

	// HighImportanceTurns is the count of turns classified high.
	HighImportanceTurns int `json:"high_importance_turns"`
}

// Analysis is the output of Analyze: scored turns plus aggregate stats.
type Analysis struct {
	Turns []Turn `json:"turns"`
	Stats Stats  `json:"stats"`
}

// Chunk is a contiguous, ordered sub-sequence of turns whose combined token
// count respects the per-chunk ceiling. Chunks partition the truncated turn
// sequence; they never overlap and retain the original relative order.
type Chunk struct {
	// Index is the 0-based sequence index of this chunk.
	Index int `json:"index"`

	Turns []Turn `json:"turns"`

	// TokenCount is the combined estimated token count of the chunk's turns.
	TokenCount int `json:"token_count"`
}

// SumTokens returns the total estimated tokens across turns.
func SumTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += t.TokenCount
	}
	return total
}

// EstimateTokens returns the conventional character-based token estimate,
// ceil(len(content)/4).
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}
