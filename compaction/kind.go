package compaction

// Kind selects the artifact variant a run produces. All kinds share the same
// session, progress, and cache contracts; only the prompts and the shape of
// the final content differ.
type Kind string

const (
	// KindCompact produces a condensed replacement transcript.
	KindCompact Kind = "compact"

	// KindOverview produces a sectioned overview with diagram blocks.
	KindOverview Kind = "overview"

	// KindExercises produces practice exercises derived from the conversation.
	KindExercises Kind = "exercises"
)

// AllKinds returns the supported artifact kinds.
func AllKinds() []Kind {
	return []Kind{KindCompact, KindOverview, KindExercises}
}

// IsValid returns true if the kind is a known value.
func (k Kind) IsValid() bool {
	switch k {
	case KindCompact, KindOverview, KindExercises:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Strategy identifies how a run condensed the transcript.
type Strategy string

const (
	// StrategySinglePass summarizes the whole truncated transcript in one call.
	StrategySinglePass Strategy = "single_pass"

	// StrategyMapReduce summarizes each chunk independently, then combines
	// the chunk summaries into the final artifact.
	StrategyMapReduce Strategy = "map_reduce"
)
