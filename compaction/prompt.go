package compaction

import (
	"fmt"
	"strings"
)

// MapSystemPrompt is the system prompt for per-chunk summarization.
// Each chunk is summarized independently; the reduce step relies on these
// summaries arriving in document order, so every summary must be
// self-contained.
const MapSystemPrompt = `You are summarizing one segment of a longer AI-assisted coding conversation. Other segments are summarized separately, so this summary must stand on its own.

Preserve the following from the segment:

1. **Code blocks** - reproduce fenced code blocks verbatim, with their language tags. Never paraphrase code.
2. **Decisions** - every choice made, what was chosen over what, and why.
3. **Errors and outcomes** - errors encountered, their resolutions, and what ended up working.
4. **Files and names** - exact file paths, function names, and identifiers mentioned.

Guidelines:
- Keep chronological order within the segment.
- Be concise for conversational filler, exhaustive for technical content.
- Do not add information that is not in the segment.`

// CompactReduceSystemPrompt drives the reduce step for the compact artifact.
// The section structure follows production summarization patterns for AI
// coding assistants.
const CompactReduceSystemPrompt = `You are a conversation summarizer for a coding-conversation browser. Combine the segment summaries you are given into one compacted transcript that can replace the original conversation while preserving all critical context.

Structure the output with the following sections. If a section has no relevant content, write "None".

1. **Primary Request and Intent**
2. **Key Technical Concepts**
3. **Files and Code Sections** - keep code blocks verbatim
4. **Errors and Fixes**
5. **Problem Solving**
6. **Pending Tasks**
7. **Current State and Next Step**

Guidelines:
- The segment summaries are in chronological order; maintain that order within each section.
- Merge duplicate mentions across segments.
- Preserve exact user quotes when they convey important intent.
- Include specific details: file names, function names, error messages.
- Do not add information that was not in the conversation.`

// OverviewReduceSystemPrompt drives the reduce step for the overview artifact.
const OverviewReduceSystemPrompt = `You are producing a structured overview of an AI-assisted coding conversation from segment summaries. The overview is read by a person browsing the conversation later.

Produce markdown with exactly these sections:

## Summary
Two or three paragraphs covering what the conversation accomplished.

## Architecture
A mermaid diagram (in a fenced ` + "```mermaid" + ` block) showing the components discussed and how they relate. If no architecture was discussed, write "None".

## Flow
A mermaid sequence or flowchart diagram of the main process the conversation built or debugged. If none applies, write "None".

## Key Decisions
Bullet list: each decision, the alternative it beat, and the reason.

## Errors Encountered
Bullet list: each error and its resolution.

## Glossary
Terms introduced in the conversation a future reader may not know.

Guidelines:
- Diagrams must be valid mermaid syntax.
- Do not invent components or decisions not present in the summaries.`

// ExercisesReduceSystemPrompt drives the reduce step for the exercises artifact.
const ExercisesReduceSystemPrompt = `You are producing practice exercises from segment summaries of an AI-assisted coding conversation. The learner wants to internalize what the conversation covered.

Produce markdown with 3 to 6 exercises. For each exercise:

### Exercise N: <title>
- **Goal**: what the learner should be able to do afterward.
- **Task**: the concrete task, referencing the technologies from the conversation.
- **Hints**: one or two hints drawn from how the problem was solved in the conversation.
- **Solution sketch**: a short outline of the expected approach, with code in fenced blocks where helpful.

Guidelines:
- Order exercises from easier to harder.
- Ground every exercise in something the conversation actually did.
- Do not require tools or APIs the conversation never mentioned.`

// BuildMapUserPrompt creates the user message for one chunk's map call.
func BuildMapUserPrompt(chunk Chunk, chunksTotal int) string {
	return fmt.Sprintf(`Summarize segment %d of %d of the conversation below according to your instructions.

<segment>
%s</segment>`, chunk.Index+1, chunksTotal, FormatTurnsAsText(chunk.Turns))
}

// BuildReduceUserPrompt creates the user message combining chunk summaries.
// Summaries must be passed in chunk order.
func BuildReduceUserPrompt(summaries []string) string {
	var b strings.Builder
	b.WriteString("Combine the following segment summaries, given in chronological order, into the final document described in your instructions.\n\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "<segment_summary index=\"%d\">\n%s\n</segment_summary>\n\n", i+1, s)
	}
	b.WriteString("Produce the final document now.")
	return b.String()
}

// BuildSinglePassUserPrompt creates the user message for a transcript that
// fits in one chunk: the reduce instructions are applied directly to the
// conversation text.
func BuildSinglePassUserPrompt(turns []Turn) string {
	return fmt.Sprintf(`Produce the final document described in your instructions directly from the conversation below.

<conversation>
%s</conversation>`, FormatTurnsAsText(turns))
}

// ReduceSystemPrompt returns the reduce-step system prompt for a kind.
func ReduceSystemPrompt(kind Kind) (string, error) {
	switch kind {
	case KindCompact:
		return CompactReduceSystemPrompt, nil
	case KindOverview:
		return OverviewReduceSystemPrompt, nil
	case KindExercises:
		return ExercisesReduceSystemPrompt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// FormatTurnsAsText renders turns as readable labeled text for prompting.
func FormatTurnsAsText(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(":\n")
		b.WriteString(t.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
