package compaction

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Importance scoring constants. The formula is deterministic: a pure
// function of the structural flags and keyword hits, clamped to [1,10].
const (
	baseScore          = 5
	codeBonus          = 2
	decisionBonus      = 2
	errorBonus         = 1
	highKeywordBonus   = 1
	lowKeywordPenalty  = 2
	shortTurnPenalty   = 1
	shortTurnThreshold = 50

	highClassThreshold   = 8
	mediumClassThreshold = 5
)

// errorPatterns match error-like text, case-insensitively.
var errorPatterns = []string{
	"error:",
	"exception:",
	"failed:",
	"fatal:",
	"panic:",
	"stack trace",
	"traceback",
}

// decisionKeywords match language that records a choice being made.
var decisionKeywords = []string{
	"decided to",
	"chose to",
	"instead of",
	"went with",
	"opted for",
	"settled on",
	"we should use",
	"let's go with",
}

// highValuePattern nudges a turn up one point. Matched on word boundaries so
// that e.g. "prefixed" does not count as "fixed".
var highValuePattern = regexp.MustCompile(`\b(important|critical|solved|fixed|root cause|breaking change|security)\b`)

// lowValuePattern marks conversational filler. Word boundaries matter here
// too: "ok" must not match inside "backoff" or "token".
var lowValuePattern = regexp.MustCompile(`\b(thanks|thank you|okay|ok|hello|hi there|got it|sounds good|you're welcome)\b`)

// htmlTagPattern detects markup worth stripping before analysis. Transcripts
// exported from web apps sometimes carry rendered HTML around the text.
var htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// htmlStripper removes all markup, keeping text content only.
var htmlStripper = bluemonday.StrictPolicy()

// markdown is the parser used for fenced code block detection.
var markdown = goldmark.New()

// Analyze parses a raw transcript into scored, typed turns plus aggregate
// stats. It is pure and deterministic: the same input always produces the
// same output, and nothing is mutated.
func Analyze(messages []RawMessage) *Analysis {
	turns := make([]Turn, 0, len(messages))
	stats := Stats{}

	for i, msg := range messages {
		content := normalizeContent(msg.Text)

		turn := Turn{
			Index:       i,
			Role:        msg.Role,
			Content:     content,
			TokenCount:  EstimateTokens(content),
			HasCode:     hasFencedCode(content),
			HasError:    hasErrorText(content),
			HasDecision: hasDecisionText(content),
		}
		turn.ImportanceScore = scoreTurn(turn)
		turn.Importance = classify(turn.ImportanceScore)

		turns = append(turns, turn)

		stats.TotalTokens += turn.TokenCount
		if turn.Importance == ImportanceHigh {
			stats.HighImportanceTurns++
		}
	}

	stats.TotalTurns = len(turns)

	return &Analysis{Turns: turns, Stats: stats}
}

// normalizeContent strips HTML markup when present. Fenced code is left
// untouched; only content that actually contains tags is sanitized.
func normalizeContent(text string) string {
	if !htmlTagPattern.MatchString(text) {
		return text
	}
	return htmlStripper.Sanitize(text)
}

// hasFencedCode reports whether the content contains a fenced or indented
// code block, determined by walking the markdown AST.
func hasFencedCode(content string) bool {
	if !strings.Contains(content, "```") && !strings.Contains(content, "~~~") {
		// Cheap pre-check; the parser only runs on likely candidates.
		return false
	}

	root := markdown.Parser().Parse(text.NewReader([]byte(content)))

	found := false
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return found
}

func hasErrorText(content string) bool {
	return containsAny(strings.ToLower(content), errorPatterns)
}

func hasDecisionText(content string) bool {
	return containsAny(strings.ToLower(content), decisionKeywords)
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// scoreTurn applies the importance formula to an analyzed turn.
func scoreTurn(t Turn) int {
	score := baseScore

	if t.HasCode {
		score += codeBonus
	}
	if t.HasDecision {
		score += decisionBonus
	}
	if t.HasError {
		score += errorBonus
	}

	lower := strings.ToLower(t.Content)
	if highValuePattern.MatchString(lower) {
		score += highKeywordBonus
	}
	if lowValuePattern.MatchString(lower) {
		score -= lowKeywordPenalty
	}
	if len(t.Content) < shortTurnThreshold {
		score -= shortTurnPenalty
	}

	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

func classify(score int) Importance {
	switch {
	case score >= highClassThreshold:
		return ImportanceHigh
	case score >= mediumClassThreshold:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}
