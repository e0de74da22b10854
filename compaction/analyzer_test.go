package compaction

import (
	"reflect"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.content); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestAnalyzeFlags(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		hasCode     bool
		hasError    bool
		hasDecision bool
	}{
		{
			name:    "fenced code block",
			text:    "Here is the parser entry point:\n```go\nfunc main() {}\n```\n",
			hasCode: true,
		},
		{
			name:    "tilde fence",
			text:    "Config sample below:\n~~~\nkey: value\n~~~\n",
			hasCode: true,
		},
		{
			name: "inline backticks are not a block",
			text: "Run the `make test` target before pushing anything.",
		},
		{
			name:     "error text",
			text:     "The build failed: undefined symbol reported by the linker.",
			hasError: true,
		},
		{
			name:        "decision text",
			text:        "We went with pgx for the storage layer after benchmarking both drivers.",
			hasDecision: true,
		},
		{
			name: "plain prose",
			text: "The service reads its configuration from the environment at startup.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := Analyze([]RawMessage{{Role: RoleUser, Text: tt.text}})
			turn := analysis.Turns[0]

			if turn.HasCode != tt.hasCode {
				t.Errorf("HasCode = %v, want %v", turn.HasCode, tt.hasCode)
			}
			if turn.HasError != tt.hasError {
				t.Errorf("HasError = %v, want %v", turn.HasError, tt.hasError)
			}
			if turn.HasDecision != tt.hasDecision {
				t.Errorf("HasDecision = %v, want %v", turn.HasDecision, tt.hasDecision)
			}
		})
	}
}

func TestAnalyzeScoring(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantScore  int
		wantClass  Importance
	}{
		{
			// base 5, low keyword -2, short -1
			name:      "filler",
			text:      "Thanks!",
			wantScore: 2,
			wantClass: ImportanceLow,
		},
		{
			// base 5, code +2
			name:      "code only",
			text:      "Here is the implementation of the retry loop:\n```go\nfor i := 0; i < 3; i++ {}\n```\n",
			wantScore: 7,
			wantClass: ImportanceMedium,
		},
		{
			// base 5, code +2, decision +2
			name:      "code plus decision",
			text:      "We went with exponential backoff here:\n```go\ntime.Sleep(delay)\n```\n",
			wantScore: 9,
			wantClass: ImportanceHigh,
		},
		{
			// base 5, error +1
			name:      "error report",
			text:      "The migration failed: relation \"artifacts\" does not exist yet.",
			wantScore: 6,
			wantClass: ImportanceMedium,
		},
		{
			// base 5, high keyword +1
			name:      "high value keyword",
			text:      "The root cause was the connection pool being shared across tenants.",
			wantScore: 6,
			wantClass: ImportanceMedium,
		},
		{
			// base 5
			name:      "neutral prose",
			text:      "The orchestrator persists session rows before starting the pipeline.",
			wantScore: 5,
			wantClass: ImportanceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := Analyze([]RawMessage{{Role: RoleAssistant, Text: tt.text}})
			turn := analysis.Turns[0]

			if turn.ImportanceScore != tt.wantScore {
				t.Errorf("ImportanceScore = %d, want %d", turn.ImportanceScore, tt.wantScore)
			}
			if turn.Importance != tt.wantClass {
				t.Errorf("Importance = %q, want %q", turn.Importance, tt.wantClass)
			}
		})
	}
}

func TestScoreTurnClamped(t *testing.T) {
	// All bonuses stacked: 5+2+2+1+1 = 11, clamped to 10.
	high := Turn{
		Content:     "This is critical: we fixed the panic by pinning the dependency version.",
		HasCode:     true,
		HasError:    true,
		HasDecision: true,
	}
	if got := scoreTurn(high); got != 10 {
		t.Errorf("scoreTurn(max) = %d, want 10", got)
	}

	if got := scoreTurn(Turn{Content: "ok"}); got < 1 || got > 10 {
		t.Errorf("scoreTurn(min) = %d, out of [1,10]", got)
	}
}

func TestAnalyzeStats(t *testing.T) {
	messages := []RawMessage{
		{Role: RoleUser, Text: "Thanks!"},
		{Role: RoleAssistant, Text: "We went with the smaller model:\n```go\nmodel := haiku\n```\n"},
		{Role: RoleUser, Text: "The deploy failed: image pull backoff on the new tag."},
	}

	analysis := Analyze(messages)

	if analysis.Stats.TotalTurns != 3 {
		t.Errorf("TotalTurns = %d, want 3", analysis.Stats.TotalTurns)
	}

	wantTokens := 0
	for _, turn := range analysis.Turns {
		wantTokens += turn.TokenCount
	}
	if analysis.Stats.TotalTokens != wantTokens {
		t.Errorf("TotalTokens = %d, want %d", analysis.Stats.TotalTokens, wantTokens)
	}

	if analysis.Stats.HighImportanceTurns != 1 {
		t.Errorf("HighImportanceTurns = %d, want 1", analysis.Stats.HighImportanceTurns)
	}

	for i, turn := range analysis.Turns {
		if turn.Index != i {
			t.Errorf("turn %d has Index %d", i, turn.Index)
		}
	}
}

func TestAnalyzeStripsHTML(t *testing.T) {
	analysis := Analyze([]RawMessage{
		{Role: RoleUser, Text: "<p>Hello <b>world</b></p>"},
	})

	if got := analysis.Turns[0].Content; got != "Hello world" {
		t.Errorf("Content = %q, want %q", got, "Hello world")
	}
}

func TestAnalyzeKeepsFencedCodeIntact(t *testing.T) {
	text := "No markup here:\n```html\n<div>kept verbatim</div>\n```\n"

	analysis := Analyze([]RawMessage{{Role: RoleUser, Text: text}})
	turn := analysis.Turns[0]

	// The fence itself triggers the tag pattern via the embedded div, but
	// stripping must only happen when tags appear; a fenced block with HTML
	// inside still has to be detected as code.
	if !turn.HasCode {
		t.Error("expected HasCode for fenced block containing HTML")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	messages := []RawMessage{
		{Role: RoleUser, Text: "Why does the watcher miss events under load?"},
		{Role: RoleAssistant, Text: "The root cause: the channel buffer was too small.\n```go\nch := make(chan Event, 256)\n```\n"},
		{Role: RoleUser, Text: "Got it, sounds good."},
	}

	first := Analyze(messages)
	second := Analyze(messages)

	if !reflect.DeepEqual(first, second) {
		t.Error("Analyze is not deterministic for identical input")
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	analysis := Analyze(nil)

	if len(analysis.Turns) != 0 {
		t.Errorf("expected no turns, got %d", len(analysis.Turns))
	}
	if analysis.Stats.TotalTurns != 0 || analysis.Stats.TotalTokens != 0 {
		t.Errorf("expected zero stats, got %+v", analysis.Stats)
	}
}
