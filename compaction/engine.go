package compaction

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/distillpg/distillpg/llm"
	"github.com/distillpg/distillpg/sessionstate"
)

// Progress is a point-in-time report of a running compaction.
type Progress struct {
	// Step is the pipeline step currently executing.
	Step sessionstate.Step `json:"step"`

	// Percent is the overall completion estimate, 0-100.
	Percent int `json:"percent"`

	// ChunksTotal and ChunksProcessed describe map progress. Both are zero
	// before chunk planning completes.
	ChunksTotal     int `json:"chunks_total"`
	ChunksProcessed int `json:"chunks_processed"`

	// Budget is the context token budget of the current ladder rung.
	Budget int `json:"budget"`
}

// ProgressFunc receives progress reports during a run. It is called
// synchronously from the engine goroutine and must not block.
type ProgressFunc func(Progress)

// RunRequest describes one compaction run.
type RunRequest struct {
	// Messages is the raw transcript, in conversation order.
	Messages []RawMessage

	// Kind selects the artifact to produce.
	Kind Kind

	// SessionID tags errors and logs, may be uuid.Nil.
	SessionID uuid.UUID

	// OnProgress, if set, receives progress reports.
	OnProgress ProgressFunc

	// Cancelled, if set, is polled between model calls. The in-flight call
	// is allowed to finish; the run stops at the next check.
	Cancelled func() bool
}

// Result is the outcome of a successful compaction run.
type Result struct {
	// Content is the produced artifact text.
	Content string `json:"content"`

	Kind     Kind     `json:"kind"`
	Strategy Strategy `json:"strategy"`

	// ChunkCount is the number of chunks the truncated transcript was split
	// into (1 for single-pass runs).
	ChunkCount int `json:"chunk_count"`

	// OriginalTokens is the estimated token count of the full transcript
	// before truncation; CompactedTokens is the estimate for Content.
	OriginalTokens  int `json:"original_tokens"`
	CompactedTokens int `json:"compacted_tokens"`

	// BudgetUsed is the ladder rung the run succeeded at.
	BudgetUsed int `json:"budget_used"`

	// ModelUsed is the summarizer model that produced Content.
	ModelUsed string `json:"model_used"`
}

// Engine runs the compaction pipeline: analyze, truncate, chunk, summarize.
// An Engine is stateless across runs and safe for concurrent use.
type Engine struct {
	client llm.Client
	config *Config
	logger Logger
}

// NewEngine creates an Engine. A nil config gets defaults; a nil logger
// discards logs.
func NewEngine(client llm.Client, config *Config, logger Logger) (*Engine, error) {
	if client == nil {
		return nil, NewError("NewEngine", errors.New("llm client is required"))
	}
	if config == nil {
		config = DefaultConfig()
	} else {
		config.ApplyDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Engine{client: client, config: config, logger: logger}, nil
}

// Run executes one compaction. It walks the budget ladder top-down: a run
// that fails for a size-related reason is retried at the next smaller budget,
// any other failure is returned immediately. Exactly one ladder traversal
// happens per call; if every rung fails on size, ErrBudgetExhausted is
// returned. Intermediate rung failures are not visible to the caller.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if !req.Kind.IsValid() {
		return nil, NewError("Run", ErrUnknownKind).
			WithSession(req.SessionID).
			WithContext("kind", string(req.Kind))
	}
	if len(req.Messages) == 0 {
		return nil, NewError("Run", ErrEmptyTranscript).WithSession(req.SessionID)
	}

	e.report(req, Progress{
		Step:    sessionstate.StepAnalyzing,
		Percent: sessionstate.StepAnalyzing.Progress(),
		Budget:  e.config.BudgetLadder[0],
	})

	analysis := Analyze(req.Messages)

	e.logger.Info("transcript analyzed",
		"session_id", req.SessionID,
		"kind", req.Kind,
		"turns", analysis.Stats.TotalTurns,
		"tokens", analysis.Stats.TotalTokens,
		"high_importance", analysis.Stats.HighImportanceTurns)

	var lastErr error
	for _, budget := range e.config.BudgetLadder {
		result, err := e.runOnce(ctx, req, analysis, budget)
		if err == nil {
			return result, nil
		}
		if !llm.IsBudgetError(err) {
			return nil, err
		}
		e.logger.Warn("budget rung failed, stepping down",
			"session_id", req.SessionID,
			"budget", budget,
			"error", err)
		lastErr = err
	}

	return nil, NewError("Run", ErrBudgetExhausted).
		WithSession(req.SessionID).
		WithContext("ladder", e.config.BudgetLadder).
		WithContext("last_error", lastErr.Error())
}

// runOnce attempts the pipeline at a single budget rung.
func (e *Engine) runOnce(ctx context.Context, req RunRequest, analysis *Analysis, budget int) (*Result, error) {
	turns := TruncateAllTurnContent(analysis.Turns, e.config.MaxTurnChars)
	turns = TruncateToBudget(turns, budget, e.config.PreserveHead, e.config.PreserveTail)

	e.report(req, Progress{
		Step:    sessionstate.StepChunking,
		Percent: sessionstate.StepChunking.Progress(),
		Budget:  budget,
	})

	chunks := PlanChunks(turns, e.config.MaxTokensPerChunk)

	e.logger.Debug("chunks planned",
		"session_id", req.SessionID,
		"budget", budget,
		"chunks", len(chunks),
		"kept_turns", len(turns),
		"kept_tokens", SumTokens(turns))

	var (
		content  string
		strategy Strategy
		err      error
	)
	if len(chunks) == 1 {
		strategy = StrategySinglePass
		content, err = e.runSinglePass(ctx, req, chunks[0], budget)
	} else {
		strategy = StrategyMapReduce
		content, err = e.runMapReduce(ctx, req, chunks, budget)
	}
	if err != nil {
		return nil, err
	}

	e.report(req, Progress{
		Step:            sessionstate.StepFinalizing,
		Percent:         sessionstate.StepFinalizing.Progress(),
		ChunksTotal:     len(chunks),
		ChunksProcessed: len(chunks),
		Budget:          budget,
	})

	return &Result{
		Content:         content,
		Kind:            req.Kind,
		Strategy:        strategy,
		ChunkCount:      len(chunks),
		OriginalTokens:  analysis.Stats.TotalTokens,
		CompactedTokens: EstimateTokens(content),
		BudgetUsed:      budget,
		ModelUsed:       e.config.SummarizerModel,
	}, nil
}

// runSinglePass produces the artifact with one model call over the whole
// (truncated) transcript.
func (e *Engine) runSinglePass(ctx context.Context, req RunRequest, chunk Chunk, budget int) (string, error) {
	system, err := ReduceSystemPrompt(req.Kind)
	if err != nil {
		return "", NewError("SinglePass", err).WithSession(req.SessionID)
	}

	if err := e.checkCancelled(ctx, req, "SinglePass"); err != nil {
		return "", err
	}

	e.report(req, Progress{
		Step:            sessionstate.StepMapping,
		Percent:         sessionstate.StepMapping.Progress(),
		ChunksTotal:     1,
		ChunksProcessed: 0,
		Budget:          budget,
	})

	completion, err := e.complete(ctx, system, BuildSinglePassUserPrompt(chunk.Turns))
	if err != nil {
		return "", NewError("SinglePass", err).WithSession(req.SessionID)
	}

	e.report(req, Progress{
		Step:            sessionstate.StepMapping,
		Percent:         mapPercent(1, 1),
		ChunksTotal:     1,
		ChunksProcessed: 1,
		Budget:          budget,
	})

	return completion.Text, nil
}

// runMapReduce summarizes each chunk in order, then combines the summaries.
func (e *Engine) runMapReduce(ctx context.Context, req RunRequest, chunks []Chunk, budget int) (string, error) {
	summaries := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		if err := e.checkCancelled(ctx, req, "MapChunk"); err != nil {
			return "", err
		}

		e.report(req, Progress{
			Step:            sessionstate.StepMapping,
			Percent:         mapPercent(len(summaries), len(chunks)),
			ChunksTotal:     len(chunks),
			ChunksProcessed: len(summaries),
			Budget:          budget,
		})

		completion, err := e.complete(ctx, MapSystemPrompt, BuildMapUserPrompt(chunk, len(chunks)))
		if err != nil {
			return "", NewError("MapChunk", err).
				WithSession(req.SessionID).
				WithContext("chunk_index", chunk.Index)
		}
		summaries = append(summaries, completion.Text)

		e.logger.Debug("chunk summarized",
			"session_id", req.SessionID,
			"chunk_index", chunk.Index,
			"chunks_total", len(chunks))
	}

	system, err := ReduceSystemPrompt(req.Kind)
	if err != nil {
		return "", NewError("Reduce", err).WithSession(req.SessionID)
	}

	if err := e.checkCancelled(ctx, req, "Reduce"); err != nil {
		return "", err
	}

	e.report(req, Progress{
		Step:            sessionstate.StepReducing,
		Percent:         sessionstate.StepReducing.Progress(),
		ChunksTotal:     len(chunks),
		ChunksProcessed: len(chunks),
		Budget:          budget,
	})

	completion, err := e.complete(ctx, system, BuildReduceUserPrompt(summaries))
	if err != nil {
		return "", NewError("Reduce", err).WithSession(req.SessionID)
	}

	return completion.Text, nil
}

// complete issues one model call. A response cut off at its token limit is
// converted into a budget-classified error so the ladder steps down.
func (e *Engine) complete(ctx context.Context, system, prompt string) (*llm.Completion, error) {
	completion, err := e.client.Complete(ctx, llm.Request{
		Model:     e.config.SummarizerModel,
		System:    system,
		Prompt:    prompt,
		MaxTokens: e.config.SummarizerMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if completion.Truncated() {
		return nil, llm.NewError(llm.KindBudget, ErrTruncatedResponse)
	}
	return completion, nil
}

// checkCancelled enforces cooperative cancellation between model calls.
func (e *Engine) checkCancelled(ctx context.Context, req RunRequest, op string) error {
	if err := ctx.Err(); err != nil {
		return NewError(op, ErrCancelled).
			WithSession(req.SessionID).
			WithContext("cause", err.Error())
	}
	if req.Cancelled != nil && req.Cancelled() {
		return NewError(op, ErrCancelled).WithSession(req.SessionID)
	}
	return nil
}

func (e *Engine) report(req RunRequest, p Progress) {
	if req.OnProgress != nil {
		req.OnProgress(p)
	}
}

// mapPercent interpolates overall progress across the mapping step.
func mapPercent(processed, total int) int {
	start := sessionstate.StepMapping.Progress()
	end := sessionstate.StepReducing.Progress()
	if total <= 0 {
		return start
	}
	return start + (end-start)*processed/total
}
