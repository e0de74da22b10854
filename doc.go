// Package distillpg condenses long AI-coding conversations into compact,
// browsable artifacts, with PostgreSQL persistence and an Anthropic-backed
// summarization pipeline.
//
// A conversation transcript is analyzed turn by turn, truncated to a token
// budget around preserved opening and closing anchors, split into chunks,
// and summarized either in a single pass or with a map-reduce strategy.
// Three artifact kinds share the pipeline: a compacted transcript, a
// structured overview with diagrams, and practice exercises.
//
// # Quick Start
//
// Create an orchestrator with a store, a model client, and a transcript
// source:
//
//	pool, _ := pgxpool.New(ctx, connString)
//	pg := store.NewPostgresStore(pool)
//	_ = pg.EnsureSchema(ctx)
//
//	client := anthropic.NewClient()
//	orch, _ := distillpg.New(distillpg.Config{
//	    Store:  pg,
//	    Client: llm.NewAnthropicClient(&client),
//	    Source: mySource,
//	})
//
// Start a session and follow its progress:
//
//	result, _ := orch.Start(ctx, distillpg.StartRequest{
//	    Key:  distillpg.Key{WorkspaceID: "ws", ConversationID: "conv"},
//	    Kind: compaction.KindCompact,
//	})
//	if result.CacheHit {
//	    fmt.Println(result.Artifact.Content)
//	    return
//	}
//
//	events, unsub := orch.OnProgress()
//	defer unsub()
//	for ev := range events {
//	    if ev.SessionID == result.SessionID() && ev.Terminal() {
//	        break
//	    }
//	}
//
// Sessions reach exactly one of the terminal states completed, failed, or
// cancelled. At most one session is active per workspace, conversation, and
// artifact kind; finished artifacts are cached and returned without
// recomputation unless the start request forces a refresh.
package distillpg
