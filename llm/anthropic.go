package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicClient implements Client using the Anthropic streaming API.
// Streaming with accumulation avoids request timeouts on long summarization
// calls.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient wraps an Anthropic SDK client.
func NewAnthropicClient(client *anthropic.Client) *AnthropicClient {
	return &AnthropicClient{client: client}
}

// Complete issues one streaming completion call and accumulates the response.
func (a *AnthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if req.Model == "" {
		return nil, NewError(KindInvalid, ErrMissingModel)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, NewError(KindInvalid, fmt.Errorf("failed to accumulate stream: %w", err))
		}
	}

	if err := stream.Err(); err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	if text.Len() == 0 {
		return nil, NewError(KindInvalid, ErrEmptyResponse)
	}

	return &Completion{
		Text:         text.String(),
		StopReason:   string(message.StopReason),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

// budgetMarkers are the size-related phrases the API uses in 400 responses.
var budgetMarkers = []string{
	"prompt is too long",
	"max_tokens",
	"context_length",
	"token limit",
	"too many total text bytes",
}

// classifyAnthropicError maps an Anthropic SDK error into a typed Error.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Transport failure before a response was produced.
		return NewError(KindNetwork, err)
	}

	switch {
	case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
		return NewError(KindAuth, err)
	case apiErr.StatusCode == 429:
		return NewError(KindRateLimit, err)
	case apiErr.StatusCode == 413:
		return NewError(KindBudget, err)
	case apiErr.StatusCode == 400:
		msg := strings.ToLower(apiErr.Error())
		for _, marker := range budgetMarkers {
			if strings.Contains(msg, marker) {
				return NewError(KindBudget, err)
			}
		}
		return NewError(KindInvalid, err)
	case apiErr.StatusCode >= 500:
		return NewError(KindNetwork, err)
	default:
		return NewError(KindUnknown, err)
	}
}
