// Package anthropic adapts the Anthropic Messages API to the llm.Provider
// and llm.Planner contracts, without tool-calling, extended thinking, or
// prompt-caching machinery this module does not need.
package anthropic

import (
	"context"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"freshness/internal/config"
	"freshness/internal/llm"
)

const defaultMaxTokens int64 = 1024

// Client implements llm.Provider and llm.Planner against the Anthropic
// Messages API.
type Client struct {
	sdk         anthropicsdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

// New builds a Client from a provider config.
func New(cfg config.ProviderConfig, temperature float64) *Client {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropicsdk.ModelClaude3_7SonnetLatest)
	}
	return &Client{
		sdk:         anthropicsdk.NewClient(opts...),
		model:       model,
		maxTokens:   defaultMaxTokens,
		temperature: temperature,
	}
}

func (c *Client) params(req llm.CompletionRequest) anthropicsdk.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temperature
	}

	var sys string
	converted := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if sys != "" {
				sys += "\n"
			}
			sys += m.Content
		case "assistant":
			converted = append(converted, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}

	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(model),
		Messages:    converted,
		MaxTokens:   maxTokens,
		Temperature: param.NewOpt(temp),
	}
	if sys != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: sys}}
	}
	return params
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	resp, err := c.sdk.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", &llm.ExternalModelError{Provider: "anthropic", Err: err}
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, req llm.CompletionRequest, h llm.StreamHandler) error {
	stream := c.sdk.Messages.NewStreaming(ctx, c.params(req))
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropicsdk.TextDelta); ok && delta.Text != "" {
				h.OnToken(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return &llm.ExternalModelError{Provider: "anthropic", Err: err}
	}
	return nil
}

// Plan asks the model for an analytics plan as raw JSON text; callers parse
// it with analytics.NewPlan.
func (c *Client) Plan(ctx context.Context, query string, tableDescription string) (string, error) {
	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: planSystemPrompt(tableDescription)},
			{Role: "user", Content: query},
		},
		Temperature: 0,
	}
	return c.Complete(ctx, req)
}

func planSystemPrompt(tableDescription string) string {
	var sb strings.Builder
	sb.WriteString("You translate natural-language questions into a restricted JSON analytics plan. ")
	sb.WriteString("Only use the columns described below. Respond with JSON only, no prose.\n\n")
	sb.WriteString(tableDescription)
	return sb.String()
}
