// Package openai adapts the OpenAI (and OpenAI-compatible, e.g. local
// llama.cpp servers) chat completions API to the llm.Provider and
// llm.Planner contracts, without tool-calling, image generation, or
// Gemini-compatibility special cases this module does not need.
package openai

import (
	"context"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"freshness/internal/config"
	"freshness/internal/llm"
)

// Client implements llm.Provider and llm.Planner against the OpenAI Chat
// Completions API.
type Client struct {
	sdk         sdk.Client
	model       string
	temperature float64
}

// New builds a Client from a provider config. An empty BaseURL targets the
// hosted OpenAI API; any other value (e.g. a local llama.cpp/vLLM server)
// is used verbatim.
func New(cfg config.ProviderConfig, temperature float64) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		sdk:         sdk.NewClient(opts...),
		model:       cfg.Model,
		temperature: temperature,
	}
}

func (c *Client) params(req llm.CompletionRequest) sdk.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temperature
	}
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    adaptMessages(req.Messages),
		Temperature: param.NewOpt(temp),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	comp, err := c.sdk.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return "", &llm.ExternalModelError{Provider: "openai", Err: err}
	}
	if len(comp.Choices) == 0 {
		return "", nil
	}
	return comp.Choices[0].Message.Content, nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, req llm.CompletionRequest, h llm.StreamHandler) error {
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, c.params(req))
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			h.OnToken(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return &llm.ExternalModelError{Provider: "openai", Err: err}
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

func adaptMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}
