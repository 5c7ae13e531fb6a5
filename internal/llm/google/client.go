// Package google adapts the Gemini (genai) API to the llm.Provider and
// llm.Planner contracts, without tool-calling or thought-summary
// handling this module does not need.
package google

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"freshness/internal/config"
	"freshness/internal/llm"
)

// Client implements llm.Provider and llm.Planner against the Gemini API.
type Client struct {
	client      *genai.Client
	model       string
	temperature float64
}

// New builds a Client from a provider config.
func New(cfg config.ProviderConfig, temperature float64) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &Client{client: client, model: model, temperature: temperature}, nil
}

// toContents converts chat messages into genai contents. System messages
// have no dedicated role on the Gemini content API; their text is sent as a
// separate leading user turn with a "[system] " marker so system
// instructions still reach the model inline.
func toContents(msgs []llm.Message) ([]*genai.Content, string) {
	var sys string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if sys != "" {
				sys += "\n"
			}
			sys += m.Content
			continue
		case "assistant":
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{{Text: m.Content}}, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{{Text: m.Content}}, genai.RoleUser))
		}
	}
	if sys != "" {
		leading := genai.NewContentFromParts([]*genai.Part{{Text: "[system] " + sys}}, genai.RoleUser)
		contents = append([]*genai.Content{leading}, contents...)
	}
	return contents, sys
}

func (c *Client) config(req llm.CompletionRequest) *genai.GenerateContentConfig {
	temp := float32(req.Temperature)
	if temp == 0 {
		temp = float32(c.temperature)
	}
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

func (c *Client) effectiveModel(model string) string {
	if model != "" {
		return model
	}
	return c.model
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	contents, _ := toContents(req.Messages)
	resp, err := c.client.Models.GenerateContent(ctx, c.effectiveModel(req.Model), contents, c.config(req))
	if err != nil {
		return "", &llm.ExternalModelError{Provider: "google", Err: err}
	}
	return resp.Text(), nil
}

// Stream implements llm.Provider.
func (c *Client) Stream(ctx context.Context, req llm.CompletionRequest, h llm.StreamHandler) error {
	contents, _ := toContents(req.Messages)
	stream := c.client.Models.GenerateContentStream(ctx, c.effectiveModel(req.Model), contents, c.config(req))
	for resp, err := range stream {
		if err != nil {
			return &llm.ExternalModelError{Provider: "google", Err: err}
		}
		if text := resp.Text(); text != "" {
			h.OnToken(text)
		}
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
