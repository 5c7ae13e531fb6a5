package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"freshness/internal/config"
	"freshness/internal/llm"
)

func TestParamsUsesRequestOverridesOverClientDefaults(t *testing.T) {
	c := New(config.ProviderConfig{Model: "gpt-4o-mini"}, 0.2)

	p := c.params(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	assert.Equal(t, "gpt-4o-mini", string(p.Model))

	p2 := c.params(llm.CompletionRequest{
		Model:       "gpt-4o",
		Temperature: 0.9,
		MaxTokens:   256,
		Messages:    []llm.Message{{Role: "system", Content: "be terse"}, {Role: "user", Content: "hi"}},
	})
	assert.Equal(t, "gpt-4o", string(p2.Model))
	assert.Len(t, p2.Messages, 2)
}

func TestPlanSystemPromptIncludesTableDescription(t *testing.T) {
	prompt := planSystemPrompt("columns: id, name")
	assert.Contains(t, prompt, "columns: id, name")
	assert.Contains(t, prompt, "JSON")
}
