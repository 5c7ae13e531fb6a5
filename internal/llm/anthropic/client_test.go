package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"freshness/internal/config"
	"freshness/internal/llm"
)

func TestParamsSeparatesSystemMessagesFromTurns(t *testing.T) {
	c := New(config.ProviderConfig{Model: "claude-3-7-sonnet-latest"}, 0.2)

	p := c.params(llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	assert.Len(t, p.System, 1)
	assert.Equal(t, "be terse", p.System[0].Text)
	assert.Len(t, p.Messages, 2)
}

func TestParamsDefaultsMaxTokensWhenUnset(t *testing.T) {
	c := New(config.ProviderConfig{}, 0)
	p := c.params(llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "hi"}}})
	assert.Equal(t, defaultMaxTokens, p.MaxTokens)
}
