// Package providers selects and constructs the concrete llm.Provider (and
// llm.Planner) implementation named by config.LLMConfig.Provider, grounded
// by config.LLMConfig.Provider.
package providers

import (
	"fmt"

	"freshness/internal/config"
	"freshness/internal/llm"
	"freshness/internal/llm/anthropic"
	"freshness/internal/llm/google"
	"freshness/internal/llm/openai"
)

// provider bundles both contracts a concrete client satisfies.
type provider interface {
	llm.Provider
	llm.Planner
}

// Build constructs the configured provider. "" defaults to anthropic,
// matching this module's primary deployment target.
func Build(cfg config.LLMConfig) (provider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.New(cfg.Anthropic, cfg.Temperature), nil
	case "openai":
		return openai.New(cfg.OpenAI, cfg.Temperature), nil
	case "google":
		return google.New(cfg.Google, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
