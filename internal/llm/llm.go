// Package llm defines the provider-agnostic contract the answer
// orchestrator (C11) calls through: a unary/streaming text completion
// interface and a plan-generation interface for the analytics path.
// Concrete providers live in anthropic/, openai/, and google/, selected at
// runtime by providers.Build.
package llm

import (
	"context"
	"fmt"
)

// Message is a single turn in a chat-style completion request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// CompletionRequest is the provider-agnostic shape of a single completion
// call. Model, if empty, lets the provider use its configured default.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// StreamHandler receives incremental output from a streaming completion.
type StreamHandler interface {
	OnToken(text string)
}

// Provider is the external LLM endpoint contract. Exactly one concrete
// implementation (anthropic, openai, or google) backs it at runtime,
// selected by config.LLMConfig.Provider; any of them is a valid swap-in.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Stream(ctx context.Context, req CompletionRequest, h StreamHandler) error
}

// Planner asks an external model to produce an analytics plan for a
// natural-language query against a known column catalog. The orchestrator
// (C11) calls it when the router (C12) selects the analytics path; the
// returned JSON is handed to analytics.NewPlan for default-coercion before
// validation.
type Planner interface {
	Plan(ctx context.Context, query string, tableDescription string) (string, error)
}

// ExternalModelError wraps a failure from a concrete Provider or Planner
// implementation so callers can distinguish "the model call failed" from
// other orchestrator errors via errors.As.
type ExternalModelError struct {
	Provider string
	Err      error
}

func (e *ExternalModelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ExternalModelError) Unwrap() error { return e.Err }
