package embedding

import (
	"context"

	"freshness/internal/config"
	"freshness/internal/llm"
)

// QueryEmbedder adapts EmbedText to the single-text Embed(ctx, text) shape
// the retrieval engines' semantic fallbacks consume, with an optional
// cache in front of the embedding endpoint so repeated queries (the
// document and web retrievers embedding the same query, retry fallbacks)
// skip the round trip.
type QueryEmbedder struct {
	cfg   config.EmbeddingConfig
	cache llm.EmbedCache
}

// NewQueryEmbedder builds a QueryEmbedder. A nil cache disables caching;
// calls then always hit the embedding endpoint.
func NewQueryEmbedder(cfg config.EmbeddingConfig, cache llm.EmbedCache) *QueryEmbedder {
	return &QueryEmbedder{cfg: cfg, cache: cache}
}

// Embed returns the embedding vector for text. A disabled embedding
// backend (cfg.Enabled == false) returns (nil, nil) so callers degrade to
// their keyword fallback rather than erroring.
func (e *QueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !e.cfg.Enabled {
		return nil, nil
	}
	if e.cache != nil {
		if vector, ok := e.cache.Get(ctx, text); ok {
			return vector, nil
		}
	}
	vectors, err := EmbedText(ctx, e.cfg, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	vector := vectors[0]
	if e.cache != nil {
		e.cache.Set(ctx, text, vector)
	}
	return vector, nil
}
