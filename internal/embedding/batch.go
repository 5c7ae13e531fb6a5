package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"freshness/internal/config"
)

// Embedder converts batches of chunk text into embedding vectors for
// document ingestion (internal/ingest). QueryEmbedder (query.go) covers the
// single-text, cached query-side path this complements.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	Ping(ctx context.Context) error
}

// clientEmbedder wraps EmbedText with single-item batching, avoiding the
// batched-inference crashes some local embedding servers (llama.cpp) exhibit
// under batched load. Calls are spaced by minDelay, which NewClient leaves at
// zero, so no delay is applied between calls.
type clientEmbedder struct {
	cfg       config.EmbeddingConfig
	dim       int
	batchSize int
	mu        sync.Mutex
	lastCall  time.Time
	minDelay  time.Duration
}

// NewClient builds an Embedder that calls the configured embedding
// endpoint one chunk at a time.
func NewClient(cfg config.EmbeddingConfig, dim int) Embedder {
	return &clientEmbedder{cfg: cfg, dim: dim, batchSize: 1}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	return CheckReachability(ctx, c.cfg)
}

func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= c.batchSize {
		return c.rateLimitedCall(ctx, texts)
	}
	var out [][]float32
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := c.rateLimitedCall(ctx, texts[i:end])
		if err != nil {
			return out, err
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

func (c *clientEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		if elapsed := time.Since(c.lastCall); elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()

	return EmbedText(ctx, c.cfg, texts)
}

// deterministicEmbedder hashes byte 3-grams into a fixed-size vector. It
// needs no network access, making it suitable for ingestion tests and for
// local development without an embedding server configured.
type deterministicEmbedder struct {
	dim       int
	normalize bool
	seed      uint64
}

// NewDeterministic builds a network-free Embedder for tests.
func NewDeterministic(dim int, normalize bool, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, normalize: normalize, seed: seed}
}

func (d *deterministicEmbedder) Name() string             { return "deterministic" }
func (d *deterministicEmbedder) Dimension() int            { return d.dim }
func (d *deterministicEmbedder) Ping(_ context.Context) error { return nil }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) == 0 {
		return v
	}
	if len(b) < 3 {
		addGram(d.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			addGram(d.seed, b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v
}

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
