// Package config defines the process-wide configuration record for the
// freshness service and the holder that lets it be swapped atomically at
// runtime.
package config

import "sync"

// StoreConfig configures the single embedded relational store backing the
// archive, document/chunk tables, and the analytics catalog.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" is valid for tests.
	Path string
	// BusyTimeoutMS bounds how long a writer waits on SQLITE_BUSY.
	BusyTimeoutMS int
}

// UploadConfig configures where uploaded documents are written.
type UploadConfig struct {
	Dir string
}

// ProviderConfig is the shared shape for an LLM provider's credentials.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LLMConfig selects and configures the completion/stream/plan provider.
type LLMConfig struct {
	// Provider selects which client backs llm.Provider: "anthropic", "openai", "google".
	Provider    string
	Anthropic   ProviderConfig
	OpenAI      ProviderConfig
	Google      ProviderConfig
	Temperature float64
	// RequestTimeoutSeconds bounds unary and streaming calls alike.
	RequestTimeoutSeconds int
}

// EmbeddingConfig configures the embedding backend consumed for semantic
// document/web retrieval and analytics-adjacent similarity lookups.
type EmbeddingConfig struct {
	Enabled bool
	BaseURL string
	Path    string
	APIKey  string
	// APIHeader names the legacy single auth header ("Authorization" gets
	// the "Bearer " prefix; anything else is set verbatim to APIKey).
	APIHeader string
	// Headers carries additional raw header/value pairs, applied after the
	// legacy APIHeader so a caller can override or supplement it (e.g. an
	// x-api-key header alongside a Bearer Authorization header).
	Headers    map[string]string
	Model      string
	Dimensions int
	Timeout    int
}

// EmbedCacheConfig configures the optional query-embedding cache.
type EmbedCacheConfig struct {
	// RedisAddr selects the redis-backed cache when non-empty; otherwise an
	// in-memory LRU+TTL cache is used.
	RedisAddr string
	TTLSeconds int
	MaxEntries int
}

// VectorIndexConfig configures the pluggable vector index.
type VectorIndexConfig struct {
	// Backend selects "qdrant" or "none" (no-op, semantic paths degrade to keyword).
	Backend    string
	QdrantAddr string
	Collection string
}

// WebSearchConfig configures the Brave-style external search client.
type WebSearchConfig struct {
	APIKey           string
	ResultCount      int
	RequestTimeoutMS int
}

// ScrapeConfig configures web-page fetching.
type ScrapeConfig struct {
	RequestTimeoutMS   int
	MaxCharsPerSource  int
	MinTextForHTTPOnly int
	HeadlessEnabled    bool
}

// ContextBudgetConfig configures the budget allocator (C10).
type ContextBudgetConfig struct {
	TotalBudget      int
	WebBudgetFraction float64
	WebMaxChars      int
	DocMaxChars      int
	MinUsefulDocChunk int
}

// AnalyticsConfig toggles the deterministic analytics path and bounds plan
// attempts.
type AnalyticsConfig struct {
	Enabled           bool
	PlanTimeoutMS     int
	MaxCandidateDocs  int
}

// ChunkConfig configures the document-ingestion chunker (C13).
type ChunkConfig struct {
	// Strategy selects "fixed", "markdown", or "code"; anything else falls
	// back to "fixed".
	Strategy string
	MaxTokens int
	Overlap   int
}

// RetrievalConfig bounds document/web retrieval fan-out.
type RetrievalConfig struct {
	DocSemanticTopK int
	DocKeywordTopK  int
	WebResultCount  int
	// OfflineMode selects "semantic" or "keyword" for the archive fallback path.
	OfflineMode string
	PreferMode  string // "ONLINE", "OFFLINE", or "" for auto
}

// Config is the single process-wide configuration record. It is constructed
// once by Load and referenced by value thereafter; runtime reconfiguration
// replaces the whole record inside a Holder.
type Config struct {
	LogLevel string

	Store    StoreConfig
	Upload   UploadConfig
	LLM      LLMConfig
	Embed    EmbeddingConfig
	EmbedCache EmbedCacheConfig
	Vector   VectorIndexConfig
	WebSearch WebSearchConfig
	Scrape   ScrapeConfig
	Budget   ContextBudgetConfig
	Analytics AnalyticsConfig
	Retrieval RetrievalConfig
	Chunk     ChunkConfig
}

// Holder guards a *Config behind a RWMutex so a running process can observe
// a newly loaded configuration without restarting in-flight requests.
type Holder struct {
	mu  sync.RWMutex
	cur *Config
}

// NewHolder constructs a Holder seeded with cfg.
func NewHolder(cfg *Config) *Holder {
	return &Holder{cur: cfg}
}

// Get returns the currently active configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// Replace atomically swaps in a new configuration. Requests already in
// flight keep whatever *Config they already read; only subsequent Get calls
// observe the replacement.
func (h *Holder) Replace(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cur = cfg
}
