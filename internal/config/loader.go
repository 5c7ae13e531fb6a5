package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load builds a Config from environment variables, optionally overlaid from
// an .env file at envPath (ignored if absent). Defaults are applied for
// anything left unset so the service can start against a bare checkout.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Overload(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load env file: %w", err)
		}
	}

	cfg := &Config{
		LogLevel: firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),

		Store: StoreConfig{
			Path:          firstNonEmpty(os.Getenv("STORE_PATH"), "freshness.db"),
			BusyTimeoutMS: parseInt(os.Getenv("STORE_BUSY_TIMEOUT_MS"), 5000),
		},
		Upload: UploadConfig{
			Dir: firstNonEmpty(os.Getenv("UPLOAD_DIR"), "./uploads"),
		},
		LLM: LLMConfig{
			Provider: firstNonEmpty(os.Getenv("LLM_PROVIDER"), "anthropic"),
			Anthropic: ProviderConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-sonnet-4-5"),
			},
			OpenAI: ProviderConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
				Model:   firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"),
			},
			Google: ProviderConfig{
				APIKey: os.Getenv("GOOGLE_LLM_API_KEY"),
				Model:  firstNonEmpty(os.Getenv("GOOGLE_MODEL"), "gemini-2.0-flash"),
			},
			Temperature:           0,
			RequestTimeoutSeconds: parseInt(os.Getenv("LLM_REQUEST_TIMEOUT_SECONDS"), 60),
		},
		Embed: EmbeddingConfig{
			Enabled:    os.Getenv("EMBEDDINGS_ENABLED") == "true",
			BaseURL:    os.Getenv("EMBEDDINGS_BASE_URL"),
			Path:       firstNonEmpty(os.Getenv("EMBEDDINGS_PATH"), "/v1/embeddings"),
			APIKey:     os.Getenv("EMBEDDINGS_API_KEY"),
			APIHeader:  firstNonEmpty(os.Getenv("EMBEDDINGS_API_HEADER"), "Authorization"),
			Model:      os.Getenv("EMBEDDINGS_MODEL"),
			Dimensions: parseInt(os.Getenv("EMBEDDINGS_DIMENSIONS"), 768),
			Timeout:    parseInt(os.Getenv("EMBEDDINGS_TIMEOUT_SECONDS"), 30),
		},
		EmbedCache: EmbedCacheConfig{
			RedisAddr:  os.Getenv("EMBED_CACHE_REDIS_ADDR"),
			TTLSeconds: parseInt(os.Getenv("EMBED_CACHE_TTL_SECONDS"), 3600),
			MaxEntries: parseInt(os.Getenv("EMBED_CACHE_MAX_ENTRIES"), 1000),
		},
		Vector: VectorIndexConfig{
			Backend:    firstNonEmpty(os.Getenv("VECTOR_BACKEND"), "none"),
			QdrantAddr: os.Getenv("QDRANT_ADDR"),
			Collection: firstNonEmpty(os.Getenv("QDRANT_COLLECTION"), "freshness_chunks"),
		},
		WebSearch: WebSearchConfig{
			APIKey:           os.Getenv("BRAVE_API_KEY"),
			ResultCount:      parseInt(os.Getenv("WEB_SEARCH_RESULT_COUNT"), 3),
			RequestTimeoutMS: parseInt(os.Getenv("WEB_SEARCH_TIMEOUT_MS"), 10000),
		},
		Scrape: ScrapeConfig{
			RequestTimeoutMS:   parseInt(os.Getenv("SCRAPE_TIMEOUT_MS"), 10000),
			MaxCharsPerSource:  parseInt(os.Getenv("SCRAPE_MAX_CHARS_PER_SOURCE"), 6000),
			MinTextForHTTPOnly: parseInt(os.Getenv("SCRAPE_MIN_TEXT_FOR_HTTP_ONLY"), 400),
			HeadlessEnabled:    os.Getenv("SCRAPE_HEADLESS_DISABLED") != "true",
		},
		Budget: ContextBudgetConfig{
			TotalBudget:       parseInt(os.Getenv("CONTEXT_BUDGET_TOTAL"), 12000),
			WebBudgetFraction: 0.5,
			WebMaxChars:       parseInt(os.Getenv("CONTEXT_BUDGET_WEB_MAX"), 6000),
			DocMaxChars:       parseInt(os.Getenv("CONTEXT_BUDGET_DOC_MAX"), 6000),
			MinUsefulDocChunk: parseInt(os.Getenv("CONTEXT_BUDGET_MIN_DOC_CHUNK"), 200),
		},
		Analytics: AnalyticsConfig{
			Enabled:          os.Getenv("ANALYTICS_DISABLED") != "true",
			PlanTimeoutMS:    parseInt(os.Getenv("ANALYTICS_PLAN_TIMEOUT_MS"), 15000),
			MaxCandidateDocs: parseInt(os.Getenv("ANALYTICS_MAX_CANDIDATE_DOCS"), 25),
		},
		Retrieval: RetrievalConfig{
			DocSemanticTopK: parseInt(os.Getenv("RETRIEVAL_DOC_SEMANTIC_TOPK"), 8),
			DocKeywordTopK:  parseInt(os.Getenv("RETRIEVAL_DOC_KEYWORD_TOPK"), 8),
			WebResultCount:  parseInt(os.Getenv("RETRIEVAL_WEB_RESULT_COUNT"), 3),
			OfflineMode:     firstNonEmpty(os.Getenv("RETRIEVAL_OFFLINE_MODE"), "semantic"),
			PreferMode:      os.Getenv("RETRIEVAL_PREFER_MODE"),
		},
		Chunk: ChunkConfig{
			Strategy:  firstNonEmpty(os.Getenv("CHUNK_STRATEGY"), "fixed"),
			MaxTokens: parseInt(os.Getenv("CHUNK_MAX_TOKENS"), 512),
			Overlap:   parseInt(os.Getenv("CHUNK_OVERLAP"), 64),
		},
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
