package retrieve

import (
	"context"
	"sync"
	"time"

	"freshness/internal/config"
	"freshness/internal/obs"
	"freshness/internal/search"
	"freshness/internal/store"
	"freshness/internal/vectorindex"
	webpkg "freshness/internal/web"
)

// ArchivePagesCollection is the vectorindex collection archived web page
// embeddings live in, queried by the offline semantic fallback.
const ArchivePagesCollection = "archive_pages"

// WebRetriever implements the web retrieval engine (C9): search, parallel
// scrape with snippet fallback, atomic archive persistence, optional
// semantic upsert, and the archive-only offline fallback path.
type WebRetriever struct {
	search    *search.Client
	scraper   *webpkg.Scraper
	archive   *store.ArchiveRepository
	vectors   vectorindex.VectorIndex
	embedder  Embedder
	cfg       config.RetrievalConfig
	scrapeCfg config.ScrapeConfig
	logger    obs.Logger
	metrics   obs.Metrics
}

// NewWebRetriever builds a WebRetriever. vectors/embedder may be nil; the
// semantic upsert and offline-semantic fallback then degrade to keyword.
func NewWebRetriever(searchClient *search.Client, scraper *webpkg.Scraper, archive *store.ArchiveRepository, vectors vectorindex.VectorIndex, embedder Embedder, cfg config.RetrievalConfig, scrapeCfg config.ScrapeConfig, logger obs.Logger) *WebRetriever {
	if vectors == nil {
		vectors = vectorindex.NewNoopIndex()
	}
	if logger == nil {
		logger = obs.NoopLogger{}
	}
	return &WebRetriever{search: searchClient, scraper: scraper, archive: archive, vectors: vectors, embedder: embedder, cfg: cfg, scrapeCfg: scrapeCfg, logger: logger, metrics: obs.NoopMetrics{}}
}

// WithMetrics attaches a Metrics sink and returns r, for chaining onto
// NewWebRetriever. A nil m leaves the no-op default in place.
func (r *WebRetriever) WithMetrics(m obs.Metrics) *WebRetriever {
	if m != nil {
		r.metrics = m
	}
	return r
}

// RetrieveOnline searches and scrapes live, archiving every fetched page.
// An unconfigured search client returns an empty slice.
func (r *WebRetriever) RetrieveOnline(ctx context.Context, query string) []SourceContext {
	if r.search == nil || !r.search.IsConfigured() {
		return nil
	}
	count := r.cfg.WebResultCount
	results, err := r.search.Search(ctx, query, count)
	if err != nil {
		r.logger.Error("web retrieval: search failed", map[string]any{"error": err.Error()})
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	out := make([]SourceContext, len(results))
	var wg sync.WaitGroup
	for i, res := range results {
		wg.Add(1)
		go func(i int, res search.Result) {
			defer wg.Done()
			if sc, ok := r.fetchSource(ctx, query, res); ok {
				out[i] = sc
			}
		}(i, res)
	}
	wg.Wait()

	kept := make([]SourceContext, 0, len(out))
	for _, sc := range out {
		if sc.URL != "" {
			kept = append(kept, sc)
		}
	}
	return kept
}

// fetchSource scrapes a single search result, falling back to the search
// snippet on timeout or empty extraction, then archives the text and
// optionally upserts it into the vector index.
func (r *WebRetriever) fetchSource(ctx context.Context, query string, res search.Result) (SourceContext, bool) {
	start := time.Now()
	content, err := r.scraper.Fetch(ctx, res.URL)

	var text string
	switch {
	case err == nil && content != nil && content.Content != "":
		text = content.Content
	case res.Snippet() != "":
		text = "SEARCH_SNIPPET:\n" + res.Snippet()
	default:
		return SourceContext{}, false
	}
	latency := time.Since(start).Seconds()

	maxChars := r.scrapeCfg.MaxCharsPerSource
	truncated := text
	if maxChars > 0 && len(truncated) > maxChars {
		truncated = truncated[:maxChars]
	}

	if _, err := r.archive.SavePage(ctx, query, res.URL, text); err != nil {
		r.logger.Error("web retrieval: archive save failed", map[string]any{"url": res.URL, "error": err.Error()})
	}

	if r.cfg.OfflineMode == "semantic" {
		r.upsertSemantic(ctx, res.URL, text)
	}

	return SourceContext{
		URL:          res.URL,
		Text:         truncated,
		TimestampISO: time.Now().UTC().Format(time.RFC3339),
		IsFresh:      true,
		LatencySecs:  latency,
	}, true
}

// upsertSemantic embeds and indexes a scraped page's text; any failure
// (no embedder, embed error, index error) is logged and swallowed; indexing
// failure is non-fatal.
func (r *WebRetriever) upsertSemantic(ctx context.Context, url, text string) {
	if r.embedder == nil {
		return
	}
	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Debug("web retrieval: semantic upsert embed failed", map[string]any{"url": url, "error": err.Error()})
		return
	}
	point := vectorindex.Point{
		ID:      store.HashURL(url),
		Vector:  vector,
		Content: text,
		Payload: map[string]any{"url": url},
	}
	if err := r.vectors.Upsert(ctx, ArchivePagesCollection, []vectorindex.Point{point}); err != nil {
		r.logger.Debug("web retrieval: semantic upsert failed", map[string]any{"url": url, "error": err.Error()})
	}
}

// RetrieveOffline serves contexts purely from the archive: semantic query
// when configured, with graceful fall-through to keyword on any failure.
func (r *WebRetriever) RetrieveOffline(ctx context.Context, query string) []SourceContext {
	topK := r.cfg.WebResultCount
	if topK <= 0 {
		topK = 5
	}

	if r.cfg.OfflineMode == "semantic" && r.embedder != nil {
		if pages, ok := r.offlineSemantic(ctx, query, topK); ok {
			return pagesToContexts(pages)
		}
	}

	pages, err := r.archive.SearchOffline(ctx, query, topK)
	if err != nil {
		r.logger.Error("web retrieval: offline keyword search failed", map[string]any{"error": err.Error()})
		r.metrics.IncCounter("web_retrieval_fallback", map[string]string{"stage": "offline_keyword_failed"})
		return nil
	}
	return pagesToContexts(pages)
}

func (r *WebRetriever) offlineSemantic(ctx context.Context, query string, topK int) ([]store.ArchivePage, bool) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil || len(vector) == 0 {
		r.metrics.IncCounter("web_retrieval_fallback", map[string]string{"stage": "offline_semantic_embed_failed"})
		return nil, false
	}
	matches, err := r.vectors.Query(ctx, ArchivePagesCollection, vector, topK, nil)
	if err != nil || len(matches) == 0 {
		r.metrics.IncCounter("web_retrieval_fallback", map[string]string{"stage": "offline_semantic_query_failed"})
		return nil, false
	}
	pages := make([]store.ArchivePage, 0, len(matches))
	for _, m := range matches {
		url, _ := m.Payload["url"].(string)
		if url == "" {
			continue
		}
		pages = append(pages, store.ArchivePage{URLHash: m.ID, URL: url, Content: m.Content})
	}
	if len(pages) == 0 {
		return nil, false
	}
	return pages, true
}

func pagesToContexts(pages []store.ArchivePage) []SourceContext {
	out := make([]SourceContext, 0, len(pages))
	for _, p := range pages {
		out = append(out, SourceContext{URL: p.URL, Text: p.Content, TimestampISO: p.Timestamp, IsFresh: false})
	}
	return out
}
