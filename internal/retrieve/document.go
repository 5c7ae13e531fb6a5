package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"freshness/internal/config"
	"freshness/internal/intent"
	"freshness/internal/obs"
	"freshness/internal/store"
	"freshness/internal/vectorindex"
)

// DocumentChunksCollection is the vectorindex collection name document
// chunk embeddings are upserted into and queried from.
const DocumentChunksCollection = "document_chunks"

// Embedder produces a single query embedding, the narrow slice of
// internal/embedding the retrieval engines need. Kept as an interface so
// tests can stub it and so the semantic fallback degrades gracefully when
// no embedding backend is configured.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentRetriever implements the document retrieval engine (C8):
// targeted intent-driven lookups first, then a precision gate that
// suppresses fuzzy fallbacks on an exact hit, then semantic and keyword
// fallbacks, deduplicated by chunk id.
type DocumentRetriever struct {
	docs      *store.DocumentRepository
	vectors   vectorindex.VectorIndex
	embedder  Embedder
	cfg       config.RetrievalConfig
	scrapeCfg config.ScrapeConfig
	logger    obs.Logger
	metrics   obs.Metrics
}

// NewDocumentRetriever builds a DocumentRetriever. embedder and vectors may
// be nil/no-op; the semantic fallback is then simply skipped.
func NewDocumentRetriever(docs *store.DocumentRepository, vectors vectorindex.VectorIndex, embedder Embedder, cfg config.RetrievalConfig, scrapeCfg config.ScrapeConfig, logger obs.Logger) *DocumentRetriever {
	if vectors == nil {
		vectors = vectorindex.NewNoopIndex()
	}
	if logger == nil {
		logger = obs.NoopLogger{}
	}
	return &DocumentRetriever{docs: docs, vectors: vectors, embedder: embedder, cfg: cfg, scrapeCfg: scrapeCfg, logger: logger, metrics: obs.NoopMetrics{}}
}

// WithMetrics attaches a Metrics sink and returns r, for chaining onto
// NewDocumentRetriever. A nil m leaves the no-op default in place.
func (r *DocumentRetriever) WithMetrics(m obs.Metrics) *DocumentRetriever {
	if m != nil {
		r.metrics = m
	}
	return r
}

// hit wraps a retrieved chunk together with the marker line(s) ordering and
// filtering should keep, and whether it came from a targeted (exact)
// lookup.
type hit struct {
	chunk    store.DocumentChunk
	targeted bool
	marker   string // non-empty when content should be filtered to matching lines
}

// Retrieve runs the full C8 strategy and materializes the result as
// SourceContext values in targeted-first, then semantic, then keyword
// order, per the deduplication rule (first occurrence wins).
func (r *DocumentRetriever) Retrieve(ctx context.Context, query string, documentIDs []string, qi intent.QueryIntent) []SourceContext {
	seen := make(map[string]bool)
	var hits []hit
	exactHit := false

	if qi.ColumnValue != nil {
		marker := fmt.Sprintf("%s=%s", qi.ColumnValue.Column, qi.ColumnValue.Value)
		chunks, err := r.docs.SearchChunksByTerms(ctx, []string{marker}, documentIDs, r.topK())
		if err != nil {
			r.logger.Error("document retrieval: column=value search failed", map[string]any{"error": err.Error()})
		}
		for _, c := range chunks {
			if addHit(&hits, seen, c, true, marker) {
				exactHit = true
			}
		}
	}

	if qi.Row != nil {
		rowNum := strconv.Itoa(qi.Row.Row)
		terms := []string{"Row " + rowNum + ":", "Row " + rowNum}
		chunks, err := r.docs.SearchChunksByTerms(ctx, terms, documentIDs, r.topK())
		if err != nil {
			r.logger.Error("document retrieval: row search failed", map[string]any{"error": err.Error()})
		}
		marker := "Row " + rowNum
		for _, c := range chunks {
			if addHit(&hits, seen, c, true, marker) {
				exactHit = true
			}
		}
	}

	wantsLastFilename := qi.WantsLast && qi.Filename != nil
	if qi.Filename != nil {
		limit := r.topK()
		if qi.WantsLast {
			limit = 1
		}
		chunks, err := r.docs.SearchChunksByFilename(ctx, qi.Filename.Token, qi.WantsLast, limit)
		if err != nil {
			r.logger.Error("document retrieval: filename search failed", map[string]any{"error": err.Error()})
		}
		for _, c := range chunks {
			addHit(&hits, seen, c, true, "")
		}
	}

	// Precision gate: suppress fuzzy fallbacks when a targeted lookup
	// already produced an exact hit, or wants-last+filename narrowed to a
	// single chunk.
	suppressFallbacks := exactHit || wantsLastFilename

	if !suppressFallbacks {
		for _, c := range r.semanticFallback(ctx, query, documentIDs) {
			addHit(&hits, seen, c, false, "")
		}
		for _, c := range r.keywordFallback(ctx, query, documentIDs) {
			addHit(&hits, seen, c, false, "")
		}
	}

	ordered := r.orderAndFilter(hits, qi, wantsLastFilename)
	return r.materialize(ordered)
}

// topK returns the configured keyword fan-out, defaulting to a small
// constant when unset; it is also the semantic fan-out when
// DocSemanticTopK is unset.
func (r *DocumentRetriever) topK() int {
	if r.cfg.DocKeywordTopK > 0 {
		return r.cfg.DocKeywordTopK
	}
	return 5
}

func addHit(hits *[]hit, seen map[string]bool, c store.DocumentChunk, targeted bool, marker string) bool {
	if seen[c.ChunkID] {
		return false
	}
	seen[c.ChunkID] = true
	*hits = append(*hits, hit{chunk: c, targeted: targeted, marker: marker})
	return true
}

// semanticFallback queries the vector index over document chunks, scoped to
// documentIDs when given. Any failure (no embedder configured, embed call
// failure, index error) degrades silently to an empty slice; the keyword
// fallback then takes over.
func (r *DocumentRetriever) semanticFallback(ctx context.Context, query string, documentIDs []string) []store.DocumentChunk {
	if r.embedder == nil {
		return nil
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil || len(vector) == 0 {
		if err != nil {
			r.logger.Debug("document retrieval: semantic fallback embed failed", map[string]any{"error": err.Error()})
			r.metrics.IncCounter("document_retrieval_fallback", map[string]string{"stage": "semantic_embed_failed"})
		}
		return nil
	}
	var filter *vectorindex.Filter
	if len(documentIDs) > 0 {
		filter = &vectorindex.Filter{DocumentIDs: documentIDs}
	}
	k := r.cfg.DocSemanticTopK
	if k <= 0 {
		k = r.topK()
	}
	matches, err := r.vectors.Query(ctx, DocumentChunksCollection, vector, k, filter)
	if err != nil {
		r.logger.Debug("document retrieval: vector query failed", map[string]any{"error": err.Error()})
		r.metrics.IncCounter("document_retrieval_fallback", map[string]string{"stage": "semantic_query_failed"})
		return nil
	}
	out := make([]store.DocumentChunk, 0, len(matches))
	for _, m := range matches {
		out = append(out, chunkFromMatch(m))
	}
	return out
}

func chunkFromMatch(m vectorindex.Match) store.DocumentChunk {
	c := store.DocumentChunk{ChunkID: m.ID, Content: m.Content, Metadata: m.Payload}
	if docID, ok := m.Payload["document_id"].(string); ok {
		c.DocumentID = docID
	}
	if filename, ok := m.Payload["filename"].(string); ok {
		c.Filename = filename
	}
	return c
}

func (r *DocumentRetriever) keywordFallback(ctx context.Context, query string, documentIDs []string) []store.DocumentChunk {
	chunks, err := r.docs.SearchChunksKeyword(ctx, query, documentIDs, r.topK())
	if err != nil {
		r.logger.Debug("document retrieval: keyword fallback failed", map[string]any{"error": err.Error()})
		r.metrics.IncCounter("document_retrieval_fallback", map[string]string{"stage": "keyword_failed"})
		return nil
	}
	return chunks
}

// orderAndFilter applies targeted-hit precedence, marker-line filtering,
// and the wants-last+filename single-line rule.
func (r *DocumentRetriever) orderAndFilter(hits []hit, qi intent.QueryIntent, wantsLastFilename bool) []hit {
	var columnValueMarker, rowMarker string
	if qi.ColumnValue != nil {
		columnValueMarker = fmt.Sprintf("%s=%s", qi.ColumnValue.Column, qi.ColumnValue.Value)
	}
	if qi.Row != nil {
		rowMarker = "Row " + strconv.Itoa(qi.Row.Row)
	}
	exists := func(marker string) bool {
		for _, h := range hits {
			if h.targeted && h.marker == marker {
				return true
			}
		}
		return false
	}

	switch {
	case columnValueMarker != "" && exists(columnValueMarker):
		return keepAndFilterByMarker(hits, columnValueMarker)
	case rowMarker != "" && exists(rowMarker):
		return keepAndFilterByMarker(hits, rowMarker)
	case wantsLastFilename:
		for i := range hits {
			hits[i].chunk.Content = lastLineWithPrefix(hits[i].chunk.Content, "Row ")
		}
		return hits
	default:
		return hits
	}
}

// keepAndFilterByMarker sorts targeted hits first, drops any hit whose
// content does not contain marker, and restricts kept hits' content to the
// line(s) containing marker.
func keepAndFilterByMarker(hits []hit, marker string) []hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].targeted && !hits[j].targeted })
	filtered := make([]hit, 0, len(hits))
	for _, h := range hits {
		if !strings.Contains(h.chunk.Content, marker) {
			continue
		}
		h.chunk.Content = filterLinesContaining(h.chunk.Content, marker)
		filtered = append(filtered, h)
	}
	return filtered
}

// filterLinesContaining keeps only the lines of content that contain
// marker, joined back with newlines; if none match, the original content is
// kept unfiltered so a partial-marker chunk is never emptied outright.
func filterLinesContaining(content, marker string) string {
	lines := strings.Split(content, "\n")
	var kept []string
	for _, line := range lines {
		if strings.Contains(line, marker) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return content
	}
	return strings.Join(kept, "\n")
}

// lastLineWithPrefix returns the last line of content starting with prefix,
// or content unchanged if no such line exists.
func lastLineWithPrefix(content, prefix string) string {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), prefix) {
			return lines[i]
		}
	}
	return content
}

// materialize converts ordered hits into SourceContext values: doc://
// URL, [filename] prefix, a rendered location string, and the (possibly
// filtered) content truncated to the configured per-source character cap.
func (r *DocumentRetriever) materialize(hits []hit) []SourceContext {
	out := make([]SourceContext, 0, len(hits))
	now := time.Now().UTC().Format(time.RFC3339)
	maxChars := r.scrapeCfg.MaxCharsPerSource
	for _, h := range hits {
		loc := BuildLocationString(h.chunk.Metadata)
		text := h.chunk.Content
		if maxChars > 0 && len(text) > maxChars {
			text = text[:maxChars]
		}
		body := text
		if loc != "" {
			body = loc + "\n" + text
		}
		if h.chunk.Filename != "" {
			body = "[" + h.chunk.Filename + "] " + body
		}
		ts := h.chunk.Timestamp
		if ts == "" {
			ts = now
		}
		out = append(out, SourceContext{
			URL:          DocURLPrefix + h.chunk.DocumentID,
			Text:         body,
			TimestampISO: ts,
			IsFresh:      false,
			Filename:     h.chunk.Filename,
			Metadata:     h.chunk.Metadata,
		})
	}
	return out
}
