// Package retrieve implements the hybrid document/web retrieval engines
// (C8, C9) and the context budget allocator (C10): given a query, it
// assembles an ordered list of SourceContext values the answer
// orchestrator (internal/orchestrator) hands to the completion/streaming
// LLM interfaces, modeled on a source-aggregation and context-building
// helper layer.
package retrieve

import (
	"strconv"
	"strings"
)

// DocURLPrefix marks a SourceContext whose URL addresses an uploaded
// document rather than a web page.
const DocURLPrefix = "doc://"

// FallbackSourceURL and FallbackSourceText are emitted as the sole context
// when neither web nor document retrieval produced anything.
const (
	FallbackSourceURL  = "N/A"
	FallbackSourceText = "No information found."
)

// RetrievalType labels where a SourceContext came from, for the streaming
// "meta" event's source list.
type RetrievalType string

const (
	RetrievalOnline          RetrievalType = "online"
	RetrievalOfflineKeyword  RetrievalType = "offline_keyword"
	RetrievalOfflineSemantic RetrievalType = "offline_semantic"
	RetrievalDocKeyword      RetrievalType = "document_keyword"
	RetrievalDocSemantic     RetrievalType = "document_semantic"
)

// Mode is the orchestrator's per-response mode label.
type Mode string

const (
	ModeOnline         Mode = "ONLINE"
	ModeOfflineArchive Mode = "OFFLINE_ARCHIVE"
	ModeLocalWeights   Mode = "LOCAL_WEIGHTS"
)

// Location is a document chunk's human-facing position: page number for
// pdf sources, sheet name + row range for spreadsheet sources.
type Location struct {
	Page     int    `json:"page,omitempty"`
	Sheet    string `json:"sheet,omitempty"`
	RowStart int    `json:"row_start,omitempty"`
	RowEnd   int    `json:"row_end,omitempty"`
}

// SourceContext is the unified retrieval output: a URL (or doc://<id> for
// document sources), truncated text, freshness metadata, and optional
// document location. Every field is copied by value into the orchestrator;
// no SourceContext is shared across concurrent queries.
type SourceContext struct {
	URL          string
	Text         string
	TimestampISO string
	IsFresh      bool
	LatencySecs  float64
	Filename     string
	Metadata     map[string]any
}

// IsDocumentSource reports whether the context addresses an uploaded
// document rather than a web page.
func (c SourceContext) IsDocumentSource() bool {
	return strings.HasPrefix(c.URL, DocURLPrefix)
}

// Fallback builds the single "nothing found" context used when both
// retrieval engines return empty, matching SourceContext.create_fallback.
func Fallback(nowISO string) SourceContext {
	return SourceContext{URL: FallbackSourceURL, Text: FallbackSourceText, TimestampISO: nowISO, IsFresh: false}
}

// DetermineRetrievalType derives a RetrievalType from the response mode,
// the configured offline fallback mode ("semantic" or "keyword"), and
// whether the source is a document.
func DetermineRetrievalType(mode Mode, offlineMode string, isDocument bool) RetrievalType {
	if isDocument {
		if offlineMode == "semantic" {
			return RetrievalDocSemantic
		}
		return RetrievalDocKeyword
	}
	switch mode {
	case ModeOnline:
		return RetrievalOnline
	case ModeOfflineArchive:
		if offlineMode == "semantic" {
			return RetrievalOfflineSemantic
		}
		return RetrievalOfflineKeyword
	default:
		return RetrievalOfflineKeyword
	}
}

// BuildLocationString renders a document chunk's location metadata as a
// short human-readable string ("Page 3", "Sheet: Q1, Rows 2-5").
func BuildLocationString(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	var parts []string
	if page, ok := intField(meta, "page"); ok && page != 0 {
		parts = append(parts, "Page "+strconv.Itoa(page))
	}
	if sheet, ok := meta["sheet"].(string); ok && sheet != "" {
		parts = append(parts, "Sheet: "+sheet)
	}
	rowStart, hasStart := intField(meta, "row_start")
	rowEnd, hasEnd := intField(meta, "row_end")
	if hasStart && hasEnd && rowStart != 0 && rowEnd != 0 {
		parts = append(parts, "Rows "+strconv.Itoa(rowStart)+"-"+strconv.Itoa(rowEnd))
	}
	return strings.Join(parts, ", ")
}

// intField reads a numeric metadata field regardless of whether it was
// decoded as int (Go-constructed) or float64 (round-tripped through JSON).
func intField(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
