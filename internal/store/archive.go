package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by repository lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// HashURL derives the stable identifier archive rows are keyed by: a
// sha256 hex digest of the URL.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ArchivePage is a fetched-and-stored web page.
type ArchivePage struct {
	URLHash   string
	URL       string
	Content   string
	Timestamp string
}

// ArchiveEntry is a page projected for list views, with the content
// truncated to a short excerpt.
type ArchiveEntry struct {
	URLHash   string
	URL       string
	Excerpt   string
	Timestamp string
}

// ArchiveSearchResult is one page of a cursor-paginated archive search.
type ArchiveSearchResult struct {
	Entries []ArchiveEntry
	Total   int
	Cursor  string // URLHash of the last entry when more pages remain, else "".
}

// CachedAnswer is a previously generated answer keyed by normalized query
// text, used to short-circuit the orchestrator in OFFLINE_ARCHIVE mode.
type CachedAnswer struct {
	Query         string
	Answer        string
	CitationURL   string
	EvidenceQuote string
	Timestamp     string
}

// ArchiveRepository encapsulates all SQLite access to the pages,
// search_history, and answers tables.
type ArchiveRepository struct {
	db *sql.DB
}

// SearchPages searches archived pages by substring match over url/content,
// ordered most-recent-first, using a limit+1 over-fetch to detect more
// pages without a separate COUNT round trip for has_more.
func (r *ArchiveRepository) SearchPages(ctx context.Context, query string, limit int) (ArchiveSearchResult, error) {
	var rows *sql.Rows
	var err error
	if query != "" {
		term := "%" + strings.ToLower(query) + "%"
		rows, err = r.db.QueryContext(ctx,
			`SELECT url_hash, url, content, timestamp FROM pages
			 WHERE lower(url) LIKE ? OR lower(content) LIKE ?
			 ORDER BY timestamp DESC LIMIT ?`, term, term, limit+1)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT url_hash, url, content, timestamp FROM pages ORDER BY timestamp DESC LIMIT ?`, limit+1)
	}
	if err != nil {
		return ArchiveSearchResult{}, err
	}
	defer rows.Close()

	var entries []ArchiveEntry
	for rows.Next() {
		var hash, url, content, ts string
		if err := rows.Scan(&hash, &url, &content, &ts); err != nil {
			return ArchiveSearchResult{}, err
		}
		entries = append(entries, ArchiveEntry{URLHash: hash, URL: url, Excerpt: excerpt(content), Timestamp: ts})
	}
	if err := rows.Err(); err != nil {
		return ArchiveSearchResult{}, err
	}

	var total int
	if query != "" {
		term := "%" + strings.ToLower(query) + "%"
		err = r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pages WHERE lower(url) LIKE ? OR lower(content) LIKE ?`, term, term).Scan(&total)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&total)
	}
	if err != nil {
		return ArchiveSearchResult{}, err
	}

	hasMore := len(entries) > limit
	cursor := ""
	if hasMore {
		entries = entries[:limit]
		if len(entries) > 0 {
			cursor = entries[len(entries)-1].URLHash
		}
	}
	return ArchiveSearchResult{Entries: entries, Total: total, Cursor: cursor}, nil
}

func excerpt(content string) string {
	const maxLen = 200
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}

// GetPage fetches an archived page by its hash.
func (r *ArchiveRepository) GetPage(ctx context.Context, urlHash string) (ArchivePage, error) {
	var p ArchivePage
	err := r.db.QueryRowContext(ctx,
		`SELECT url_hash, url, content, timestamp FROM pages WHERE url_hash = ?`, urlHash,
	).Scan(&p.URLHash, &p.URL, &p.Content, &p.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return ArchivePage{}, ErrNotFound
	}
	return p, err
}

// SavePage archives a fetched page and records the query that found it,
// returning the page's hash.
func (r *ArchiveRepository) SavePage(ctx context.Context, query, url, content string) (string, error) {
	urlHash := HashURL(url)
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO pages (url_hash, url, content, timestamp) VALUES (?, ?, ?, ?)`,
		urlHash, url, content, now); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_history (query, url_hash, timestamp) VALUES (?, ?, ?)`,
		strings.ToLower(query), urlHash, now); err != nil {
		return "", err
	}
	return urlHash, tx.Commit()
}

// SearchOffline performs a keyword search over archived pages joined
// through search_history, the fallback path used when the vector index is
// unavailable or disabled.
func (r *ArchiveRepository) SearchOffline(ctx context.Context, query string, topK int) ([]ArchivePage, error) {
	term := "%" + strings.ToLower(query) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT p.url_hash, p.url, p.content, p.timestamp FROM pages p
		 JOIN search_history s ON p.url_hash = s.url_hash
		 WHERE s.query LIKE ? OR lower(p.content) LIKE ?
		 ORDER BY p.timestamp DESC LIMIT ?`, term, term, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivePage
	for rows.Next() {
		var p ArchivePage
		if err := rows.Scan(&p.URLHash, &p.URL, &p.Content, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveAnswer caches an answer under its normalized query text, replacing any
// prior cached answer for the same query.
func (r *ArchiveRepository) SaveAnswer(ctx context.Context, query, answer, citationURL, evidenceQuote string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO answers (query, answer, citation_url, evidence_quote, timestamp) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET answer = excluded.answer, citation_url = excluded.citation_url,
		   evidence_quote = excluded.evidence_quote, timestamp = excluded.timestamp`,
		strings.TrimSpace(strings.ToLower(query)), answer, nullIfEmpty(citationURL), nullIfEmpty(evidenceQuote), now)
	return err
}

// GetCachedAnswer returns the most recently cached answer for query, if any.
func (r *ArchiveRepository) GetCachedAnswer(ctx context.Context, query string) (CachedAnswer, error) {
	var a CachedAnswer
	var citation, evidence sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT query, answer, citation_url, evidence_quote, timestamp FROM answers
		 WHERE query = ? ORDER BY timestamp DESC LIMIT 1`,
		strings.TrimSpace(strings.ToLower(query)),
	).Scan(&a.Query, &a.Answer, &citation, &evidence, &a.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedAnswer{}, ErrNotFound
	}
	if err != nil {
		return CachedAnswer{}, err
	}
	a.CitationURL = citation.String
	a.EvidenceQuote = evidence.String
	return a, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
