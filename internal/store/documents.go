package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DocumentStatus tracks an uploaded document through ingestion.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentError      DocumentStatus = "error"
)

// DocumentInfo is a row from the documents table plus its chunk count.
type DocumentInfo struct {
	DocumentID   string
	Filename     string
	DocType      string
	SizeBytes    int64
	Status       DocumentStatus
	UploadedAt   string
	ErrorMessage string
	ChunkCount   int
}

// DocumentChunk is one retrieval unit carved out of a document, with
// free-form location metadata (page, sheet, row range) in Metadata (stored
// as meta_json).
type DocumentChunk struct {
	ChunkID     string
	DocumentID  string
	ChunkIndex  int
	Content     string
	Metadata    map[string]any
	Timestamp   string
	Filename    string
}

// DocumentRepository encapsulates SQLite access to documents and
// document_chunks.
type DocumentRepository struct {
	db *sql.DB
}

// HashChunkID derives a deterministic chunk identifier so re-ingesting the
// same document produces the same chunk IDs (idempotent re-save).
func HashChunkID(documentID string, chunkIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", documentID, chunkIndex)))
	return hex.EncodeToString(sum[:])
}

// SaveDocument inserts or replaces document metadata.
func (r *DocumentRepository) SaveDocument(ctx context.Context, documentID, filename, docType string, sizeBytes int64, status DocumentStatus, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (document_id, filename, doc_type, size_bytes, status, uploaded_at, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		documentID, filename, docType, sizeBytes, string(status), time.Now().UTC().Format(time.RFC3339), nullIfEmpty(errMsg))
	return err
}

// UpdateStatus transitions a document's status, optionally recording an
// error message.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, documentID string, status DocumentStatus, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ? WHERE document_id = ?`,
		string(status), nullIfEmpty(errMsg), documentID)
	return err
}

// SetContentHash records a document's normalized-content hash, used by the
// ingestion pipeline's re-ingest policy to detect unchanged uploads.
func (r *DocumentRepository) SetContentHash(ctx context.Context, documentID, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE documents SET content_hash = ? WHERE document_id = ?`, hash, documentID)
	return err
}

// LookupByHash returns the document ID of a ready document whose content
// hash matches, so an ingestor can skip or overwrite re-processing of
// unchanged uploads. ok is false when no ready document has that hash.
func (r *DocumentRepository) LookupByHash(ctx context.Context, hash string) (documentID string, ok bool, err error) {
	if hash == "" {
		return "", false, nil
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT document_id FROM documents WHERE content_hash = ? AND status = ?`,
		hash, string(DocumentReady)).Scan(&documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return documentID, true, nil
}

// GetDocument fetches one document's metadata with its chunk count.
func (r *DocumentRepository) GetDocument(ctx context.Context, documentID string) (DocumentInfo, error) {
	var info DocumentInfo
	var status string
	var errMsg sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT d.document_id, d.filename, d.doc_type, d.size_bytes, d.status, d.uploaded_at, d.error_message,
		        (SELECT COUNT(*) FROM document_chunks WHERE document_id = d.document_id)
		 FROM documents d WHERE d.document_id = ?`, documentID,
	).Scan(&info.DocumentID, &info.Filename, &info.DocType, &info.SizeBytes, &status, &info.UploadedAt, &errMsg, &info.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentInfo{}, ErrNotFound
	}
	if err != nil {
		return DocumentInfo{}, err
	}
	info.Status = DocumentStatus(status)
	info.ErrorMessage = errMsg.String
	return info, nil
}

// ListDocuments returns all documents, most recently uploaded first.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.document_id, d.filename, d.doc_type, d.size_bytes, d.status, d.uploaded_at, d.error_message,
		        (SELECT COUNT(*) FROM document_chunks WHERE document_id = d.document_id)
		 FROM documents d ORDER BY d.uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&info.DocumentID, &info.Filename, &info.DocType, &info.SizeBytes, &status, &info.UploadedAt, &errMsg, &info.ChunkCount); err != nil {
			return nil, err
		}
		info.Status = DocumentStatus(status)
		info.ErrorMessage = errMsg.String
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document and its chunks. It reports whether a row
// was actually deleted.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, documentID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, documentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// SaveChunks replaces (by chunk ID) a batch of chunks for a document.
func (r *DocumentRepository) SaveChunks(ctx context.Context, documentID string, chunks []DocumentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal chunk metadata: %w", err)
		}
		chunkID := HashChunkID(documentID, c.ChunkIndex)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO document_chunks (chunk_id, document_id, chunk_index, content, meta_json, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			chunkID, documentID, c.ChunkIndex, c.Content, string(metaJSON), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SearchChunksByTerms OR-matches literal (non-tokenized) substrings against
// chunk content, used by the document retrieval engine's targeted lookups
// (column=value and row-number markers) where the caller supplies the exact
// phrase to find rather than a bag of tokens.
func (r *DocumentRepository) SearchChunksByTerms(ctx context.Context, terms []string, documentIDs []string, topK int) ([]DocumentChunk, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteString(`SELECT c.chunk_id, c.document_id, c.chunk_index, c.content, c.meta_json, c.timestamp, d.filename
		FROM document_chunks c JOIN documents d ON c.document_id = d.document_id WHERE (`)
	args := make([]any, 0, len(terms)+len(documentIDs)+1)
	for i, t := range terms {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("c.content LIKE ?")
		args = append(args, "%"+t+"%")
	}
	sb.WriteString(")")
	if len(documentIDs) > 0 {
		sb.WriteString(" AND c.document_id IN (")
		for i, id := range documentIDs {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("?")
			args = append(args, id)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" ORDER BY c.chunk_index ASC LIMIT ?")
	args = append(args, topK)

	return r.scanChunks(ctx, sb.String(), args...)
}

// SearchChunksByFilename matches chunks belonging to documents whose
// filename contains token, optionally restricted to each matching
// document's highest-chunk_index chunk (lastOnly), used for the "wants
// last" + filename-scoping combination.
func (r *DocumentRepository) SearchChunksByFilename(ctx context.Context, token string, lastOnly bool, topK int) ([]DocumentChunk, error) {
	query := `SELECT c.chunk_id, c.document_id, c.chunk_index, c.content, c.meta_json, c.timestamp, d.filename
		FROM document_chunks c JOIN documents d ON c.document_id = d.document_id
		WHERE lower(d.filename) LIKE ?`
	if lastOnly {
		query += ` AND c.chunk_index = (SELECT MAX(c2.chunk_index) FROM document_chunks c2 WHERE c2.document_id = c.document_id)`
	}
	query += ` ORDER BY d.filename ASC, c.chunk_index ASC LIMIT ?`
	return r.scanChunks(ctx, query, "%"+strings.ToLower(token)+"%", topK)
}

func (r *DocumentRepository) scanChunks(ctx context.Context, query string, args ...any) ([]DocumentChunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentChunk
	for rows.Next() {
		var c DocumentChunk
		var metaJSON string
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.ChunkIndex, &c.Content, &metaJSON, &c.Timestamp, &c.Filename); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal chunk metadata: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "is": {}, "it": {}, "its": {}, "that": {}, "this": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"can": {}, "you": {}, "me": {}, "my": {}, "your": {}, "who": {}, "what": {}, "how": {}, "where": {},
	"when": {}, "which": {}, "give": {}, "get": {}, "tell": {}, "show": {}, "find": {}, "please": {},
}

// SearchChunksKeyword tokenizes query and OR-matches tokens against chunk
// content, since matching the full sentence would rarely appear verbatim in
// a stored chunk. Tokens of length <= 2 and stop words are dropped.
func (r *DocumentRepository) SearchChunksKeyword(ctx context.Context, query string, documentIDs []string, topK int) ([]DocumentChunk, error) {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if len(t) <= 2 {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT c.chunk_id, c.document_id, c.chunk_index, c.content, c.meta_json, c.timestamp, d.filename
		FROM document_chunks c JOIN documents d ON c.document_id = d.document_id
		WHERE d.status = 'ready' AND (`)
	args := make([]any, 0, len(tokens)+len(documentIDs)+1)
	for i, t := range tokens {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("lower(c.content) LIKE ?")
		args = append(args, "%"+t+"%")
	}
	sb.WriteString(")")

	if len(documentIDs) > 0 {
		sb.WriteString(" AND c.document_id IN (")
		for i, id := range documentIDs {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("?")
			args = append(args, id)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" ORDER BY c.timestamp DESC LIMIT ?")
	args = append(args, topK)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentChunk
	for rows.Next() {
		var c DocumentChunk
		var metaJSON string
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.ChunkIndex, &c.Content, &metaJSON, &c.Timestamp, &c.Filename); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal chunk metadata: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
