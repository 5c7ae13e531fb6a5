// Package store owns the single embedded SQLite database shared by the web
// archive, the document/chunk tables, and the analytics metadata catalog.
// It is opened once by the composition root and handed to the packages that
// need it; there is no ORM, just hand-written SQL behind narrow repository
// types constructed once at startup.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store owns the *sql.DB handle and the schema migration run at Open time.
// Archive, Document, and Analytics are independent repositories sharing the
// single connection pool.
type Store struct {
	db *sql.DB

	Archive   *ArchiveRepository
	Documents *DocumentRepository
	Analytics *MetadataRepository
}

// Open opens (creating if absent) the SQLite database at path, applies WAL
// journaling and the busy timeout, runs the schema migration, and wires the
// three repositories against the shared handle.
func Open(ctx context.Context, path string, busyTimeoutMS int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single writer at a time is fine for this workload; keep the pool
	// small so modernc.org/sqlite's internal locking doesn't thrash.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMS),
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{
		db:        db,
		Archive:   &ArchiveRepository{db: db},
		Documents: &DocumentRepository{db: db},
		Analytics: &MetadataRepository{db: db},
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for components that need to run analytics SQL
// directly against document tables (internal/analytics executor).
func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	url_hash   TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_history (
	query      TEXT NOT NULL,
	url_hash   TEXT NOT NULL REFERENCES pages(url_hash),
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_url_hash ON search_history(url_hash);

CREATE TABLE IF NOT EXISTS answers (
	query           TEXT NOT NULL,
	answer          TEXT NOT NULL,
	citation_url    TEXT,
	evidence_quote  TEXT,
	timestamp       TEXT NOT NULL,
	PRIMARY KEY (query)
);

CREATE TABLE IF NOT EXISTS documents (
	document_id    TEXT PRIMARY KEY,
	filename       TEXT NOT NULL,
	doc_type       TEXT NOT NULL,
	size_bytes     INTEGER NOT NULL,
	status         TEXT NOT NULL,
	uploaded_at    TEXT NOT NULL,
	error_message  TEXT,
	content_hash   TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);

CREATE TABLE IF NOT EXISTS document_chunks (
	chunk_id     TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(document_id),
	chunk_index  INTEGER NOT NULL,
	content      TEXT NOT NULL,
	meta_json    TEXT NOT NULL,
	timestamp    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id ON document_chunks(document_id);

CREATE TABLE IF NOT EXISTS document_tables (
	document_id  TEXT NOT NULL,
	sheet_name   TEXT NOT NULL,
	table_name   TEXT NOT NULL,
	row_count    INTEGER NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (document_id, sheet_name)
);

CREATE TABLE IF NOT EXISTS document_default_sheet (
	document_id  TEXT PRIMARY KEY,
	sheet_name   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_table_columns (
	document_id    TEXT NOT NULL,
	sheet_name     TEXT NOT NULL,
	ordinal        INTEGER NOT NULL,
	original_name  TEXT NOT NULL,
	safe_name      TEXT NOT NULL,
	logical_type   TEXT NOT NULL,
	sqlite_type    TEXT NOT NULL,
	nullable       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_table_columns_lookup
	ON document_table_columns(document_id, sheet_name);

CREATE TABLE IF NOT EXISTS document_table_profiles (
	document_id   TEXT NOT NULL,
	sheet_name    TEXT NOT NULL,
	row_count     INTEGER NOT NULL,
	profile_json  TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	PRIMARY KEY (document_id, sheet_name)
);
`

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
