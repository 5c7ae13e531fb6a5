package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// ColumnMetadata is the catalog's record of one ingested column: its
// original spreadsheet header, the safe SQL identifier it was mapped to,
// and its inferred logical type.
type ColumnMetadata struct {
	OriginalName string
	SafeName     string
	LogicalType  string // "string", "integer", "float", "date", "boolean"
	SQLiteType   string // "TEXT", "INTEGER", "REAL"
	Nullable     bool
}

// DatasetProfile summarizes one ingested sheet: row count plus per-column
// null/distinct/min/max statistics, serialized as JSON in the catalog.
type DatasetProfile struct {
	RowCount int                       `json:"row_count"`
	Columns  map[string]ColumnProfile  `json:"columns"`
}

// ColumnProfile is one column's contribution to a DatasetProfile.
type ColumnProfile struct {
	NullCount     int     `json:"null_count"`
	NullRatio     float64 `json:"null_ratio"`
	DistinctCount int     `json:"distinct_count"`
	MinValue      any     `json:"min_value,omitempty"`
	MaxValue      any     `json:"max_value,omitempty"`
}

// MetadataRepository reads and writes the analytics catalog: which SQLite
// table backs each ingested sheet, that table's column mapping, and the
// profile computed over it (document_tables / document_table_columns /
// document_table_profiles / document_default_sheet).
type MetadataRepository struct {
	db *sql.DB
}

// RegisterTable upserts the (document_id, sheet_name) -> table_name mapping.
func (r *MetadataRepository) RegisterTable(ctx context.Context, documentID, sheetName, tableName string, rowCount int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_tables (document_id, sheet_name, table_name, row_count, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(document_id, sheet_name) DO UPDATE SET
		   table_name = excluded.table_name, row_count = excluded.row_count, updated_at = excluded.updated_at`,
		documentID, sheetName, tableName, rowCount)
	return err
}

// RegisterDefaultSheet records which sheet answers analytics queries that
// omit an explicit sheet_name.
func (r *MetadataRepository) RegisterDefaultSheet(ctx context.Context, documentID, sheetName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_default_sheet (document_id, sheet_name, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(document_id) DO UPDATE SET sheet_name = excluded.sheet_name, updated_at = excluded.updated_at`,
		documentID, sheetName)
	return err
}

// ResolveDefaultSheetName returns the registered default sheet for a
// document, or "" if none is registered.
func (r *MetadataRepository) ResolveDefaultSheetName(ctx context.Context, documentID string) (string, error) {
	var sheet string
	err := r.db.QueryRowContext(ctx,
		`SELECT sheet_name FROM document_default_sheet WHERE document_id = ? LIMIT 1`, documentID,
	).Scan(&sheet)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return sheet, err
}

// GetTableName resolves the SQLite table backing (documentID, sheetName). If
// sheetName is "" the registered default sheet is used instead. Returns ""
// with no error if nothing is registered.
func (r *MetadataRepository) GetTableName(ctx context.Context, documentID, sheetName string) (string, error) {
	if sheetName == "" {
		resolved, err := r.ResolveDefaultSheetName(ctx, documentID)
		if err != nil {
			return "", err
		}
		if resolved == "" {
			return "", nil
		}
		sheetName = resolved
	}
	var tableName string
	err := r.db.QueryRowContext(ctx,
		`SELECT table_name FROM document_tables WHERE document_id = ? AND sheet_name = ? LIMIT 1`,
		documentID, sheetName,
	).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return tableName, err
}

// RegisterColumns replaces the column catalog for (documentID, sheetName)
// with cols, in ordinal order.
func (r *MetadataRepository) RegisterColumns(ctx context.Context, documentID, sheetName string, cols []ColumnMetadata) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_table_columns WHERE document_id = ? AND sheet_name = ?`, documentID, sheetName); err != nil {
		return err
	}
	for i, col := range cols {
		nullable := 0
		if col.Nullable {
			nullable = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_table_columns
			 (document_id, sheet_name, ordinal, original_name, safe_name, logical_type, sqlite_type, nullable)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			documentID, sheetName, i, col.OriginalName, col.SafeName, col.LogicalType, col.SQLiteType, nullable); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetColumns returns the column catalog for (documentID, sheetName), keyed
// by original (spreadsheet) column name. If sheetName is "" the registered
// default sheet is used.
func (r *MetadataRepository) GetColumns(ctx context.Context, documentID, sheetName string) (map[string]ColumnMetadata, error) {
	if sheetName == "" {
		resolved, err := r.ResolveDefaultSheetName(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return map[string]ColumnMetadata{}, nil
		}
		sheetName = resolved
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT original_name, safe_name, logical_type, sqlite_type, nullable
		 FROM document_table_columns WHERE document_id = ? AND sheet_name = ? ORDER BY ordinal ASC`,
		documentID, sheetName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]ColumnMetadata{}
	for rows.Next() {
		var c ColumnMetadata
		var nullable int
		if err := rows.Scan(&c.OriginalName, &c.SafeName, &c.LogicalType, &c.SQLiteType, &nullable); err != nil {
			return nil, err
		}
		c.Nullable = nullable != 0
		out[c.OriginalName] = c
	}
	return out, rows.Err()
}

// UpsertProfile stores a dataset profile as JSON.
func (r *MetadataRepository) UpsertProfile(ctx context.Context, documentID, sheetName string, profile DatasetProfile) error {
	blob, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO document_table_profiles (document_id, sheet_name, row_count, profile_json, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(document_id, sheet_name) DO UPDATE SET
		   row_count = excluded.row_count, profile_json = excluded.profile_json, updated_at = excluded.updated_at`,
		documentID, sheetName, profile.RowCount, string(blob))
	return err
}

// GetProfile fetches a previously stored dataset profile. If sheetName is ""
// the registered default sheet is used.
func (r *MetadataRepository) GetProfile(ctx context.Context, documentID, sheetName string) (DatasetProfile, bool, error) {
	if sheetName == "" {
		resolved, err := r.ResolveDefaultSheetName(ctx, documentID)
		if err != nil {
			return DatasetProfile{}, false, err
		}
		if resolved == "" {
			return DatasetProfile{}, false, nil
		}
		sheetName = resolved
	}
	var blob string
	err := r.db.QueryRowContext(ctx,
		`SELECT profile_json FROM document_table_profiles WHERE document_id = ? AND sheet_name = ? LIMIT 1`,
		documentID, sheetName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetProfile{}, false, nil
	}
	if err != nil {
		return DatasetProfile{}, false, err
	}
	var profile DatasetProfile
	if err := json.Unmarshal([]byte(blob), &profile); err != nil {
		return DatasetProfile{}, false, err
	}
	return profile, true, nil
}

// ListAllDocumentIDs returns document IDs that have registered analytics
// tables and are marked ready in the documents table.
func (r *MetadataRepository) ListAllDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT dt.document_id FROM document_tables dt
		 INNER JOIN documents d ON dt.document_id = d.document_id
		 WHERE d.status = 'ready' ORDER BY dt.document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument drops every analytics table registered for documentID and
// removes all catalog rows describing it, in one transaction.
func (r *MetadataRepository) DeleteDocument(ctx context.Context, documentID string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT table_name FROM document_tables WHERE document_id = ?`, documentID)
	if err != nil {
		return err
	}
	var tableNames []string
	for rows.Next() {
		var tn string
		if err := rows.Scan(&tn); err != nil {
			rows.Close()
			return err
		}
		tableNames = append(tableNames, tn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, tn := range tableNames {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS "`+tn+`"`); err != nil {
			return err
		}
	}
	for _, stmt := range []string{
		`DELETE FROM document_table_columns WHERE document_id = ?`,
		`DELETE FROM document_table_profiles WHERE document_id = ?`,
		`DELETE FROM document_default_sheet WHERE document_id = ?`,
		`DELETE FROM document_tables WHERE document_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, documentID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
