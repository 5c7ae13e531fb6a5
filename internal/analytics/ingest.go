package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"freshness/internal/store"
)

// SheetData is the ingestion coordinator's input boundary: one worksheet's
// name, ordered headers, and raw string rows, already extracted from
// whatever spreadsheet format (xlsx/xls) the document reader parsed.
type SheetData struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// internalRowNumberColumn is prepended to every ingested sheet so chunked
// document retrieval can address "row N" without relying on any
// caller-visible column.
const internalRowNumberColumn = "_source_row_number"

var indexingSubstrings = []string{"_id", "id", "code", "index"}

// Coordinator ingests workbook sheets into the shared relational store and
// registers their catalog entries, implementing C13.
type Coordinator struct {
	db      *sql.DB
	catalog *store.MetadataRepository
}

// NewCoordinator constructs a Coordinator over the store's shared handle
// and its analytics metadata repository.
func NewCoordinator(db *sql.DB, catalog *store.MetadataRepository) *Coordinator {
	return &Coordinator{db: db, catalog: catalog}
}

// IngestWorkbook ingests every non-empty sheet of a workbook for
// documentID. The first sheet in workbook order becomes the document's
// default sheet. A sheet-level failure during table creation or row
// insertion aborts that sheet (and is returned); profiling failures are
// swallowed (profile is simply not persisted).
func (c *Coordinator) IngestWorkbook(ctx context.Context, documentID string, sheets []SheetData) error {
	for i, sheet := range sheets {
		if len(sheet.Rows) == 0 || len(sheet.Headers) == 0 {
			continue
		}
		if err := c.ingestSheet(ctx, documentID, sheet); err != nil {
			return fmt.Errorf("analytics: ingest sheet %q: %w", sheet.Name, err)
		}
		if i == 0 {
			if err := c.catalog.RegisterDefaultSheet(ctx, documentID, sheet.Name); err != nil {
				return fmt.Errorf("analytics: register default sheet: %w", err)
			}
		}
	}
	return nil
}

func (c *Coordinator) ingestSheet(ctx context.Context, documentID string, sheet SheetData) error {
	tableName := TableName(documentID, sheet.Name)
	safeNames := DisambiguateNames(sheet.Headers)

	logicalTypes := make([]LogicalType, len(sheet.Headers))
	for i := range sheet.Headers {
		samples := make([]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			if i < len(row) {
				samples = append(samples, row[i])
			}
		}
		logicalTypes[i] = InferLogicalType(samples)
	}

	cols := make([]store.ColumnMetadata, 0, len(sheet.Headers)+1)
	cols = append(cols, store.ColumnMetadata{
		OriginalName: internalRowNumberColumn,
		SafeName:     "col__source_row_number",
		LogicalType:  string(LogicalInteger),
		SQLiteType:   "INTEGER",
		Nullable:     false,
	})
	for i, header := range sheet.Headers {
		cols = append(cols, store.ColumnMetadata{
			OriginalName: header,
			SafeName:     safeNames[i],
			LogicalType:  string(logicalTypes[i]),
			SQLiteType:   logicalTypes[i].SQLiteType(),
			Nullable:     true,
		})
	}

	if err := c.createTable(ctx, tableName, cols); err != nil {
		return err
	}
	if err := c.insertRows(ctx, tableName, cols, sheet.Rows, logicalTypes); err != nil {
		return err
	}

	if err := c.catalog.RegisterTable(ctx, documentID, sheet.Name, tableName, len(sheet.Rows)); err != nil {
		return fmt.Errorf("register table: %w", err)
	}
	if err := c.catalog.RegisterColumns(ctx, documentID, sheet.Name, cols); err != nil {
		return fmt.Errorf("register columns: %w", err)
	}

	// Profiling failures are advisory only; they never abort the sheet.
	if profile, err := computeProfile(sheet, logicalTypes); err == nil {
		_ = c.catalog.UpsertProfile(ctx, documentID, sheet.Name, profile)
	}

	return nil
}

func (c *Coordinator) createTable(ctx context.Context, tableName string, cols []store.ColumnMetadata) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(tableName)); err != nil {
		return err
	}

	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = quoteIdent(col.SafeName) + " " + col.SQLiteType
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return err
	}

	for _, col := range cols {
		if shouldIndex(col) {
			idxSQL := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				quoteIdent("idx_"+tableName+"_"+col.SafeName), quoteIdent(tableName), quoteIdent(col.SafeName))
			if _, err := tx.ExecContext(ctx, idxSQL); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func shouldIndex(col store.ColumnMetadata) bool {
	if col.OriginalName == internalRowNumberColumn {
		return true
	}
	if col.LogicalType == string(LogicalDate) {
		return true
	}
	lower := strings.ToLower(col.OriginalName)
	for _, sub := range indexingSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func (c *Coordinator) insertRows(ctx context.Context, tableName string, cols []store.ColumnMetadata, rows [][]string, logicalTypes []LogicalType) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, col := range cols {
		placeholders[i] = "?"
		names[i] = quoteIdent(col.SafeName)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), strings.Join(names, ", "), strings.Join(placeholders, ", "))

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for rowIdx, row := range rows {
		values := make([]any, 0, len(cols))
		values = append(values, int64(rowIdx+1)) // _source_row_number, 1-based
		for i, lt := range logicalTypes {
			var raw string
			if i < len(row) {
				raw = row[i]
			}
			values = append(values, NormalizeCell(raw, lt))
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func computeProfile(sheet SheetData, logicalTypes []LogicalType) (store.DatasetProfile, error) {
	profile := store.DatasetProfile{
		RowCount: len(sheet.Rows),
		Columns:  make(map[string]store.ColumnProfile, len(sheet.Headers)),
	}

	for i, header := range sheet.Headers {
		if strings.HasPrefix(header, "_") {
			continue
		}
		lt := logicalTypes[i]
		distinct := map[string]struct{}{}
		nullCount := 0
		var min, max any

		for _, row := range sheet.Rows {
			var raw string
			if i < len(row) {
				raw = row[i]
			}
			normalized := NormalizeCell(raw, lt)
			if normalized == nil {
				nullCount++
				continue
			}
			distinct[fmt.Sprint(normalized)] = struct{}{}

			if lt == LogicalInteger || lt == LogicalFloat || lt == LogicalDate {
				if min == nil || compareNumeric(normalized, min) < 0 {
					min = normalized
				}
				if max == nil || compareNumeric(normalized, max) > 0 {
					max = normalized
				}
			}
		}

		rowCount := len(sheet.Rows)
		ratio := 0.0
		if rowCount > 0 {
			ratio = float64(nullCount) / float64(rowCount)
		}
		profile.Columns[header] = store.ColumnProfile{
			NullCount:     nullCount,
			NullRatio:     ratio,
			DistinctCount: len(distinct),
			MinValue:      min,
			MaxValue:      max,
		}
	}

	return profile, nil
}

func compareNumeric(a, b any) int {
	af := toFloat(a)
	bf := toFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
