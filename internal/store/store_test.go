package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file::memory:?cache=shared", 2000)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArchiveSaveAndGetPage(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	hash, err := s.Archive.SavePage(ctx, "golang concurrency", "https://example.com/a", "article body")
	require.NoError(t, err)
	require.Equal(t, HashURL("https://example.com/a"), hash)

	page, err := s.Archive.GetPage(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a", page.URL)
	require.Equal(t, "article body", page.Content)
}

func TestArchiveSearchPagesPagination(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.Archive.SavePage(ctx, "q", "https://example.com/p"+string(rune('0'+i)), "content about go")
		require.NoError(t, err)
	}

	res, err := s.Archive.SearchPages(ctx, "go", 2)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	require.Equal(t, 3, res.Total)
	require.NotEmpty(t, res.Cursor)
}

func TestArchiveCachedAnswerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.Archive.SaveAnswer(ctx, "What is Go?", "A language.", "https://go.dev", "designed at Google")
	require.NoError(t, err)

	a, err := s.Archive.GetCachedAnswer(ctx, "  what is go?  ")
	require.NoError(t, err)
	require.Equal(t, "A language.", a.Answer)
	require.Equal(t, "https://go.dev", a.CitationURL)
}

func TestArchiveGetCachedAnswerMissing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Archive.GetCachedAnswer(ctx, "nothing cached")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Documents.SaveDocument(ctx, "doc1", "report.xlsx", "xlsx", 2048, DocumentPending, ""))

	info, err := s.Documents.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, DocumentPending, info.Status)
	require.Equal(t, 0, info.ChunkCount)

	require.NoError(t, s.Documents.UpdateStatus(ctx, "doc1", DocumentReady, ""))

	require.NoError(t, s.Documents.SaveChunks(ctx, "doc1", []DocumentChunk{
		{ChunkIndex: 0, Content: "revenue grew by double digits", Metadata: map[string]any{"sheet": "Q1"}},
		{ChunkIndex: 1, Content: "headcount remained flat", Metadata: map[string]any{"sheet": "Q1"}},
	}))

	info, err = s.Documents.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Equal(t, DocumentReady, info.Status)
	require.Equal(t, 2, info.ChunkCount)

	hits, err := s.Documents.SearchChunksKeyword(ctx, "revenue growth", nil, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Contains(t, hits[0].Content, "revenue")

	deleted, err := s.Documents.DeleteDocument(ctx, "doc1")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = s.Documents.GetDocument(ctx, "doc1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyticsCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Documents.SaveDocument(ctx, "doc2", "sales.xlsx", "xlsx", 4096, DocumentReady, ""))
	require.NoError(t, s.Analytics.RegisterTable(ctx, "doc2", "Sheet1", "sheet_doc2_sheet1", 100))
	require.NoError(t, s.Analytics.RegisterDefaultSheet(ctx, "doc2", "Sheet1"))

	cols := []ColumnMetadata{
		{OriginalName: "Region", SafeName: "region", LogicalType: "string", SQLiteType: "TEXT", Nullable: true},
		{OriginalName: "Units Sold", SafeName: "units_sold", LogicalType: "integer", SQLiteType: "INTEGER", Nullable: true},
	}
	require.NoError(t, s.Analytics.RegisterColumns(ctx, "doc2", "Sheet1", cols))

	tableName, err := s.Analytics.GetTableName(ctx, "doc2", "")
	require.NoError(t, err)
	require.Equal(t, "sheet_doc2_sheet1", tableName)

	got, err := s.Analytics.GetColumns(ctx, "doc2", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "units_sold", got["Units Sold"].SafeName)

	profile := DatasetProfile{RowCount: 100, Columns: map[string]ColumnProfile{
		"Region": {NullCount: 0, DistinctCount: 4},
	}}
	require.NoError(t, s.Analytics.UpsertProfile(ctx, "doc2", "Sheet1", profile))

	got2, ok, err := s.Analytics.GetProfile(ctx, "doc2", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, got2.RowCount)

	ids, err := s.Analytics.ListAllDocumentIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, ids, "doc2")

	require.NoError(t, s.Analytics.DeleteDocument(ctx, "doc2"))
	tableName, err = s.Analytics.GetTableName(ctx, "doc2", "Sheet1")
	require.NoError(t, err)
	require.Empty(t, tableName)
}
