package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePlanIsPure(t *testing.T) {
	p := NewPlan("doc1", OpGroupByCount)
	p.GroupBy = "Active"
	p.Where = []WherePredicate{{Column: "Amount", Operator: OpGte, Value: 10.0}}

	cols := testColumns()
	a, err := CompilePlan(p, "doc_table", cols)
	require.NoError(t, err)
	b, err := CompilePlan(p, "doc_table", cols)
	require.NoError(t, err)

	assert.Equal(t, a.SQL, b.SQL)
	assert.Equal(t, a.Parameters, b.Parameters)
}

func TestCompileCountRows(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(1) AS count FROM "sheet_tbl";`, compiled.SQL)
	assert.Empty(t, compiled.Parameters)
}

func TestCompileYearEquals(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpYearEquals, Value: 2020}}

	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	require.Len(t, compiled.Parameters, 2)

	start := compiled.Parameters[0].(int64)
	end := compiled.Parameters[1].(int64)
	assert.Equal(t, int64(366*86400), end-start)
}

func TestCompileMonthEqualsDecemberWrapsYear(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpMonthEquals, Value: "2020-12"}}

	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	require.Len(t, compiled.Parameters, 2)

	start := compiled.Parameters[0].(int64)
	end := compiled.Parameters[1].(int64)
	assert.Equal(t, int64(31*86400), end-start)
}

func TestCompileBetweenDatesInclusiveSameDay(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpBetweenDates, Value: []string{"2020-03-15", "2020-03-15"}}}

	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	start := compiled.Parameters[0].(int64)
	end := compiled.Parameters[1].(int64)
	assert.Equal(t, int64(86400), end-start)
}

func TestCompileGroupByCountClampsTopN(t *testing.T) {
	p := NewPlan("doc1", OpGroupByCount)
	p.GroupBy = "Active"
	p.TopN = 5000

	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LIMIT 1000")
}

func TestCompileSelectRowsClampsLimit(t *testing.T) {
	p := NewPlan("doc1", OpSelectRows)
	p.Limit = 0

	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LIMIT 1")
}

func TestCompileContainsAndStartswith(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{
		{Column: "Customer Id", Operator: OpContains, Value: "abc"},
		{Column: "Customer Id", Operator: OpStartsWith, Value: "abc"},
	}
	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	assert.Equal(t, "%abc%", compiled.Parameters[0])
	assert.Equal(t, "abc%", compiled.Parameters[1])
}

func TestCompileUnknownColumnErrors(t *testing.T) {
	p := NewPlan("doc1", OpSum)
	p.TargetColumn = "Nonexistent"
	_, err := CompilePlan(p, "sheet_tbl", testColumns())
	assert.Error(t, err)
	var ce *CompilationError
	assert.ErrorAs(t, err, &ce)
}

func TestCompileSelectRowsDefaultClauseExcludesInternalColumns(t *testing.T) {
	p := NewPlan("doc1", OpSelectRows)
	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	assert.NotContains(t, compiled.SQL, "source_row_number")
}
