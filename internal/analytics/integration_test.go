package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"freshness/internal/obs"
	"freshness/internal/store"
)

// buildSubscriptionSheet builds a 10-row sheet whose
// Subscription Date values span 2020 (4 rows), 2021 (3 rows), 2022 (3 rows),
// plus an integer-valued Amount column and a unique Customer Id.
func buildSubscriptionSheet() SheetData {
	dates := []string{
		"2020-01-10", "2020-02-05", "2020-03-15", "2020-06-01",
		"2021-01-10", "2021-05-20", "2021-11-30",
		"2022-01-01", "2022-06-15", "2022-12-31",
	}
	amounts := []string{"100", "101", "102", "103", "104", "105", "106", "107", "108", "109"}
	rows := make([][]string, 0, 10)
	for i, d := range dates {
		rows = append(rows, []string{
			"CUST-" + string(rune('A'+i)),
			amounts[i],
			d,
			boolStr(i%2 == 0),
		})
	}
	return SheetData{
		Name:    "Sheet1",
		Headers: []string{"Customer Id", "Amount", "Subscription Date", "Active"},
		Rows:    rows,
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func setupIngestedStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "file::memory:?cache=shared", 2000)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Documents.SaveDocument(ctx, "doc1", "subs.xlsx", "xlsx", 1024, store.DocumentReady, ""))

	coord := NewCoordinator(s.DB(), s.Analytics)
	require.NoError(t, coord.IngestWorkbook(ctx, "doc1", []SheetData{buildSubscriptionSheet()}))

	return s, "doc1"
}

func TestYearPartitionSumsToTotal(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	total, err := exec.Execute(ctx, NewPlan(docID, OpCountRows))
	require.NoError(t, err)
	require.EqualValues(t, 10, total.Data["count"])

	sum := int64(0)
	for _, year := range []int{2020, 2021, 2022} {
		p := NewPlan(docID, OpCountRows)
		p.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpYearEquals, Value: year}}
		res, err := exec.Execute(ctx, p)
		require.NoError(t, err)
		sum += res.Data["count"].(int64)
	}
	require.EqualValues(t, 10, sum)
}

func TestExecuteWithMetricsRecordsExecutionAndErrorCounters(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	metrics := obs.NewMockMetrics()
	exec := NewExecutor(s.DB(), s.Analytics, nil).WithMetrics(metrics)

	_, err := exec.Execute(ctx, NewPlan(docID, OpCountRows))
	require.NoError(t, err)
	require.Equal(t, 1, metrics.Counters["analytics_plan_executions"])

	bad := NewPlan(docID, OpCountRows)
	bad.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpBetweenDates, Value: "not-a-pair"}}
	_, err = exec.Execute(ctx, bad)
	require.Error(t, err)
	require.Equal(t, 2, metrics.Counters["analytics_plan_executions"])
	require.Equal(t, 1, metrics.Counters["analytics_plan_errors"])
}

func TestMonthEqualsSingleMarchRow(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	p := NewPlan(docID, OpCountRows)
	p.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpMonthEquals, Value: "2020-03"}}
	res, err := exec.Execute(ctx, p)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Data["count"])
}

func TestCountDistinctCustomerIdsAllUnique(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	p := NewPlan(docID, OpCountDistinct)
	p.TargetColumn = "Customer Id"
	res, err := exec.Execute(ctx, p)
	require.NoError(t, err)
	require.EqualValues(t, 10, res.Data["count_distinct"])
}

func TestGroupByCountActiveSumsToTotal(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	p := NewPlan(docID, OpGroupByCount)
	p.GroupBy = "Active"
	p.TopN = 10
	res, err := exec.Execute(ctx, p)
	require.NoError(t, err)

	rows := res.Data["rows"].([]map[string]any)
	total := int64(0)
	for _, r := range rows {
		total += r["count"].(int64)
	}
	require.EqualValues(t, 10, total)
}

func TestSumAmount(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	p := NewPlan(docID, OpSum)
	p.TargetColumn = "Amount"
	res, err := exec.Execute(ctx, p)
	require.NoError(t, err)
	require.EqualValues(t, 1045, res.Data["sum"])
}

func TestAvgAmountRoundedToFourDecimals(t *testing.T) {
	ctx := context.Background()
	s, docID := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	p := NewPlan(docID, OpAvg)
	p.TargetColumn = "Amount"
	res, err := exec.Execute(ctx, p)
	require.NoError(t, err)
	require.EqualValues(t, 104.5, res.Data["avg"])
}

func TestExecuteUnknownDocumentRaisesRoutingError(t *testing.T) {
	ctx := context.Background()
	s, _ := setupIngestedStore(t)
	exec := NewExecutor(s.DB(), s.Analytics, nil)

	_, err := exec.Execute(ctx, NewPlan("no-such-doc", OpCountRows))
	require.Error(t, err)
	var re *RoutingError
	require.ErrorAs(t, err, &re)
}
