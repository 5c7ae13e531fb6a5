package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlanJSONBetweenDatesCompilesThroughTheWireBoundary(t *testing.T) {
	raw := `{
		"operation": "count_rows",
		"filters": [
			{"column": "Subscription Date", "operator": "between_dates", "value": ["2020-03-15", "2020-03-20"]}
		]
	}`

	p, err := ParsePlanJSON(raw, "doc1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Len(t, p.Where, 1)

	// encoding/json decodes a JSON array into []interface{}, never []string,
	// so this predicate's Value is the shape CompilePlan must accept.
	_, isStringSlice := p.Where[0].Value.([]string)
	require.False(t, isStringSlice)

	compiled, err := CompilePlan(p, "sheet_tbl", testColumns())
	require.NoError(t, err)
	require.Len(t, compiled.Parameters, 2)

	start := compiled.Parameters[0].(int64)
	end := compiled.Parameters[1].(int64)
	require.Equal(t, int64(6*86400), end-start)
}
