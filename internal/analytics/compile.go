package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"freshness/internal/store"
)

// CompilationError reports a compiler-time failure: an unknown column, a
// malformed operator value, or a missing aggregate target slipping past
// validation.
type CompilationError struct {
	Reason string
}

func (e *CompilationError) Error() string {
	return "analytics: compilation: " + e.Reason
}

func newCompilationError(format string, args ...any) error {
	return &CompilationError{Reason: fmt.Sprintf(format, args...)}
}

// CompiledSQL is the compiler's (sql, parameters) output, kept separate so
// the executor can log/echo it without re-deriving anything.
type CompiledSQL struct {
	SQL        string
	Parameters []any
}

// CompilePlan compiles p into parameterized SQL against tableName, resolving
// every column reference through columns (original header -> catalog entry,
// as returned by store.MetadataRepository.GetColumns). Compiling the same
// plan twice against the same catalog always yields identical output
// since the function is pure over its inputs.
func CompilePlan(p *Plan, tableName string, columns map[string]store.ColumnMetadata) (CompiledSQL, error) {
	whereSQL, params, err := compileWhere(p.Where, columns)
	if err != nil {
		return CompiledSQL{}, err
	}

	switch p.Operation {
	case OpCountRows:
		return CompiledSQL{
			SQL:        fmt.Sprintf("SELECT COUNT(1) AS count FROM %s%s;", quoteIdent(tableName), whereSQL),
			Parameters: params,
		}, nil

	case OpCountDistinct:
		safe, err := resolveSafe(columns, p.TargetColumn)
		if err != nil {
			return CompiledSQL{}, err
		}
		return CompiledSQL{
			SQL:        fmt.Sprintf("SELECT COUNT(DISTINCT %s) AS count_distinct FROM %s%s;", safe, quoteIdent(tableName), whereSQL),
			Parameters: params,
		}, nil

	case OpSum, OpAvg, OpMin, OpMax:
		safe, err := resolveSafe(columns, p.TargetColumn)
		if err != nil {
			return CompiledSQL{}, err
		}
		agg, alias := aggFor(p.Operation)
		return CompiledSQL{
			SQL:        fmt.Sprintf("SELECT %s(%s) AS %s FROM %s%s;", agg, safe, alias, quoteIdent(tableName), whereSQL),
			Parameters: params,
		}, nil

	case OpGroupByCount:
		groupCol := p.GroupBy
		if groupCol == "" {
			groupCol = p.TargetColumn
		}
		safe, err := resolveSafe(columns, groupCol)
		if err != nil {
			return CompiledSQL{}, err
		}
		orderSQL, err := orderSQLFor(p.Order, safe)
		if err != nil {
			return CompiledSQL{}, err
		}
		topN := clamp(p.TopN, 1, 1000)
		return CompiledSQL{
			SQL: fmt.Sprintf("SELECT %s AS key, COUNT(1) AS cnt FROM %s%s GROUP BY %s ORDER BY %s LIMIT %d;",
				safe, quoteIdent(tableName), whereSQL, safe, orderSQL, topN),
			Parameters: params,
		}, nil

	case OpSelectRows:
		selectClause, err := selectClauseFor(p.SelectColumns, columns)
		if err != nil {
			return CompiledSQL{}, err
		}
		limit := clamp(p.Limit, 1, 500)
		return CompiledSQL{
			SQL:        fmt.Sprintf("SELECT %s FROM %s%s LIMIT %d;", selectClause, quoteIdent(tableName), whereSQL, limit),
			Parameters: params,
		}, nil

	default:
		return CompiledSQL{}, newCompilationError("unknown operation %q", p.Operation)
	}
}

func aggFor(op Operation) (sqlFunc, alias string) {
	switch op {
	case OpSum:
		return "SUM", "sum"
	case OpAvg:
		return "AVG", "avg"
	case OpMin:
		return "MIN", "min"
	default:
		return "MAX", "max"
	}
}

func orderSQLFor(order Order, safe string) (string, error) {
	switch order {
	case OrderCountDesc, "":
		return "cnt DESC", nil
	case OrderCountAsc:
		return "cnt ASC", nil
	case OrderKeyAsc:
		return safe + " ASC", nil
	case OrderKeyDesc:
		return safe + " DESC", nil
	default:
		return "", newCompilationError("unknown order %q", order)
	}
}

func selectClauseFor(selectColumns []string, columns map[string]store.ColumnMetadata) (string, error) {
	if len(selectColumns) == 0 {
		names := visibleColumnNamesOrdered(columns)
		return aliasedClause(names, columns)
	}
	return aliasedClause(selectColumns, columns)
}

func aliasedClause(names []string, columns map[string]store.ColumnMetadata) (string, error) {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		col, ok := columns[name]
		if !ok {
			return "", newCompilationError("unknown column %q in select clause", name)
		}
		parts = append(parts, fmt.Sprintf("%s AS %s", col.SafeName, quoteIdent(col.OriginalName)))
	}
	return strings.Join(parts, ", "), nil
}

// visibleColumnNamesOrdered has no stable ordering guarantee from a Go map;
// callers needing the catalog's ordinal order should pass select_columns
// explicitly. select_rows with a nil select list sorts names for
// deterministic output instead of relying on map iteration order.
func visibleColumnNamesOrdered(columns map[string]store.ColumnMetadata) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func resolveSafe(columns map[string]store.ColumnMetadata, original string) (string, error) {
	col, ok := columns[original]
	if !ok {
		return "", newCompilationError("unknown column %q", original)
	}
	return col.SafeName, nil
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func compileWhere(preds []WherePredicate, columns map[string]store.ColumnMetadata) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(preds))
	var params []any

	for _, p := range preds {
		safe, err := resolveSafe(columns, p.Column)
		if err != nil {
			return "", nil, err
		}
		clause, clauseParams, err := compilePredicate(safe, p)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		params = append(params, clauseParams...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), params, nil
}

func compilePredicate(safe string, p WherePredicate) (string, []any, error) {
	switch p.Operator {
	case OpEq:
		return safe + " = ?", []any{p.Value}, nil
	case OpNeq:
		return safe + " != ?", []any{p.Value}, nil
	case OpGt:
		return safe + " > ?", []any{p.Value}, nil
	case OpGte:
		return safe + " >= ?", []any{p.Value}, nil
	case OpLt:
		return safe + " < ?", []any{p.Value}, nil
	case OpLte:
		return safe + " <= ?", []any{p.Value}, nil
	case OpContains:
		return safe + " LIKE ?", []any{"%" + fmt.Sprint(p.Value) + "%"}, nil
	case OpStartsWith:
		return safe + " LIKE ?", []any{fmt.Sprint(p.Value) + "%"}, nil
	case OpEndsWith:
		return safe + " LIKE ?", []any{"%" + fmt.Sprint(p.Value)}, nil
	case OpIsNull:
		return safe + " IS NULL", nil, nil
	case OpIsNotNull:
		return safe + " IS NOT NULL", nil, nil
	case OpYearEquals:
		return compileYearEquals(safe, p.Value)
	case OpMonthEquals:
		return compileMonthEquals(safe, p.Value)
	case OpBetweenDates:
		return compileBetweenDates(safe, p.Value)
	default:
		return "", nil, newCompilationError("unknown filter operator %q", p.Operator)
	}
}

func compileYearEquals(safe string, value any) (string, []any, error) {
	year, err := toInt(value)
	if err != nil {
		return "", nil, newCompilationError("year_equals requires an integer year: %v", err)
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	return fmt.Sprintf("(%s >= ? AND %s < ?)", safe, safe), []any{start, end}, nil
}

func compileMonthEquals(safe string, value any) (string, []any, error) {
	s, ok := value.(string)
	if !ok {
		return "", nil, newCompilationError("month_equals requires a \"YYYY-MM\" string")
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return "", nil, newCompilationError("month_equals value %q is not in YYYY-MM form", s)
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return "", nil, newCompilationError("month_equals value %q is not in YYYY-MM form", s)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return fmt.Sprintf("(%s >= ? AND %s < ?)", safe, safe), []any{start.Unix(), end.Unix()}, nil
}

func compileBetweenDates(safe string, value any) (string, []any, error) {
	pair, ok := stringPair(value)
	if !ok || len(pair) != 2 {
		return "", nil, newCompilationError("between_dates requires a [start_iso, end_iso] pair")
	}
	start, err := time.Parse("2006-01-02", pair[0])
	if err != nil {
		return "", nil, newCompilationError("between_dates start %q is not an ISO date: %v", pair[0], err)
	}
	end, err := time.Parse("2006-01-02", pair[1])
	if err != nil {
		return "", nil, newCompilationError("between_dates end %q is not an ISO date: %v", pair[1], err)
	}
	startEpoch := start.UTC().Unix()
	// Half-open end one day past `end` gives inclusive semantics for both
	// endpoints on day boundaries.
	endEpoch := end.UTC().Unix() + 86400
	return fmt.Sprintf("(%s >= ? AND %s < ?)", safe, safe), []any{startEpoch, endEpoch}, nil
}

// stringPair coerces a filter value into a two-element string slice. A
// plan decoded from JSON (the external planner's output) holds filters[].value
// as []interface{}, not []string, so both representations are accepted.
func stringPair(v any) ([]string, bool) {
	switch pair := v.(type) {
	case []string:
		return pair, true
	case []any:
		out := make([]string, 0, len(pair))
		for _, elem := range pair {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported numeric value %v (%T)", v, v)
	}
}
