package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"freshness/internal/obs"
	"freshness/internal/store"
)

// RoutingError reports a required-input failure before compilation even
// starts: unknown document, no default sheet, no column catalog for the
// (document, sheet) pair (named for the analytics path's own resolution
// step, distinct from C12's
// query router).
type RoutingError struct {
	Reason string
}

func (e *RoutingError) Error() string { return "analytics: " + e.Reason }

// ExecutionError wraps a failure raised by the relational store while
// running a compiled statement.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("analytics: execution failed for %q: %v", e.SQL, e.Err)
}
func (e *ExecutionError) Unwrap() error { return e.Err }

// Result is the typed, operation-shaped output of executing a Plan.
type Result struct {
	Summary    string
	SQL        string
	Parameters []any
	Data       map[string]any
}

// Executor resolves a Plan's sheet and columns via the catalog, validates,
// compiles, and executes it against the shared relational store handle.
type Executor struct {
	db      *sql.DB
	catalog *store.MetadataRepository
	log     obs.Logger
	metrics obs.Metrics
}

// NewExecutor constructs an Executor over db (the store's shared handle)
// and catalog (its analytics metadata repository).
func NewExecutor(db *sql.DB, catalog *store.MetadataRepository, log obs.Logger) *Executor {
	if log == nil {
		log = obs.NoopLogger{}
	}
	return &Executor{db: db, catalog: catalog, log: log, metrics: obs.NoopMetrics{}}
}

// WithMetrics attaches a Metrics sink and returns e, for chaining onto
// NewExecutor. A nil m leaves the no-op default in place.
func (e *Executor) WithMetrics(m obs.Metrics) *Executor {
	if m != nil {
		e.metrics = m
	}
	return e
}

// Execute runs p end to end: resolve sheet/table/columns, validate, compile,
// run the statement, and format the row set per p.Operation.
func (e *Executor) Execute(ctx context.Context, p *Plan) (Result, error) {
	labels := map[string]string{"operation": string(p.Operation)}
	e.metrics.IncCounter("analytics_plan_executions", labels)

	result, err := e.execute(ctx, p)
	if err != nil {
		e.metrics.IncCounter("analytics_plan_errors", labels)
	}
	return result, err
}

func (e *Executor) execute(ctx context.Context, p *Plan) (Result, error) {
	sheetName := p.SheetName
	if sheetName == "" {
		resolved, err := e.catalog.ResolveDefaultSheetName(ctx, p.DocumentID)
		if err != nil {
			return Result{}, err
		}
		if resolved == "" {
			return Result{}, &RoutingError{Reason: fmt.Sprintf("no default sheet registered for document %q", p.DocumentID)}
		}
		sheetName = resolved
	}

	tableName, err := e.catalog.GetTableName(ctx, p.DocumentID, sheetName)
	if err != nil {
		return Result{}, err
	}
	if tableName == "" {
		return Result{}, &RoutingError{Reason: fmt.Sprintf("no table registered for document %q sheet %q", p.DocumentID, sheetName)}
	}

	columns, err := e.catalog.GetColumns(ctx, p.DocumentID, sheetName)
	if err != nil {
		return Result{}, err
	}
	if len(columns) == 0 {
		return Result{}, &RoutingError{Reason: fmt.Sprintf("no column catalog for document %q sheet %q", p.DocumentID, sheetName)}
	}

	if err := ValidatePlan(p, columns); err != nil {
		return Result{}, err
	}

	compiled, err := CompilePlan(p, tableName, columns)
	if err != nil {
		return Result{}, err
	}

	result, err := e.run(ctx, p.Operation, compiled)
	if err != nil {
		return Result{}, err
	}

	if profile, ok, profErr := e.catalog.GetProfile(ctx, p.DocumentID, sheetName); profErr == nil && ok {
		ValidateResult(e.log.Debug, result.Data, profile)
	}

	return result, nil
}

func (e *Executor) run(ctx context.Context, op Operation, compiled CompiledSQL) (Result, error) {
	switch op {
	case OpCountRows:
		return e.scalarInt(ctx, compiled, "count", "%d row(s) match the query.")
	case OpCountDistinct:
		return e.scalarInt(ctx, compiled, "count_distinct", "%d distinct value(s) found.")
	case OpSum:
		return e.scalarFloat(ctx, compiled, "sum", false)
	case OpAvg:
		return e.scalarFloat(ctx, compiled, "avg", true)
	case OpMin, OpMax:
		return e.scalarAny(ctx, compiled, string(op))
	case OpGroupByCount:
		return e.groupByCount(ctx, compiled)
	case OpSelectRows:
		return e.selectRows(ctx, compiled)
	default:
		return Result{}, newCompilationError("unknown operation %q", op)
	}
}

func (e *Executor) scalarInt(ctx context.Context, compiled CompiledSQL, field, summaryFmt string) (Result, error) {
	var n sql.NullInt64
	if err := e.db.QueryRowContext(ctx, compiled.SQL, compiled.Parameters...).Scan(&n); err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	value := int64(0)
	if n.Valid {
		value = n.Int64
	}
	return Result{
		Summary:    fmt.Sprintf(summaryFmt, value),
		SQL:        compiled.SQL,
		Parameters: compiled.Parameters,
		Data:       map[string]any{field: value},
	}, nil
}

func (e *Executor) scalarFloat(ctx context.Context, compiled CompiledSQL, field string, round bool) (Result, error) {
	var n sql.NullFloat64
	if err := e.db.QueryRowContext(ctx, compiled.SQL, compiled.Parameters...).Scan(&n); err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	if !n.Valid {
		// sum over zero matching rows coerces to 0; avg over zero rows
		// passes through as null.
		if field == "sum" {
			return Result{Summary: "0", SQL: compiled.SQL, Parameters: compiled.Parameters, Data: map[string]any{field: float64(0)}}, nil
		}
		return Result{Summary: "no matching rows", SQL: compiled.SQL, Parameters: compiled.Parameters, Data: map[string]any{field: nil}}, nil
	}
	value := n.Float64
	if round {
		value = roundTo(value, 4)
	}
	return Result{
		Summary:    fmt.Sprintf("%s = %v", field, value),
		SQL:        compiled.SQL,
		Parameters: compiled.Parameters,
		Data:       map[string]any{field: value},
	}, nil
}

func (e *Executor) scalarAny(ctx context.Context, compiled CompiledSQL, field string) (Result, error) {
	rows, err := e.db.QueryContext(ctx, compiled.SQL, compiled.Parameters...)
	if err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	defer rows.Close()

	var value any
	if rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
		}
		value = v
	}
	return Result{
		Summary:    fmt.Sprintf("%s = %v", field, value),
		SQL:        compiled.SQL,
		Parameters: compiled.Parameters,
		Data:       map[string]any{field: value},
	}, rows.Err()
}

func (e *Executor) groupByCount(ctx context.Context, compiled CompiledSQL) (Result, error) {
	rows, err := e.db.QueryContext(ctx, compiled.SQL, compiled.Parameters...)
	if err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var key any
		var cnt int64
		if err := rows.Scan(&key, &cnt); err != nil {
			return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
		}
		out = append(out, map[string]any{"key": key, "count": cnt})
	}
	if err := rows.Err(); err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	return Result{
		Summary:    fmt.Sprintf("%d group(s) found.", len(out)),
		SQL:        compiled.SQL,
		Parameters: compiled.Parameters,
		Data:       map[string]any{"rows": out},
	}, nil
}

func (e *Executor) selectRows(ctx context.Context, compiled CompiledSQL) (Result, error) {
	rows, err := e.db.QueryContext(ctx, compiled.SQL, compiled.Parameters...)
	if err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, &ExecutionError{SQL: compiled.SQL, Err: err}
	}
	return Result{
		Summary:    fmt.Sprintf("%d row(s) returned.", len(out)),
		SQL:        compiled.SQL,
		Parameters: compiled.Parameters,
		Data:       map[string]any{"rows": out, "row_count": len(out)},
	}, nil
}

func roundTo(v float64, decimals int) float64 {
	pow := 1.0
	for i := 0; i < decimals; i++ {
		pow *= 10
	}
	if v >= 0 {
		return float64(int64(v*pow+0.5)) / pow
	}
	return float64(int64(v*pow-0.5)) / pow
}
