package analytics

import (
	"fmt"
	"strings"

	"freshness/internal/store"
)

// ValidationError reports a structural or type-compatibility violation in a
// Plan.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "analytics: plan validation: " + e.Reason
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// visibleColumns excludes catalog entries whose original name begins with
// "_" (internal bookkeeping columns such as _source_row_number).
func visibleColumns(columns map[string]store.ColumnMetadata) map[string]store.ColumnMetadata {
	out := make(map[string]store.ColumnMetadata, len(columns))
	for name, col := range columns {
		if strings.HasPrefix(name, "_") {
			continue
		}
		out[name] = col
	}
	return out
}

// ValidatePlan checks p against the column catalog for its target sheet,
// returning a *ValidationError describing the first violation found.
func ValidatePlan(p *Plan, columns map[string]store.ColumnMetadata) error {
	visible := visibleColumns(columns)

	if opsRequiringTarget[p.Operation] {
		if p.TargetColumn == "" {
			return newValidationError("%s requires target_column", p.Operation)
		}
		col, ok := visible[p.TargetColumn]
		if !ok {
			return newValidationError("target_column %q is not a visible column", p.TargetColumn)
		}
		if numericAggregates[p.Operation] && col.LogicalType != string(LogicalInteger) &&
			col.LogicalType != string(LogicalFloat) && col.LogicalType != string(LogicalDate) {
			return newValidationError("%s requires a numeric column, got %q (%s)", p.Operation, p.TargetColumn, col.LogicalType)
		}
	}

	if p.Operation == OpGroupByCount {
		groupCol := p.GroupBy
		if groupCol == "" {
			groupCol = p.TargetColumn
		}
		if groupCol == "" {
			return newValidationError("groupby_count requires group_by or target_column")
		}
		if _, ok := visible[groupCol]; !ok {
			return newValidationError("group_by column %q is not a visible column", groupCol)
		}
	}

	if p.Operation == OpSelectRows {
		for _, name := range p.SelectColumns {
			if _, ok := visible[name]; !ok {
				return newValidationError("select_columns references unknown column %q", name)
			}
		}
	}

	for _, f := range p.Where {
		col, ok := visible[f.Column]
		if !ok {
			return newValidationError("filter column %q is not a visible column", f.Column)
		}
		if err := validateOperatorTypeCompat(f.Operator, LogicalType(col.LogicalType)); err != nil {
			return err
		}
	}

	return nil
}

func validateOperatorTypeCompat(op FilterOperator, logicalType LogicalType) error {
	if universalOps[op] {
		return nil
	}
	if numericOnlyOps[op] {
		if logicalType == LogicalInteger || logicalType == LogicalFloat || logicalType == LogicalDate {
			return nil
		}
		return newValidationError("operator %q requires a numeric or date column, got %s", op, logicalType)
	}
	if stringOnlyOps[op] {
		if logicalType == LogicalString {
			return nil
		}
		return newValidationError("operator %q requires a string column, got %s", op, logicalType)
	}
	if dateOnlyOps[op] {
		if logicalType == LogicalDate {
			return nil
		}
		return newValidationError("operator %q requires a date column, got %s", op, logicalType)
	}
	return newValidationError("unknown operator %q", op)
}

// ValidateResult logs (via the caller-supplied warn func) a sanity warning
// when a count-like result exceeds the profile's row_count. It never
// returns an error: result validation is advisory only.
func ValidateResult(warn func(msg string, fields map[string]any), result map[string]any, profile store.DatasetProfile) {
	for _, key := range []string{"count", "count_distinct"} {
		v, ok := result[key]
		if !ok {
			continue
		}
		n, ok := v.(int64)
		if !ok {
			continue
		}
		if int(n) > profile.RowCount {
			warn("analytics result exceeds profiled row count", map[string]any{
				"field": key, "value": n, "row_count": profile.RowCount,
			})
		}
	}
}
