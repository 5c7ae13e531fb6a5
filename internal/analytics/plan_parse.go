package analytics

import (
	"encoding/json"
	"strings"
)

// ParsePlanJSON parses the external planner's raw JSON response into a Plan
// for documentID, applying default-coercion rules (order defaults to
// count_desc, top_n to 50 clamped to 1..1000, limit to 100 clamped to
// 1..500, a missing/null filters list becomes empty) and a tolerant
// brace-slice fallback when the planner wraps the object in commentary,
// matching llm.ParseExtraction's tolerant-parse idiom. Returns nil, nil
// when raw is empty or neither parse attempt yields valid JSON.
func ParsePlanJSON(raw, documentID string) (*Plan, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var wire struct {
		DocumentID    string           `json:"document_id"`
		SheetName     string           `json:"sheet_name"`
		Operation     Operation        `json:"operation"`
		TargetColumn  string           `json:"target_column"`
		GroupBy       string           `json:"group_by"`
		SelectColumns []string         `json:"select_columns"`
		Where         []WherePredicate `json:"filters"`
		Order         Order            `json:"order"`
		TopN          int              `json:"top_n"`
		Limit         int              `json:"limit"`
	}

	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end <= start {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
			return nil, nil
		}
	}

	p := NewPlan(documentID, wire.Operation)
	if wire.DocumentID != "" {
		p.DocumentID = wire.DocumentID
	}
	p.SheetName = wire.SheetName
	p.TargetColumn = wire.TargetColumn
	p.GroupBy = wire.GroupBy
	p.SelectColumns = wire.SelectColumns
	if wire.Where != nil {
		p.Where = wire.Where
	}
	if wire.Order != "" {
		p.Order = wire.Order
	}
	if wire.TopN != 0 {
		p.TopN = clamp(wire.TopN, 1, 1000)
	}
	if wire.Limit != 0 {
		p.Limit = clamp(wire.Limit, 1, 500)
	}
	return p, nil
}
