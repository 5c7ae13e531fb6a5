// Package intent implements the pure regex-cascade intent detector (C7):
// it looks at a raw user query and extracts row-addressing, column=value,
// filename-scoping, and "wants last" hints that the document retrieval
// engine (internal/retrieve) uses to prefer targeted lookups over fuzzy
// search.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// RowIntent is an optional 1-based row number reference ("row 12", "#12",
// "12th row", "entry #12").
type RowIntent struct {
	Row int
}

// ColumnValueIntent is an optional "Column = Value" equality hint lifted
// from natural language ("where Index is 1000", "Status column equals
// Active").
type ColumnValueIntent struct {
	Column string
	Value  string
}

// FilenameIntent is an optional document-name scoping hint ("from
// sales-2024", "in report.xlsx").
type FilenameIntent struct {
	Token string
}

// QueryIntent bundles every axis the detector can independently populate;
// each field is a pointer so its presence is distinguishable from its zero
// value.
type QueryIntent struct {
	Row         *RowIntent
	ColumnValue *ColumnValueIntent
	Filename    *FilenameIntent
	WantsLast   bool
}

// Row intent patterns, in decreasing order of confidence.
var rowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brow\s+(\d+)\b`),
	regexp.MustCompile(`(?i)#(\d+)\b`),
	regexp.MustCompile(`(?i)\b(\d+)(?:st|nd|rd|th)\s+(?:row|customer|entry|record|item)\b`),
	regexp.MustCompile(`(?i)\b(?:customer|entry|record|item)\s*#?(\d+)\b`),
}

// Column=value patterns. Value-first variants are tried before
// column-first variants.
var columnValuePatterns = []*regexp.Regexp{
	// "has/with/where V in the C column/field"
	regexp.MustCompile(`(?i)\b(?:has|with|where)\s+(\S+)\s+in\s+the\s+(\w[\w ]*?)\s+(?:column|field)\b`),
	// "V in the C column" (bare numeric/value form)
	regexp.MustCompile(`(?i)\b(\S+)\s+in\s+the\s+(\w[\w ]*?)\s+column\b`),
	// "C column is/equals V"
	regexp.MustCompile(`(?i)\b(\w+)\s+column\s+(?:is|equals)\s+(\S+)\b`),
	// "where C is/equals V"
	regexp.MustCompile(`(?i)\bwhere\s+(\w[\w ]*?)\s+(?:is|equals)\s+(\S+)\b`),
	// short forms: "index|id|code|number|num|no N"
	regexp.MustCompile(`(?i)\b(index|id|code|number|num|no)\s+(\S+)\b`),
}

var filenameFromPattern = regexp.MustCompile(`(?i)\bfrom\s+([a-zA-Z0-9_-]+(?:\.\w+)?)\b`)
var filenameInPattern = regexp.MustCompile(`(?i)\bin\s+([a-zA-Z0-9_-]+(?:\.\w+)?)\s+(?:file|document)\b`)
var filenameInBarePattern = regexp.MustCompile(`(?i)\bin\s+([a-zA-Z0-9_-]+(?:\.\w+)?)\b`)

var wantsLastPattern = regexp.MustCompile(`(?i)\b(last|final|latest|most recent|bottom)\b`)

// Detect runs every independent axis over query and returns the union of
// whatever matched. Detect is pure: the same query always yields the same
// QueryIntent regardless of call order relative to other queries: each
// axis is resolved independently and order-independently.
func Detect(query string) QueryIntent {
	var qi QueryIntent
	qi.Row = detectRow(query)
	qi.ColumnValue = detectColumnValue(query)
	qi.Filename = detectFilename(query)
	qi.WantsLast = wantsLastPattern.MatchString(query)
	return qi
}

func detectRow(query string) *RowIntent {
	for _, pat := range rowPatterns {
		if m := pat.FindStringSubmatch(query); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return &RowIntent{Row: n}
			}
		}
	}
	return nil
}

func detectColumnValue(query string) *ColumnValueIntent {
	for i, pat := range columnValuePatterns {
		m := pat.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		// Value-first patterns (indices 0,1) capture (value, column);
		// column-first patterns (2,3,4) capture (column, value).
		if i < 2 {
			return &ColumnValueIntent{Column: strings.TrimSpace(m[2]), Value: strings.TrimSpace(m[1])}
		}
		return &ColumnValueIntent{Column: strings.TrimSpace(m[1]), Value: strings.TrimSpace(m[2])}
	}
	return nil
}

func detectFilename(query string) *FilenameIntent {
	// "from <token>" is preferred over "in <token> (file|document)".
	if m := filenameFromPattern.FindStringSubmatch(query); m != nil {
		return &FilenameIntent{Token: m[1]}
	}
	if m := filenameInPattern.FindStringSubmatch(query); m != nil {
		return &FilenameIntent{Token: m[1]}
	}
	// Bare "in <token>" fallback ("... in sales-2024"). "in the C column/field"
	// constructs always capture "the" here, since that's the first word after
	// "in", so they're excluded without clashing with columnValuePatterns.
	if m := filenameInBarePattern.FindStringSubmatch(query); m != nil && !strings.EqualFold(m[1], "the") {
		return &FilenameIntent{Token: m[1]}
	}
	return nil
}
