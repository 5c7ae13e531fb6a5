package analytics

import (
	"strconv"
	"strings"
	"time"
)

// LogicalType is one of the five column types the analytics path reasons
// about; every other representation a source format might use collapses to
// one of these.
type LogicalType string

const (
	LogicalString  LogicalType = "string"
	LogicalInteger LogicalType = "integer"
	LogicalFloat   LogicalType = "float"
	LogicalDate    LogicalType = "date"
	LogicalBoolean LogicalType = "boolean"
)

// SQLiteType returns the physical storage affinity used for a column of
// this logical type. Dates are stored as INTEGER epoch seconds so they
// participate in the compiler's numeric range comparisons.
func (t LogicalType) SQLiteType() string {
	switch t {
	case LogicalInteger, LogicalBoolean, LogicalDate:
		return "INTEGER"
	case LogicalFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

var boolTokens = map[string]bool{
	"true": true, "yes": true, "1": true,
	"false": false, "no": false, "0": false,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"2006/01/02",
	time.RFC1123,
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferLogicalType inspects a column's raw string samples (already
// extracted from whatever cell representation the source format used) and
// returns the logical type the ingestion coordinator should store it as.
// An empty column infers to string. Order of checks matters: date, then
// boolean, then integer, then float, else string.
func InferLogicalType(samples []string) LogicalType {
	nonEmpty := make([]string, 0, len(samples))
	for _, s := range samples {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return LogicalString
	}

	if dateRatio(nonEmpty) >= 0.8 {
		return LogicalDate
	}
	if allBoolean(nonEmpty) {
		return LogicalBoolean
	}
	if ratioParsesAsInt(nonEmpty) >= 0.9 {
		return LogicalInteger
	}
	if ratioParsesAsFloat(nonEmpty) >= 0.9 {
		return LogicalFloat
	}
	return LogicalString
}

func dateRatio(samples []string) float64 {
	hits := 0
	for _, s := range samples {
		if _, ok := parseDateString(s); ok {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

func allBoolean(samples []string) bool {
	for _, s := range samples {
		if _, ok := boolTokens[strings.ToLower(strings.TrimSpace(s))]; !ok {
			return false
		}
	}
	return true
}

func ratioParsesAsInt(samples []string) float64 {
	hits := 0
	for _, s := range samples {
		if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

func ratioParsesAsFloat(samples []string) float64 {
	hits := 0
	for _, s := range samples {
		if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			hits++
		}
	}
	return float64(hits) / float64(len(samples))
}

// NormalizeCell coerces one raw string cell value to the Go representation
// stored for logicalType: epoch seconds (int64) for date, 0/1 (int64) for
// boolean, int64/float64 for integer/float, trimmed string otherwise.
// Missing/blank input always normalizes to nil regardless of logicalType.
func NormalizeCell(raw string, logicalType LogicalType) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	switch logicalType {
	case LogicalDate:
		t, ok := parseDateString(trimmed)
		if !ok {
			return nil
		}
		return t.UTC().Unix()
	case LogicalBoolean:
		if v, ok := boolTokens[strings.ToLower(trimmed)]; ok {
			if v {
				return int64(1)
			}
			return int64(0)
		}
		// "1.0"/"0.0" style floats count as boolean literals too.
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			if f == 1 {
				return int64(1)
			}
			if f == 0 {
				return int64(0)
			}
		}
		return nil
	case LogicalInteger:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case LogicalFloat:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return trimmed
	}
}
