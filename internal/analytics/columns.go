// Package analytics implements the deterministic tabular-analytics path:
// column-safety naming, logical type inference, the plan model, its
// validator and SQL compiler, the executor, and the ingestion coordinator
// that loads spreadsheet sheets into the shared relational store.
package analytics

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// SafeName derives a deterministic, collision-free SQL identifier from a
// spreadsheet header: lower-case, collapse runs of non-alphanumerics to a
// single underscore, strip leading/trailing underscores, and prefix with
// "col_". Callers disambiguate collisions across a header set by appending
// "_2", "_3", … in input order via DisambiguateNames.
func SafeName(header string) string {
	lower := strings.ToLower(header)
	collapsed := nonAlnumRun.ReplaceAllString(lower, "_")
	trimmed := strings.Trim(collapsed, "_")
	return "col_" + trimmed
}

// DisambiguateNames maps each header in headers (in order) to a SafeName,
// appending "_2", "_3", … to later occurrences of a name that already
// collided with an earlier header's safe name. The mapping is a bijection:
// no two headers share a safe name.
func DisambiguateNames(headers []string) []string {
	seen := make(map[string]int, len(headers))
	used := make(map[string]bool, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		base := SafeName(h)
		count := seen[base]
		seen[base] = count + 1
		name := base
		if count > 0 {
			name = base + "_" + itoa(count+1)
		}
		for n := count + 2; used[name]; n++ {
			name = base + "_" + itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// TableName derives the physical SQLite table name backing one ingested
// sheet: doc_<first 24 safe chars of document id>__<10 hex chars of
// SHA-1(sheet name)>.
func TableName(documentID, sheetName string) string {
	safeDoc := nonAlnumRun.ReplaceAllString(strings.ToLower(documentID), "_")
	safeDoc = strings.Trim(safeDoc, "_")
	if len(safeDoc) > 24 {
		safeDoc = safeDoc[:24]
	}
	sum := sha1.Sum([]byte(sheetName))
	hexSum := hex.EncodeToString(sum[:])
	return "doc_" + safeDoc + "__" + hexSum[:10]
}
