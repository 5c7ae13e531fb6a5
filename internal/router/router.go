// Package router implements the heuristic analytics router (C12): a pure
// function over the raw query text that decides whether a question should
// be answered by compiled SQL over an ingested spreadsheet or by
// document/web retrieval, using an aggregation/comparison marker set.
package router

import "regexp"

// Decision is the router's output: whether to use the analytics path, and
// why, for observability and tests.
type Decision struct {
	UseAnalytics bool
	Reason       string
}

var aggregationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bhow many\b`),
	regexp.MustCompile(`(?i)\bcount\b`),
	regexp.MustCompile(`(?i)\bnumber of\b`),
	regexp.MustCompile(`(?i)\bdistinct\b`),
	regexp.MustCompile(`(?i)\bunique\b`),
	regexp.MustCompile(`(?i)\bbreakdown\b`),
	regexp.MustCompile(`(?i)\bgroup by\b`),
	regexp.MustCompile(`(?i)\baverage\b`),
	regexp.MustCompile(`(?i)\bmean\b`),
	regexp.MustCompile(`(?i)\bsum\b`),
	regexp.MustCompile(`(?i)\btotal\b`),
	regexp.MustCompile(`(?i)\bmin(?:imum)?\b`),
	regexp.MustCompile(`(?i)\bmax(?:imum)?\b`),
	regexp.MustCompile(`(?i)\blowest\b`),
	regexp.MustCompile(`(?i)\bhighest\b`),
	regexp.MustCompile(`(?i)\blist\b`),
	regexp.MustCompile(`(?i)\bshow\b`),
	regexp.MustCompile(`(?i)\bfind\b`),
	regexp.MustCompile(`(?i)\bget\b`),
	regexp.MustCompile(`(?i)\bwhat are\b`),
	regexp.MustCompile(`(?i)\bwho are\b`),
	regexp.MustCompile(`(?i)\bwhich\b`),
	regexp.MustCompile(`(?i)\bfilter\b`),
	regexp.MustCompile(`(?i)\bfrom \w+\b`),
	regexp.MustCompile(`(?i)\bwhere\b`),
	regexp.MustCompile(`(?i)\bcustomers?\s+(?:from|in|with|where)\b`),
	regexp.MustCompile(`(?i)\b(?:names?|emails?|addresses?)\s+of\b`),
}

// Decide applies the fixed marker set to query and returns use_analytics
// when any marker matches. An empty (after trimming) query always routes
// to the retrieval path.
func Decide(query string) Decision {
	trimmed := trimSpace(query)
	if trimmed == "" {
		return Decision{UseAnalytics: false, Reason: "empty_query"}
	}

	for _, pat := range aggregationPatterns {
		if pat.MatchString(trimmed) {
			return Decision{UseAnalytics: true, Reason: "aggregation_intent"}
		}
	}

	return Decision{UseAnalytics: false, Reason: "default_rag"}
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
