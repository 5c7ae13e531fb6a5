package analytics

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var safeNamePattern = regexp.MustCompile(`^col_[a-z0-9_]+$`)

func TestSafeNameMatchesPattern(t *testing.T) {
	for _, h := range []string{"Customer ID", "Subscription Date!", "%weird##header__", "already_safe"} {
		assert.Regexp(t, safeNamePattern, SafeName(h))
	}
}

func TestSafeNameStripsEdgeUnderscores(t *testing.T) {
	assert.Equal(t, "col_id", SafeName("__ID__"))
}

func TestDisambiguateNamesIsPrefixFree(t *testing.T) {
	headers := []string{"Amount", "Amount", "Amount ($)", "amount"}
	names := DisambiguateNames(headers)

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "safe name %q repeated", n)
		seen[n] = true
	}
	assert.Equal(t, "col_amount", names[0])
	assert.Equal(t, "col_amount_2", names[1])
}

func TestTableNameIsStableAndBounded(t *testing.T) {
	a := TableName("doc-123-some-very-long-document-identifier", "Sheet1")
	b := TableName("doc-123-some-very-long-document-identifier", "Sheet1")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^doc_[a-z0-9_]{1,24}__[0-9a-f]{10}$`, a)
}

func TestTableNameDiffersBySheet(t *testing.T) {
	a := TableName("doc1", "Sheet1")
	b := TableName("doc1", "Sheet2")
	assert.NotEqual(t, a, b)
}
