package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRowPatterns(t *testing.T) {
	cases := map[string]int{
		"show me row 12":        12,
		"what is in #7":         7,
		"the 3rd customer":      3,
		"entry #42 please":      42,
		"record 9 looks wrong":  9,
	}
	for q, want := range cases {
		qi := Detect(q)
		if assert.NotNil(t, qi.Row, q) {
			assert.Equal(t, want, qi.Row.Row, q)
		}
	}
}

func TestDetectColumnValueWhereIsForm(t *testing.T) {
	qi := Detect("Show me the row where Index is 1000 in sales-2024")
	// No value-first "in the C column" form matches, so the column-first "where C is V" pattern supplies the pair.
	if assert.NotNil(t, qi.ColumnValue) {
		assert.Equal(t, "Index", qi.ColumnValue.Column)
		assert.Equal(t, "1000", qi.ColumnValue.Value)
	}
	if assert.NotNil(t, qi.Filename) {
		assert.Equal(t, "sales-2024", qi.Filename.Token)
	}
}

func TestDetectColumnValueColumnFirst(t *testing.T) {
	qi := Detect("the Status column equals Active")
	if assert.NotNil(t, qi.ColumnValue) {
		assert.Equal(t, "Status", qi.ColumnValue.Column)
		assert.Equal(t, "Active", qi.ColumnValue.Value)
	}
}

func TestDetectFilenamePrefersFrom(t *testing.T) {
	qi := Detect("pull the totals from sales-2024 in report.xlsx file")
	if assert.NotNil(t, qi.Filename) {
		assert.Equal(t, "sales-2024", qi.Filename.Token)
	}
}

func TestDetectFilenameFallsBackToIn(t *testing.T) {
	qi := Detect("look in report.xlsx file for totals")
	if assert.NotNil(t, qi.Filename) {
		assert.Equal(t, "report.xlsx", qi.Filename.Token)
	}
}

func TestDetectWantsLast(t *testing.T) {
	for _, q := range []string{"show the last entry", "what is the final value", "the latest record", "bottom row"} {
		assert.True(t, Detect(q).WantsLast, q)
	}
	assert.False(t, Detect("show me the first entry").WantsLast)
}

func TestDetectIsIdempotentAndOrderIndependent(t *testing.T) {
	q := "show row 5 from sales-2024 where Status is Active, the last one"
	first := Detect(q)
	second := Detect(q)
	assert.Equal(t, first, second)

	assert.NotNil(t, first.Row)
	assert.NotNil(t, first.Filename)
	assert.NotNil(t, first.ColumnValue)
	assert.True(t, first.WantsLast)
}

func TestDetectNoMatchesReturnsAllNil(t *testing.T) {
	qi := Detect("hello there")
	assert.Nil(t, qi.Row)
	assert.Nil(t, qi.ColumnValue)
	assert.Nil(t, qi.Filename)
	assert.False(t, qi.WantsLast)
}
