package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferLogicalTypeEmptyIsString(t *testing.T) {
	assert.Equal(t, LogicalString, InferLogicalType([]string{"", "  ", ""}))
}

func TestInferLogicalTypeDate(t *testing.T) {
	got := InferLogicalType([]string{"2020-01-01", "2020-02-15", "2020-03-30"})
	assert.Equal(t, LogicalDate, got)
}

func TestInferLogicalTypeBoolean(t *testing.T) {
	got := InferLogicalType([]string{"true", "False", "YES", "no"})
	assert.Equal(t, LogicalBoolean, got)
}

func TestInferLogicalTypeInteger(t *testing.T) {
	got := InferLogicalType([]string{"1", "2", "3", "100"})
	assert.Equal(t, LogicalInteger, got)
}

func TestInferLogicalTypeFloat(t *testing.T) {
	got := InferLogicalType([]string{"1.5", "2.25", "3.0", "100.1"})
	assert.Equal(t, LogicalFloat, got)
}

func TestInferLogicalTypeString(t *testing.T) {
	got := InferLogicalType([]string{"Alice", "Bob", "not-a-number"})
	assert.Equal(t, LogicalString, got)
}

func TestNormalizeCellMissingAlwaysNil(t *testing.T) {
	for _, lt := range []LogicalType{LogicalString, LogicalInteger, LogicalFloat, LogicalDate, LogicalBoolean} {
		assert.Nil(t, NormalizeCell("", lt))
		assert.Nil(t, NormalizeCell("   ", lt))
	}
}

func TestNormalizeCellDateToEpoch(t *testing.T) {
	got := NormalizeCell("2020-03-15", LogicalDate)
	assert.Equal(t, int64(1584230400), got)
}

func TestNormalizeCellBoolean(t *testing.T) {
	assert.Equal(t, int64(1), NormalizeCell("true", LogicalBoolean))
	assert.Equal(t, int64(1), NormalizeCell("Yes", LogicalBoolean))
	assert.Equal(t, int64(0), NormalizeCell("no", LogicalBoolean))
	assert.Equal(t, int64(0), NormalizeCell("0", LogicalBoolean))
}

func TestNormalizeCellIntegerFloat(t *testing.T) {
	assert.Equal(t, int64(42), NormalizeCell("42", LogicalInteger))
	assert.Equal(t, 42.5, NormalizeCell("42.5", LogicalFloat))
	assert.Nil(t, NormalizeCell("not-a-number", LogicalInteger))
}

func TestNormalizeCellStringTrims(t *testing.T) {
	assert.Equal(t, "hello", NormalizeCell("  hello  ", LogicalString))
}
