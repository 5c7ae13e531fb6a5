package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"freshness/internal/store"
)

func testColumns() map[string]store.ColumnMetadata {
	return map[string]store.ColumnMetadata{
		"_source_row_number": {OriginalName: "_source_row_number", SafeName: "col__source_row_number", LogicalType: "integer"},
		"Customer Id":        {OriginalName: "Customer Id", SafeName: "col_customer_id", LogicalType: "string"},
		"Amount":             {OriginalName: "Amount", SafeName: "col_amount", LogicalType: "float"},
		"Subscription Date":  {OriginalName: "Subscription Date", SafeName: "col_subscription_date", LogicalType: "date"},
		"Active":             {OriginalName: "Active", SafeName: "col_active", LogicalType: "boolean"},
	}
}

func TestValidatePlanRejectsContainsOnDateColumn(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{{Column: "Subscription Date", Operator: OpContains, Value: "2020"}}

	err := ValidatePlan(p, testColumns())
	assert.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestValidatePlanRejectsSumOnStringColumn(t *testing.T) {
	p := NewPlan("doc1", OpSum)
	p.TargetColumn = "Customer Id"

	err := ValidatePlan(p, testColumns())
	assert.Error(t, err)
}

func TestValidatePlanAcceptsValidAggregate(t *testing.T) {
	p := NewPlan("doc1", OpSum)
	p.TargetColumn = "Amount"

	assert.NoError(t, ValidatePlan(p, testColumns()))
}

func TestValidatePlanRejectsUnknownFilterColumn(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{{Column: "Nonexistent", Operator: OpEq, Value: "x"}}

	assert.Error(t, ValidatePlan(p, testColumns()))
}

func TestValidatePlanGroupByRequiresGroupOrTarget(t *testing.T) {
	p := NewPlan("doc1", OpGroupByCount)
	assert.Error(t, ValidatePlan(p, testColumns()))

	p.GroupBy = "Active"
	assert.NoError(t, ValidatePlan(p, testColumns()))
}

func TestValidatePlanInternalColumnsNotVisible(t *testing.T) {
	p := NewPlan("doc1", OpCountDistinct)
	p.TargetColumn = "_source_row_number"

	err := ValidatePlan(p, testColumns())
	assert.Error(t, err)
}

func TestValidatePlanUniversalOpsSkipTypeCheck(t *testing.T) {
	p := NewPlan("doc1", OpCountRows)
	p.Where = []WherePredicate{{Column: "Amount", Operator: OpEq, Value: 10.5}}
	assert.NoError(t, ValidatePlan(p, testColumns()))
}
