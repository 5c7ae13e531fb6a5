package router

import "testing"

func TestDecideEmptyQuery(t *testing.T) {
	d := Decide("   ")
	if d.UseAnalytics {
		t.Fatalf("expected use_analytics=false for empty query")
	}
	if d.Reason != "empty_query" {
		t.Fatalf("expected reason=empty_query, got %q", d.Reason)
	}
}

func TestDecideAggregationMarkers(t *testing.T) {
	cases := []string{
		"how many customers do we have",
		"count the rows",
		"number of active subscriptions",
		"list distinct regions",
		"show unique customer ids",
		"give me a breakdown by status",
		"group by region",
		"what is the average amount",
		"mean order value",
		"sum of all amounts",
		"total revenue this year",
		"minimum order size",
		"max amount",
		"lowest price",
		"highest score",
		"list all customers",
		"show me the rows",
		"find rows with status active",
		"get the customer list",
		"what are the regions",
		"who are the top customers",
		"which customers are active",
		"filter by status",
		"data from sales-2024",
		"rows where status is active",
		"customers from california",
		"names of all customers",
	}
	for _, q := range cases {
		d := Decide(q)
		if !d.UseAnalytics {
			t.Errorf("query %q: expected use_analytics=true, got false (reason=%s)", q, d.Reason)
		}
		if d.Reason != "aggregation_intent" {
			t.Errorf("query %q: expected reason=aggregation_intent, got %q", q, d.Reason)
		}
	}
}

func TestDecideDefaultRAGForPlainQuestions(t *testing.T) {
	d := Decide("hello there, nice weather today")
	if d.UseAnalytics {
		t.Fatalf("expected use_analytics=false")
	}
	if d.Reason != "default_rag" {
		t.Fatalf("expected reason=default_rag, got %q", d.Reason)
	}
}

func TestDecideIsPure(t *testing.T) {
	q := "how many active customers"
	a := Decide(q)
	b := Decide(q)
	if a != b {
		t.Fatalf("Decide is not pure: %+v != %+v", a, b)
	}
}
