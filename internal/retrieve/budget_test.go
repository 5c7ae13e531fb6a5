package retrieve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"freshness/internal/config"
)

func TestAllocateSplitsByFraction(t *testing.T) {
	cfg := config.ContextBudgetConfig{TotalBudget: 100, WebBudgetFraction: 0.6, MinUsefulDocChunk: 10}
	web := []SourceContext{{URL: "w1", Text: strings.Repeat("a", 40)}}
	doc := []SourceContext{{URL: "d1", Text: strings.Repeat("b", 40)}}

	out := Allocate(web, doc, cfg)
	require.Len(t, out, 2)
	require.Equal(t, "w1", out[0].URL)
	require.Equal(t, 40, len(out[0].Text))
	require.Equal(t, "d1", out[1].URL)
	require.Equal(t, 40, len(out[1].Text))
}

func TestAllocateFoldsUnusedWebBudgetIntoDocBudget(t *testing.T) {
	cfg := config.ContextBudgetConfig{TotalBudget: 100, WebBudgetFraction: 0.6, MinUsefulDocChunk: 10}
	web := []SourceContext{{URL: "w1", Text: strings.Repeat("a", 10)}}
	doc := []SourceContext{{URL: "d1", Text: strings.Repeat("b", 80)}}

	out := Allocate(web, doc, cfg)
	require.Len(t, out, 2)
	require.Equal(t, 10, len(out[0].Text))
	// doc budget = 40 (orig) + 50 (unused web) = 90, doc text is 80 chars, fits whole.
	require.Equal(t, 80, len(out[1].Text))
}

func TestAllocateDropsWebContextsOverBudget(t *testing.T) {
	cfg := config.ContextBudgetConfig{TotalBudget: 100, WebBudgetFraction: 0.3, MinUsefulDocChunk: 10}
	web := []SourceContext{
		{URL: "w1", Text: strings.Repeat("a", 20)},
		{URL: "w2", Text: strings.Repeat("a", 20)},
	}

	out := Allocate(web, nil, cfg)
	require.Len(t, out, 1)
	require.Equal(t, "w1", out[0].URL)
}

func TestAllocateStopsDocContextsBelowMinUseful(t *testing.T) {
	cfg := config.ContextBudgetConfig{TotalBudget: 50, WebBudgetFraction: 0, MinUsefulDocChunk: 15}
	doc := []SourceContext{
		{URL: "d1", Text: strings.Repeat("b", 40)},
		{URL: "d2", Text: strings.Repeat("c", 40)},
	}

	out := Allocate(nil, doc, cfg)
	require.Len(t, out, 1)
	require.Equal(t, "d1", out[0].URL)
	require.Equal(t, 40, len(out[0].Text))
}

func TestAllocateTruncatesDocContextToRemainingBudget(t *testing.T) {
	cfg := config.ContextBudgetConfig{TotalBudget: 50, WebBudgetFraction: 0, MinUsefulDocChunk: 5}
	doc := []SourceContext{{URL: "d1", Text: strings.Repeat("b", 80)}}

	out := Allocate(nil, doc, cfg)
	require.Len(t, out, 1)
	require.Equal(t, 50, len(out[0].Text))
}

func TestAllocateNeverExceedsTotalBudget(t *testing.T) {
	cfg := config.ContextBudgetConfig{TotalBudget: 120, WebBudgetFraction: 0.5, MinUsefulDocChunk: 10}
	web := []SourceContext{
		{URL: "w1", Text: strings.Repeat("a", 200)},
		{URL: "w2", Text: strings.Repeat("a", 200)},
	}
	doc := []SourceContext{
		{URL: "d1", Text: strings.Repeat("b", 200)},
		{URL: "d2", Text: strings.Repeat("b", 200)},
	}

	out := Allocate(web, doc, cfg)
	total := 0
	for _, c := range out {
		total += len(c.Text)
	}
	require.LessOrEqual(t, total, cfg.TotalBudget)
}
