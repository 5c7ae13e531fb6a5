package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"freshness/internal/analytics"
	"freshness/internal/config"
	"freshness/internal/llm"
	"freshness/internal/retrieve"
	"freshness/internal/store"
)

// fakeLLM is a scripted llm.Provider + llm.Planner for orchestrator tests.
type fakeLLM struct {
	completions []string
	completeErr error
	planResp    string
	planErr     error
	streamErr   error
	streamToks  []string

	completeCalls int
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	idx := f.completeCalls
	f.completeCalls++
	if idx < len(f.completions) {
		return f.completions[idx], nil
	}
	return "", nil
}

func (f *fakeLLM) Stream(ctx context.Context, req llm.CompletionRequest, h llm.StreamHandler) error {
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, tok := range f.streamToks {
		h.OnToken(tok)
	}
	return nil
}

func (f *fakeLLM) Plan(ctx context.Context, query, tableDescription string) (string, error) {
	return f.planResp, f.planErr
}

func openOrchStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "file::memory:?cache=shared", 2000)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newOrchestrator(t *testing.T, s *store.Store, llmClient *fakeLLM, analyticsCfg config.AnalyticsConfig) *Orchestrator {
	t.Helper()
	docRetriever := retrieve.NewDocumentRetriever(s.Documents, nil, nil, config.RetrievalConfig{DocKeywordTopK: 5}, config.ScrapeConfig{}, nil)
	webRetriever := retrieve.NewWebRetriever(nil, nil, s.Archive, nil, nil, config.RetrievalConfig{}, config.ScrapeConfig{}, nil)
	executor := analytics.NewExecutor(s.DB(), s.Analytics, nil)
	budgetCfg := config.ContextBudgetConfig{TotalBudget: 4000, WebBudgetFraction: 0.5, MinUsefulDocChunk: 10}
	return New(llmClient, llmClient, docRetriever, webRetriever, s.Archive, executor, s.Analytics, config.RetrievalConfig{}, budgetCfg, analyticsCfg, nil)
}

func seedAnalyticsTable(t *testing.T, s *store.Store, docID, sheet, tableName string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Documents.SaveDocument(ctx, docID, "customers.xlsx", "xlsx", 100, store.DocumentReady, ""))
	_, err := s.DB().ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %q (region TEXT)`, tableName))
	require.NoError(t, err)
	for _, region := range []string{"west", "west", "east"} {
		_, err := s.DB().ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q (region) VALUES (?)`, tableName), region)
		require.NoError(t, err)
	}
	require.NoError(t, s.Analytics.RegisterTable(ctx, docID, sheet, tableName, 3))
	require.NoError(t, s.Analytics.RegisterDefaultSheet(ctx, docID, sheet))
	require.NoError(t, s.Analytics.RegisterColumns(ctx, docID, sheet, []store.ColumnMetadata{
		{OriginalName: "region", SafeName: "region", LogicalType: "string", SQLiteType: "TEXT", Nullable: true},
	}))
}

func TestAnswerAnalyticsPathShortCircuits(t *testing.T) {
	s := openOrchStore(t)
	seedAnalyticsTable(t, s, "doc1", "Sheet1", "doc1_sheet1")

	fake := &fakeLLM{planResp: `{"document_id":"doc1","operation":"count_rows","filters":[]}`}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{Enabled: true, MaxCandidateDocs: 5})

	result, err := o.Answer(context.Background(), Request{Query: "how many customers are there", IncludeDocuments: true})
	require.NoError(t, err)
	require.Equal(t, retrieve.ModeOnline, result.Mode)
	require.Contains(t, result.Answer, "3 row(s) match the query")
	require.Contains(t, result.Answer, "deterministic analytics")
	require.Empty(t, result.Contexts)
}

func TestAnswerFallsBackToRetrievalWhenRouterDeclines(t *testing.T) {
	s := openOrchStore(t)
	seedAnalyticsTable(t, s, "doc1", "Sheet1", "doc1_sheet1")

	fake := &fakeLLM{completions: []string{`{"answer":null,"citation_url":null,"evidence_quote":null}`}}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{Enabled: true, MaxCandidateDocs: 5})

	result, err := o.Answer(context.Background(), Request{Query: "tell me about the weather", IncludeDocuments: true})
	require.NoError(t, err)
	require.Equal(t, retrieve.ModeLocalWeights, result.Mode)
	require.Contains(t, result.Answer, "I do not have any sources")
}

func TestAnswerOfflineArchiveCacheHit(t *testing.T) {
	s := openOrchStore(t)
	ctx := context.Background()
	_, err := s.Archive.SavePage(ctx, "budget", "http://example.com/budget", "the budget grew 10 percent")
	require.NoError(t, err)
	require.NoError(t, s.Archive.SaveAnswer(ctx, "budget", "The budget grew 10%.", "http://example.com/budget", "grew 10 percent"))

	fake := &fakeLLM{}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{})

	result, err := o.Answer(ctx, Request{Query: "budget", IncludeWeb: true, PreferMode: "OFFLINE"})
	require.NoError(t, err)
	require.Equal(t, retrieve.ModeOfflineArchive, result.Mode)
	require.Contains(t, result.Answer, "The budget grew 10%.")
	require.Contains(t, result.Answer, "(Cached from:")
	require.Equal(t, 0, fake.completeCalls)
}

func TestAnswerExtractionSuccessFabricatesCitation(t *testing.T) {
	s := openOrchStore(t)
	ctx := context.Background()
	_, err := s.Archive.SavePage(ctx, "revenue", "http://example.com/revenue", "Revenue rose to $5M in Q3.")
	require.NoError(t, err)

	fake := &fakeLLM{completions: []string{`{"answer":"$5M","citation_url":null,"evidence_quote":"Revenue rose to $5M in Q3."}`}}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{})

	result, err := o.Answer(ctx, Request{Query: "revenue", IncludeWeb: true, PreferMode: "OFFLINE"})
	require.NoError(t, err)
	require.Equal(t, retrieve.ModeOfflineArchive, result.Mode)
	require.Contains(t, result.Answer, "$5M")
	require.Contains(t, result.Answer, "Source: http://example.com/revenue")
	require.Contains(t, result.Answer, "Evidence: Revenue rose to $5M in Q3.")
}

func TestAnswerCouldNotVerifyLocalWeights(t *testing.T) {
	s := openOrchStore(t)
	fake := &fakeLLM{completions: []string{`{"answer":null,"citation_url":null,"evidence_quote":null}`}}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{})

	result, err := o.Answer(context.Background(), Request{Query: "anything"})
	require.NoError(t, err)
	require.Equal(t, retrieve.ModeLocalWeights, result.Mode)
	require.Equal(t, "I do not have any sources to answer this question. Please try online mode or add sources to the archive.", result.Answer)
}

func TestStreamAnswerEmitsMetaTokenDoneInOrder(t *testing.T) {
	s := openOrchStore(t)
	ctx := context.Background()
	_, err := s.Archive.SavePage(ctx, "hello", "http://example.com/hello", "hello world content")
	require.NoError(t, err)

	fake := &fakeLLM{streamToks: []string{"hel", "lo"}}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{})

	var events []StreamEvent
	o.StreamAnswer(ctx, Request{Query: "hello", IncludeWeb: true, PreferMode: "OFFLINE", ConversationID: "conv1"}, func(e StreamEvent) {
		events = append(events, e)
	})

	require.GreaterOrEqual(t, len(events), 4)
	require.Equal(t, "meta", events[0].Type)
	require.Equal(t, "conv1", events[0].Data["conversation_id"])
	require.Equal(t, "token", events[1].Type)
	require.Equal(t, "token", events[2].Type)
	require.Equal(t, "done", events[len(events)-1].Type)
	require.Equal(t, "hello", events[len(events)-1].Data["final_text"])
}

func TestStreamAnswerFallsBackToUnaryOnStreamError(t *testing.T) {
	s := openOrchStore(t)
	fake := &fakeLLM{streamErr: fmt.Errorf("boom"), completions: []string{"fallback answer"}}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{})

	var events []StreamEvent
	o.StreamAnswer(context.Background(), Request{Query: "q"}, func(e StreamEvent) {
		events = append(events, e)
	})

	require.Len(t, events, 3)
	require.Equal(t, "meta", events[0].Type)
	require.Equal(t, "token", events[1].Type)
	require.Equal(t, "fallback answer", events[1].Data["text"])
	require.Equal(t, "done", events[2].Type)
	require.Equal(t, "fallback answer", events[2].Data["final_text"])
}

func TestStreamAnswerErrorEventOnTotalFailure(t *testing.T) {
	s := openOrchStore(t)
	fake := &fakeLLM{streamErr: fmt.Errorf("boom"), completeErr: fmt.Errorf("still broken")}
	o := newOrchestrator(t, s, fake, config.AnalyticsConfig{})

	var events []StreamEvent
	o.StreamAnswer(context.Background(), Request{Query: "q"}, func(e StreamEvent) {
		events = append(events, e)
	})

	require.Len(t, events, 2)
	require.Equal(t, "meta", events[0].Type)
	require.Equal(t, "error", events[1].Type)
	require.Equal(t, ErrStreamError, events[1].Data["code"])
}
