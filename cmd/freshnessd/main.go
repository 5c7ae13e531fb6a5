// Command freshnessd is the composition root for the freshness answer
// service: it wires config, the embedded store, the LLM provider, the
// vector index, web search/scrape, the retrieval engines, and the answer
// orchestrator, then drives one query from argv through the orchestrator
// and prints the result. An HTTP surface is out of scope for this module;
// this is the thin driver a real handler would call into, the same role
// a webui command would play relative to its service layer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"freshness/internal/analytics"
	"freshness/internal/config"
	"freshness/internal/embedding"
	"freshness/internal/ingest"
	"freshness/internal/llm"
	"freshness/internal/llm/providers"
	"freshness/internal/obs"
	"freshness/internal/orchestrator"
	"freshness/internal/retrieve"
	"freshness/internal/search"
	"freshness/internal/store"
	"freshness/internal/vectorindex"
	"freshness/internal/web"

	"github.com/google/uuid"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	var (
		query      = flag.String("q", "", "question to answer; reads stdin if empty")
		preferMode = flag.String("mode", "", "ONLINE, OFFLINE, or empty for auto")
		includeWeb = flag.Bool("web", true, "include web retrieval")
		includeDoc = flag.Bool("docs", true, "include document retrieval and the analytics path")
		stream     = flag.Bool("stream", false, "stream the answer token by token")
		ingestPath = flag.String("ingest", "", "path to a text file to chunk and store as a document, then exit")
	)
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	obs.InitLogger("", cfg.LogLevel)
	logger := obs.ZerologLogger{}

	meterProvider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(meterProvider)
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("meter provider shutdown failed")
		}
	}()
	metrics := obs.NewOtelMetrics()

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Store.Path, cfg.Store.BusyTimeoutMS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	llmClient, err := providers.Build(cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build llm provider")
	}

	vectors, err := buildVectorIndex(cfg.Vector)
	if err != nil {
		log.Warn().Err(err).Msg("vector index unavailable, degrading to keyword retrieval")
		vectors = vectorindex.NewNoopIndex()
	}

	embedCache := buildEmbedCache(cfg.EmbedCache)
	queryEmbedder := embedding.NewQueryEmbedder(cfg.Embed, embedCache)

	searchClient := search.NewClient(cfg.WebSearch.APIKey, time.Duration(cfg.WebSearch.RequestTimeoutMS)*time.Millisecond, cfg.WebSearch.ResultCount)
	scraper := web.NewScraper(time.Duration(cfg.Scrape.RequestTimeoutMS)*time.Millisecond, cfg.Scrape.MinTextForHTTPOnly, cfg.Scrape.HeadlessEnabled)

	docRetriever := retrieve.NewDocumentRetriever(st.Documents, vectors, queryEmbedder, cfg.Retrieval, cfg.Scrape, logger).WithMetrics(metrics)
	webRetriever := retrieve.NewWebRetriever(searchClient, scraper, st.Archive, vectors, queryEmbedder, cfg.Retrieval, cfg.Scrape, logger).WithMetrics(metrics)
	executor := analytics.NewExecutor(st.DB(), st.Analytics, logger).WithMetrics(metrics)

	orch := orchestrator.New(llmClient, llmClient, docRetriever, webRetriever, st.Archive, executor, st.Analytics,
		cfg.Retrieval, cfg.Budget, cfg.Analytics, logger).WithMetrics(metrics)

	if *ingestPath != "" {
		runIngest(ctx, cfg, st, vectors, *ingestPath)
		return
	}

	q := *query
	if q == "" {
		q = readStdinLine()
	}
	if q == "" {
		fmt.Fprintln(os.Stderr, "usage: freshnessd -q \"question\"")
		os.Exit(2)
	}

	req := orchestrator.Request{
		Query:            q,
		ConversationID:   "cli",
		PreferMode:       *preferMode,
		IncludeWeb:       *includeWeb,
		IncludeDocuments: *includeDoc,
	}

	if *stream {
		runStream(ctx, orch, req)
		return
	}
	runUnary(ctx, orch, req)
}

func runUnary(ctx context.Context, orch *orchestrator.Orchestrator, req orchestrator.Request) {
	result, err := orch.Answer(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("answer failed")
		os.Exit(1)
	}
	fmt.Printf("[%s]\n%s\n", result.Mode, result.Answer)
}

func runStream(ctx context.Context, orch *orchestrator.Orchestrator, req orchestrator.Request) {
	orch.StreamAnswer(ctx, req, func(ev orchestrator.StreamEvent) {
		switch ev.Type {
		case "meta":
			fmt.Printf("[%v]\n", ev.Data["mode"])
		case "token":
			fmt.Print(ev.Data["text"])
		case "done":
			fmt.Println()
		case "error":
			fmt.Fprintf(os.Stderr, "stream error: %v %v\n", ev.Data["code"], ev.Data["message"])
		}
	})
}

// runIngest chunks the file at path and stores it as a new document,
// embedding its chunks into the vector index when embedding is enabled.
func runIngest(ctx context.Context, cfg *config.Config, st *store.Store, vectors vectorindex.VectorIndex, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to read ingest file")
	}

	documentID := uuid.NewString()
	filename := filepath.Base(path)
	if err := st.Documents.SaveDocument(ctx, documentID, filename, filepath.Ext(filename), int64(len(data)), store.DocumentPending, ""); err != nil {
		log.Fatal().Err(err).Msg("failed to save document")
	}

	var batchEmbedder embedding.Embedder
	if cfg.Embed.Enabled {
		batchEmbedder = embedding.NewClient(cfg.Embed, cfg.Embed.Dimensions)
	}
	ingestor := ingest.NewDocumentIngestor(cfg.Chunk, st.Documents, vectors, batchEmbedder, ingest.ReingestSkipIfUnchanged, obs.ZerologLogger{})
	if err := ingestor.Ingest(ctx, documentID, filename, filepath.Ext(filename), string(data)); err != nil {
		log.Fatal().Err(err).Msg("failed to ingest document")
	}
	fmt.Printf("ingested %s as document %s\n", filename, documentID)
}

func readStdinLine() string {
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// buildVectorIndex selects the configured vector backend. "none" (or
// anything unrecognized) returns a no-op index so semantic retrieval
// degrades to keyword fallback without failing startup.
func buildVectorIndex(cfg config.VectorIndexConfig) (vectorindex.VectorIndex, error) {
	if cfg.Backend != "qdrant" {
		return vectorindex.NewNoopIndex(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.QdrantAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant address %q: %w", cfg.QdrantAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant port %q: %w", portStr, err)
	}
	return vectorindex.NewQdrantIndex(host, port, 768, false)
}

// buildEmbedCache selects redis when configured, otherwise an in-process
// LRU+TTL cache.
func buildEmbedCache(cfg config.EmbedCacheConfig) llm.EmbedCache {
	if cfg.RedisAddr != "" {
		return llm.NewRedisEmbedCache(cfg.RedisAddr, time.Duration(cfg.TTLSeconds)*time.Second)
	}
	return llm.NewMemoryEmbedCache(cfg.MaxEntries, time.Duration(cfg.TTLSeconds)*time.Second)
}
