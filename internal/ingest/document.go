package ingest

import (
	"context"
	"fmt"

	"freshness/internal/config"
	"freshness/internal/embedding"
	"freshness/internal/obs"
	"freshness/internal/retrieve"
	"freshness/internal/store"
	"freshness/internal/vectorindex"
)

// DocumentIngestor turns an uploaded document's extracted text into stored
// chunks and, when embedding is configured, vector points in
// retrieve.DocumentChunksCollection. It is the producer SaveChunks and the
// document retriever's semantic fallback assume exists upstream of them.
type DocumentIngestor struct {
	chunker  Chunker
	chunkCfg config.ChunkConfig
	docs     *store.DocumentRepository
	vectors  vectorindex.VectorIndex
	embedder embedding.Embedder
	policy   ReingestPolicy
	log      obs.Logger
}

// NewDocumentIngestor builds a DocumentIngestor. A nil vectors or embedder
// disables embedding; chunks are still saved to the relational store and
// remain reachable through keyword search. policy controls what happens
// when an upload's normalized content hashes the same as an existing ready
// document; an empty policy behaves like ReingestOverwrite.
func NewDocumentIngestor(chunkCfg config.ChunkConfig, docs *store.DocumentRepository, vectors vectorindex.VectorIndex, embedder embedding.Embedder, policy ReingestPolicy, log obs.Logger) *DocumentIngestor {
	if vectors == nil {
		vectors = vectorindex.NewNoopIndex()
	}
	if log == nil {
		log = obs.NoopLogger{}
	}
	return &DocumentIngestor{
		chunker:  SimpleChunker{},
		chunkCfg: chunkCfg,
		docs:     docs,
		vectors:  vectors,
		embedder: embedder,
		policy:   policy,
		log:      log,
	}
}

// Ingest chunks text with the configured strategy, persists the chunks
// under documentID, and upserts their embeddings into the vector index when
// an embedder is configured. It marks the document ready on success and
// errored on failure, matching the documents table's lifecycle
// (store.DocumentPending -> DocumentProcessing -> DocumentReady/DocumentError).
//
// Before chunking, it hashes the normalized text and consults the
// configured ReingestPolicy: under ReingestSkipIfUnchanged, a hash matching
// an existing ready document skips chunking and embedding entirely and the
// upload is marked ready as a duplicate of that document.
func (i *DocumentIngestor) Ingest(ctx context.Context, documentID, filename, docType string, text string) error {
	if err := i.docs.UpdateStatus(ctx, documentID, store.DocumentProcessing, ""); err != nil {
		return fmt.Errorf("ingest: mark processing: %w", err)
	}

	normalized := normalizeText(text)
	hash := contentHash(normalized, filename)
	_, skip, err := resolveReingest(ctx, i.docs, i.policy, documentID, hash)
	if err != nil {
		_ = i.docs.UpdateStatus(ctx, documentID, store.DocumentError, err.Error())
		return fmt.Errorf("ingest: resolve reingest policy: %w", err)
	}
	if skip {
		if err := i.docs.SetContentHash(ctx, documentID, hash); err != nil {
			_ = i.docs.UpdateStatus(ctx, documentID, store.DocumentError, err.Error())
			return fmt.Errorf("ingest: record content hash: %w", err)
		}
		i.log.Info("ingest: skipped, content unchanged", map[string]any{"document_id": documentID})
		return i.docs.UpdateStatus(ctx, documentID, store.DocumentReady, "")
	}

	pieces, err := i.chunker.Chunk(normalized, i.chunkCfg)
	if err != nil {
		_ = i.docs.UpdateStatus(ctx, documentID, store.DocumentError, err.Error())
		return fmt.Errorf("ingest: chunk: %w", err)
	}

	chunks := make([]store.DocumentChunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, store.DocumentChunk{
			DocumentID: documentID,
			ChunkIndex: p.Index,
			Content:    p.Text,
			Filename:   filename,
			Metadata: map[string]any{
				"document_id": documentID,
				"filename":    filename,
				"doc_type":    docType,
				"chunk_index": p.Index,
			},
		})
	}
	if err := i.docs.SaveChunks(ctx, documentID, chunks); err != nil {
		_ = i.docs.UpdateStatus(ctx, documentID, store.DocumentError, err.Error())
		return fmt.Errorf("ingest: save chunks: %w", err)
	}

	if i.embedder != nil && len(chunks) > 0 {
		if err := i.embedAndUpsert(ctx, documentID, chunks); err != nil {
			i.log.Error("ingest: embedding failed, chunks remain keyword-searchable only", map[string]any{
				"document_id": documentID,
				"error":       err.Error(),
			})
		}
	}

	if err := i.docs.SetContentHash(ctx, documentID, hash); err != nil {
		_ = i.docs.UpdateStatus(ctx, documentID, store.DocumentError, err.Error())
		return fmt.Errorf("ingest: record content hash: %w", err)
	}
	if err := i.docs.UpdateStatus(ctx, documentID, store.DocumentReady, ""); err != nil {
		return fmt.Errorf("ingest: mark ready: %w", err)
	}
	return nil
}

func (i *DocumentIngestor) embedAndUpsert(ctx context.Context, documentID string, chunks []store.DocumentChunk) error {
	texts := make([]string, len(chunks))
	for idx, c := range chunks {
		texts[idx] = c.Content
	}
	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	points := make([]vectorindex.Point, 0, len(chunks))
	for idx, c := range chunks {
		points = append(points, vectorindex.Point{
			ID:      store.HashChunkID(documentID, c.ChunkIndex),
			Vector:  vectors[idx],
			Payload: c.Metadata,
			Content: c.Content,
		})
	}
	return i.vectors.Upsert(ctx, retrieve.DocumentChunksCollection, points)
}
