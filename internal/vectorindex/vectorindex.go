// Package vectorindex defines the VectorIndex contract the retrieval
// engine (C8, C9) queries for semantic document-chunk and archive-page
// lookups, plus a qdrant-backed implementation and a no-op default.
// Callers embed outside and search inside: the interface takes a query
// vector directly rather than owning embedding itself.
package vectorindex

import "context"

// Point is a single vector entry to upsert: an embedding plus the payload
// used to reconstruct a SourceContext on a hit.
type Point struct {
	ID       string
	Vector   []float32
	Payload  map[string]any
	Content  string
}

// Match is a single query hit: the point's payload/content plus similarity
// score.
type Match struct {
	ID      string
	Score   float32
	Payload map[string]any
	Content string
}

// Filter restricts a query to points whose payload's "document_id" field is
// in DocumentIDs. A nil/empty Filter applies no restriction.
type Filter struct {
	DocumentIDs []string
}

// VectorIndex is the minimal contract the retrieval engine needs: upsert
// points into a named collection, query by vector with an optional filter,
// and delete all points belonging to a document.
type VectorIndex interface {
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]Match, error)
	DeleteByDocument(ctx context.Context, collection string, documentID string) error
	Close() error
}

// NoopIndex is a VectorIndex that stores nothing and always returns empty
// results; it is the default when no vector backend is configured
// (config.VectorIndexConfig.Backend "none" or unset).
type NoopIndex struct{}

// NewNoopIndex constructs a NoopIndex.
func NewNoopIndex() *NoopIndex { return &NoopIndex{} }

func (n *NoopIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	return nil
}

func (n *NoopIndex) Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]Match, error) {
	return nil, nil
}

func (n *NoopIndex) DeleteByDocument(ctx context.Context, collection string, documentID string) error {
	return nil
}

func (n *NoopIndex) Close() error { return nil }
