package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex is a VectorIndex backed by a qdrant collection per document
// corpus (callers pass the collection per call: document chunks and archive
// pages live in separate collections; DeleteByDocument filters on a
// "document_id" payload field).
type QdrantIndex struct {
	client *qdrant.Client
	dims   uint64
}

// NewQdrantIndex dials the qdrant instance at host:port. dims is the
// embedding dimensionality used when a collection must be created on first
// use.
func NewQdrantIndex(host string, port int, dims int, useTLS bool) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantIndex{client: client, dims: uint64(dims)}, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, collection string) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}
	return nil
}

// Upsert writes points into collection, creating the collection first if it
// does not yet exist.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, collection); err != nil {
		return err
	}

	qPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("converting payload for point %s: %w", p.ID, err)
		}
		if p.Content != "" {
			v, err := qdrant.NewValue(p.Content)
			if err != nil {
				return fmt.Errorf("converting content for point %s: %w", p.ID, err)
			}
			payload[payloadContentKey] = v
		}
		qPoints = append(qPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qPoints,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", len(qPoints), collection, err)
	}
	return nil
}

const payloadContentKey = "__content__"

// Query runs a nearest-neighbor search against collection.
func (q *QdrantIndex) Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]Match, error) {
	limit := uint64(topK)
	queryPoints := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter != nil && len(filter.DocumentIDs) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filter.DocumentIDs))
		for _, id := range filter.DocumentIDs {
			conditions = append(conditions, qdrant.NewMatchKeyword("document_id", id))
		}
		queryPoints.Filter = &qdrant.Filter{Should: conditions}
	}

	scored, err := q.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	matches := make([]Match, 0, len(scored))
	for _, sp := range scored {
		payload := sp.GetPayload()
		content := ""
		if v, ok := payload[payloadContentKey]; ok {
			content = v.GetStringValue()
			delete(payload, payloadContentKey)
		}
		matches = append(matches, Match{
			ID:      sp.GetId().GetUuid(),
			Score:   sp.GetScore(),
			Payload: convertPayload(payload),
			Content: content,
		})
	}
	return matches, nil
}

// DeleteByDocument removes every point whose "document_id" payload field
// equals documentID.
func (q *QdrantIndex) DeleteByDocument(ctx context.Context, collection string, documentID string) error {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchKeyword("document_id", documentID)}}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("deleting document %s from %s: %w", documentID, collection, err)
	}
	return nil
}

// Close releases the underlying connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch kind := value.Kind.(type) {
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}
