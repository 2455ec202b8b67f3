// Package vectorstore wraps the Qdrant collection-oriented vector API used
// for dense retrieval (spec.md §3 Vector point, §4.6, §4.9).
package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Store wraps a Qdrant client connection.
type Store struct {
	client *qdrant.Client
}

// Point is one vector point to upsert: its id, embedding, and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchHit is one dense search result.
type SearchHit struct {
	Payload map[string]any
	Score   float32
}

// Dial connects to the Qdrant gRPC endpoint (host:port form, per
// qdrant_url config).
func Dial(addr string) (*Store, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant address %q: %w", addr, err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("dial qdrant at %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// EnsureCollection creates collectionName with cosine distance if it does
// not already exist; a no-op otherwise, per qdrant_indexer.ensure_collection.
func (s *Store) EnsureCollection(ctx context.Context, collectionName string, dim uint64) error {
	exists, err := s.client.CollectionExists(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("check qdrant collection %s: %w", collectionName, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %s: %w", collectionName, err)
	}
	return nil
}

// Upsert writes points to collectionName, waiting for the write to be
// durable before returning, per qdrant_indexer.upsert_chunks (wait=True).
func (s *Store) Upsert(ctx context.Context, collectionName string, points []Point) error {
	qPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qPoints = append(qPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qPoints,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("upsert into qdrant collection %s: %w", collectionName, err)
	}
	return nil
}

// Search runs a dense nearest-neighbor search, optionally filtered by
// document_id, returning up to limit hits with payload attached.
func (s *Store) Search(ctx context.Context, collectionName string, queryVector []float32, limit uint64, documentIDFilter []string) ([]SearchHit, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(documentIDFilter) > 0 {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("document_id", documentIDFilter...),
			},
		}
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search qdrant collection %s: %w", collectionName, err)
	}

	hits := make([]SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, SearchHit{
			Payload: qdrant.NewValueMapFromStruct(p.GetPayload()),
			Score:   p.GetScore(),
		})
	}
	return hits, nil
}

// DeleteCollection removes a project's vector collection entirely (cascade
// of a project delete, per spec.md §3 Ownership).
func (s *Store) DeleteCollection(ctx context.Context, collectionName string) error {
	if err := s.client.DeleteCollection(ctx, collectionName); err != nil {
		return fmt.Errorf("delete qdrant collection %s: %w", collectionName, err)
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	host := addr
	port := 6334
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			var p int
			if _, err := fmt.Sscanf(addr[i+1:], "%d", &p); err != nil {
				return "", 0, err
			}
			port = p
			break
		}
	}
	return host, port, nil
}
