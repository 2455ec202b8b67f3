// Package retrieval implements the hybrid retrieval service: resolve
// project, validate document filter ownership, load approved chunks,
// embed the query (consulting a cache), dense search, BM25, fusion, and
// document-summary aggregation (spec.md §4.6).
package retrieval

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"ragsuite/internal/apierr"
	"ragsuite/internal/cache"
	"ragsuite/internal/lineage"
	"ragsuite/internal/retrieval/rank"
	"ragsuite/internal/vectorstore"
)

// Embedder generates a single query embedding. Decoupled from
// internal/inference's concrete client so this package can be tested
// without a network dependency.
type Embedder interface {
	EmbedQuery(ctx context.Context, model, query string) ([]float32, error)
}

// VectorSearcher is the subset of internal/vectorstore.Store this package
// depends on, narrowed to an interface so dense search can be faked in
// tests without a live Qdrant connection.
type VectorSearcher interface {
	Search(ctx context.Context, collectionName string, queryVector []float32, limit uint64, documentIDFilter []string) ([]vectorstore.SearchHit, error)
}

// Params configures one retrieval call.
type Params struct {
	ProjectID      string
	DocumentIDs    []string
	Query          string
	EmbeddingModel string
	DenseTopK      int
	SparseTopK     int
	TopK           int
	DenseWeight    float64
	CacheTTL       time.Duration
}

// Source is one ranked retrieval hit, source_id assigned from rank 1.
type Source struct {
	SourceID            string
	Rank                int
	ChunkKey            string
	DocumentID          string
	DocumentName        string
	ChunkIndex          int
	ContextHeader       string
	ContextualizedChunk string
	DenseScore          float64
	SparseScore         float64
	HybridScore         float64
}

// DocumentSummary aggregates a document's sources, per spec.md §4.6
// ("aggregate to document summaries").
type DocumentSummary struct {
	DocumentID   string
	DocumentName string
	TopRank      int
	ChunkIndexes []int
}

// Result is the full output of one retrieval call.
type Result struct {
	Sources   []Source
	Documents []DocumentSummary
}

// Service ties the lineage store, vector store, sparse ranker, and
// query-embedding cache together.
type Service struct {
	lineage  *lineage.Store
	vectors  VectorSearcher
	embedder Embedder
	cache    cache.Cache
}

func NewService(lineageStore *lineage.Store, vectors VectorSearcher, embedder Embedder, queryCache cache.Cache) *Service {
	return &Service{lineage: lineageStore, vectors: vectors, embedder: embedder, cache: queryCache}
}

// Retrieve runs the full hybrid retrieval pipeline described in spec.md §4.6.
func (s *Service) Retrieve(ctx context.Context, p Params) (Result, error) {
	if p.Query == "" {
		return Result{}, apierr.Validation("retrieval query must not be empty")
	}

	project, err := s.lineage.GetProject(ctx, p.ProjectID)
	if err != nil {
		return Result{}, err
	}

	if err := s.lineage.ValidateDocumentIDs(ctx, p.ProjectID, p.DocumentIDs); err != nil {
		return Result{}, err
	}

	candidates, err := s.lineage.LoadApprovedChunks(ctx, p.ProjectID, p.DocumentIDs)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return Result{}, nil
	}

	queryVector, err := s.embedQuery(ctx, p.EmbeddingModel, p.Query, p.CacheTTL)
	if err != nil {
		return Result{}, err
	}

	denseScores, err := s.denseSearch(ctx, project.CollectionName, queryVector, p.DocumentIDs, p.DenseTopK)
	if err != nil {
		return Result{}, err
	}

	sparseCandidates := make([]rank.Candidate, len(candidates))
	byKey := make(map[string]lineage.CandidateChunk, len(candidates))
	for i, c := range candidates {
		sparseCandidates[i] = rank.Candidate{ChunkKey: c.ChunkKey, Text: c.ContextualizedChunk}
		byKey[c.ChunkKey] = c
	}
	sparseScores := rank.ScoreSparse(p.Query, sparseCandidates, p.SparseTopK)

	allKeys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		allKeys = append(allKeys, c.ChunkKey)
	}

	fused := rank.Fuse(allKeys, denseScores, sparseScores, p.TopK, p.DenseWeight)

	sources := make([]Source, 0, len(fused))
	for i, f := range fused {
		c, ok := byKey[f.ChunkKey]
		if !ok {
			continue
		}
		rankNum := i + 1
		sources = append(sources, Source{
			SourceID:            fmt.Sprintf("S%d", rankNum),
			Rank:                rankNum,
			ChunkKey:            f.ChunkKey,
			DocumentID:          c.DocumentID,
			DocumentName:        c.DocumentName,
			ChunkIndex:          c.ChunkIndex,
			ContextHeader:       c.ContextHeader,
			ContextualizedChunk: c.ContextualizedChunk,
			DenseScore:          f.DenseScore,
			SparseScore:         f.SparseScore,
			HybridScore:         f.HybridScore,
		})
	}

	return Result{Sources: sources, Documents: aggregateDocuments(sources)}, nil
}

// embedQuery consults the cache before calling the embedder; cache misses
// and cache errors both fall through to a live embed call, per
// SPEC_FULL.md's cache-as-accelerator rule.
func (s *Service) embedQuery(ctx context.Context, model, query string, ttl time.Duration) ([]float32, error) {
	key := cache.KeyHash(model, query)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if vec, decodeErr := decodeVector(raw); decodeErr == nil {
				return vec, nil
			}
		}
	}

	vec, err := s.embedder.EmbedQuery(ctx, model, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, encodeVector(vec), ttl)
	}
	return vec, nil
}

func (s *Service) denseSearch(ctx context.Context, collection string, queryVector []float32, documentIDs []string, limit int) (map[string]float64, error) {
	hits, err := s.vectors.Search(ctx, collection, queryVector, uint64(limit), documentIDs)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		chunkID, _ := h.Payload["chunk_id"].(string)
		if chunkID == "" {
			continue
		}
		score := float64(h.Score)
		if existing, ok := scores[chunkID]; !ok || score > existing {
			scores[chunkID] = score
		}
	}
	return scores, nil
}

func aggregateDocuments(sources []Source) []DocumentSummary {
	byDoc := make(map[string]*DocumentSummary)
	var order []string
	for _, src := range sources {
		summary, ok := byDoc[src.DocumentID]
		if !ok {
			summary = &DocumentSummary{DocumentID: src.DocumentID, DocumentName: src.DocumentName, TopRank: src.Rank}
			byDoc[src.DocumentID] = summary
			order = append(order, src.DocumentID)
		}
		if src.Rank < summary.TopRank {
			summary.TopRank = src.Rank
		}
		summary.ChunkIndexes = append(summary.ChunkIndexes, src.ChunkIndex)
	}

	summaries := make([]DocumentSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, *byDoc[id])
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].TopRank < summaries[j].TopRank })
	return summaries
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding: length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
