// Package reranker implements the cross-encoder reranker service: lazy
// per-model cache, single-flight loading, batched scoring, optional
// unload-after-request (spec.md §4.7).
package reranker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"ragsuite/internal/apierr"
)

// modelAliases maps short, commonly used names to canonical model ids, per
// the original CrossEncoderReranker.MODEL_ALIASES.
var modelAliases = map[string]string{
	"bge-reranker-v2-m3:latest": "BAAI/bge-reranker-v2-m3",
	"bge-reranker-base:latest":  "BAAI/bge-reranker-base",
	"bge-reranker-large:latest": "BAAI/bge-reranker-large",
}

// ResolveModel maps a model alias to its canonical id, passing unknown
// names through unchanged.
func ResolveModel(name string) string {
	if canonical, ok := modelAliases[name]; ok {
		return canonical
	}
	return name
}

// Model is the loaded cross-encoder collaborator. The real implementation
// is backed by a model-serving process; Score must be safe for concurrent
// use once loaded.
type Model interface {
	Score(ctx context.Context, query string, documents []string, maxLength, batchSize int) ([]float64, error)
	Unload()
}

// ModelLoader constructs a Model for a canonical model id, per the
// configured device (auto/cpu/cuda).
type ModelLoader func(ctx context.Context, canonicalModel, device string) (Model, error)

// Result is one scored candidate document, index into the original
// documents slice preserved.
type Result struct {
	Index          int
	RelevanceScore float64
}

// Service owns the per-model cache and coalesces concurrent loads of the
// same model via singleflight, per spec.md §5 shared-resource policy.
type Service struct {
	loader ModelLoader
	device string

	mu     sync.Mutex
	models map[string]Model
	group  singleflight.Group

	unloadAfterRequest bool
	maxLength          int
	batchSize          int
}

func NewService(loader ModelLoader, device string, unloadAfterRequest bool, maxLength, batchSize int) *Service {
	return &Service{
		loader:             loader,
		device:             device,
		models:             make(map[string]Model),
		unloadAfterRequest: unloadAfterRequest,
		maxLength:          maxLength,
		batchSize:          batchSize,
	}
}

// Rerank resolves the model alias, loads the model if absent, scores every
// (query, document) pair, sorts descending, and returns the top_n rows.
// If unloadAfterRequest is configured, the model is evicted and released
// after scoring regardless of outcome.
func (s *Service) Rerank(ctx context.Context, modelName, query string, documents []string, topN int) ([]Result, error) {
	if query == "" {
		return nil, apierr.Validation("rerank query must not be empty")
	}
	if len(documents) == 0 {
		return nil, apierr.Validation("rerank documents must not be empty")
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	canonical := ResolveModel(modelName)
	model, err := s.getOrLoad(ctx, canonical)
	if err != nil {
		return nil, err
	}

	if s.unloadAfterRequest {
		defer s.unload(canonical)
	}

	scores, err := model.Score(ctx, query, documents, s.maxLength, s.batchSize)
	if err != nil {
		return nil, apierr.ExternalService("CrossEncoderReranker", "rerank", 0, err.Error(), err)
	}
	if len(scores) != len(documents) {
		return nil, apierr.ExternalService("CrossEncoderReranker", "rerank", 0, "score count does not match document count", nil)
	}

	results := make([]Result, len(documents))
	for i, score := range scores {
		results[i] = Result{Index: i, RelevanceScore: score}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].RelevanceScore > results[j].RelevanceScore })

	return results[:topN], nil
}

func (s *Service) getOrLoad(ctx context.Context, canonicalModel string) (Model, error) {
	s.mu.Lock()
	if model, ok := s.models[canonicalModel]; ok {
		s.mu.Unlock()
		return model, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(canonicalModel, func() (any, error) {
		s.mu.Lock()
		if model, ok := s.models[canonicalModel]; ok {
			s.mu.Unlock()
			return model, nil
		}
		s.mu.Unlock()

		device := s.device
		if device == "auto" {
			device = resolveAutoDevice()
		}

		model, err := s.loader(ctx, canonicalModel, device)
		if err != nil {
			return nil, fmt.Errorf("load reranker model %s: %w", canonicalModel, err)
		}

		s.mu.Lock()
		s.models[canonicalModel] = model
		s.mu.Unlock()
		return model, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// unload evicts a model from the cache and releases its resources.
func (s *Service) unload(canonicalModel string) {
	s.mu.Lock()
	model, ok := s.models[canonicalModel]
	delete(s.models, canonicalModel)
	s.mu.Unlock()
	if ok {
		model.Unload()
	}
}

// UnloadAll evicts every cached model.
func (s *Service) UnloadAll() {
	s.mu.Lock()
	models := s.models
	s.models = make(map[string]Model)
	s.mu.Unlock()
	for _, m := range models {
		m.Unload()
	}
}

// resolveAutoDevice resolves the "auto" device setting. It always returns
// cpu: no CUDA runtime is probed and no environment hint is read.
func resolveAutoDevice() string {
	return "cpu"
}
