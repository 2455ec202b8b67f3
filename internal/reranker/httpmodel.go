package reranker

import (
	"context"
	"time"

	"ragsuite/internal/inference"
)

// httpModel backs Model with a cross-encoder runtime reachable over HTTP,
// the same way the rest of ragsuite treats Ollama as an external model
// server rather than an in-process ML runtime (no ONNX/transformers
// binding exists anywhere in the corpus to ground an in-process loader
// on). Score proxies to the runtime's /api/rerank endpoint via
// inference.OllamaClient.Rerank; Unload is a no-op since the runtime owns
// model residency.
type httpModel struct {
	client         *inference.OllamaClient
	canonicalModel string
}

func (m *httpModel) Score(ctx context.Context, query string, documents []string, maxLength, batchSize int) ([]float64, error) {
	results, err := m.client.Rerank(ctx, m.canonicalModel, query, documents, nil)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(documents))
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, nil
}

func (m *httpModel) Unload() {}

// NewHTTPModelLoader builds a ModelLoader backed by an Ollama-compatible
// cross-encoder runtime at runtimeURL. device is accepted for interface
// compatibility; the runtime, not this process, owns device placement.
func NewHTTPModelLoader(runtimeURL string, timeout time.Duration) ModelLoader {
	client := inference.NewOllamaClient(runtimeURL, timeout)
	return func(ctx context.Context, canonicalModel, device string) (Model, error) {
		return &httpModel{client: client, canonicalModel: canonicalModel}, nil
	}
}
