package reranker

import (
	"context"

	"ragsuite/internal/orchestrator"
)

// OrchestratorAdapter adapts Client to internal/orchestrator's Reranker
// interface. internal/orchestrator never imports internal/reranker, so
// this one-way edge is safe; only the composition root (cmd/orchestrator)
// wires the two together.
type OrchestratorAdapter struct {
	Client *Client
}

func (a OrchestratorAdapter) Rerank(ctx context.Context, model, query string, documents []string, topN *int) ([]orchestrator.RerankResult, error) {
	results, err := a.Client.Rerank(ctx, model, query, documents, topN)
	if err != nil {
		return nil, err
	}
	out := make([]orchestrator.RerankResult, len(results))
	for i, r := range results {
		out[i] = orchestrator.RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore}
	}
	return out, nil
}
