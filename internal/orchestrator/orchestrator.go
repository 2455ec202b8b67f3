package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ragsuite/internal/checkpoint"
	"ragsuite/internal/retrieval"
)

// RerankResult is one reranked candidate, mirroring internal/reranker.Result
// without importing that package, per the decoupling pattern used
// throughout this module (see internal/ingestion.Embedder).
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

// Reranker is the abstract cross-encoder collaborator, satisfied by an
// adapter over internal/reranker.Client.
type Reranker interface {
	Rerank(ctx context.Context, model, query string, documents []string, topN *int) ([]RerankResult, error)
}

// Orchestrator wires retrieval, optional reranking, the chat model, and
// session checkpointing into the retrieve->generate reducer described in
// spec.md §4.8.
type Orchestrator struct {
	retrieval  *retrieval.Service
	reranker   Reranker
	chat       ChatClient
	checkpoint *checkpoint.Store
	prompts    PromptSet
	logger     *zap.Logger
}

func New(retrievalSvc *retrieval.Service, reranker Reranker, chat ChatClient, checkpointStore *checkpoint.Store, prompts PromptSet, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{retrieval: retrievalSvc, reranker: reranker, chat: chat, checkpoint: checkpointStore, prompts: prompts, logger: logger}
}

// retrieveNode resolves sources for req.Query, optionally reranks them, and
// renders the XML context, per spec.md §4.8's retrieve node.
func (o *Orchestrator) retrieveNode(ctx context.Context, req GenerateRequest) ([]RankedSource, string, error) {
	result, err := o.retrieval.Retrieve(ctx, retrieval.Params{
		ProjectID:      req.ProjectID,
		DocumentIDs:    req.DocumentIDs,
		Query:          req.Query,
		EmbeddingModel: req.EmbeddingModel,
		DenseTopK:      req.DenseTopK,
		SparseTopK:     req.SparseTopK,
		TopK:           req.TopK,
		DenseWeight:    req.DenseWeight,
	})
	if err != nil {
		return nil, "", err
	}

	sources := make([]RankedSource, len(result.Sources))
	for i, s := range result.Sources {
		sources[i] = RankedSource{
			SourceID:            s.SourceID,
			HybridRank:          s.Rank,
			DocumentID:          s.DocumentID,
			DocumentName:        s.DocumentName,
			ChunkIndex:          s.ChunkIndex,
			ContextHeader:       s.ContextHeader,
			ChunkText:           s.ContextualizedChunk,
			ContextualizedChunk: s.ContextualizedChunk,
		}
	}

	if o.reranker != nil && req.RerankModel != nil && len(sources) > 0 {
		sources, err = o.rerank(ctx, *req.RerankModel, req.Query, sources, req.RerankCandidateCount, req.RerankTopN)
		if err != nil {
			return nil, "", err
		}
	}

	return sources, BuildSourceSetXML(sources), nil
}

// rerank calls the reranker over up to rerankCandidateCount sources, then
// reassigns S1..Sk source ids by rerank order while preserving each
// source's original hybrid rank, per spec.md §4.7's contract with the
// orchestrator.
func (o *Orchestrator) rerank(ctx context.Context, model, query string, sources []RankedSource, candidateCount, topN int) ([]RankedSource, error) {
	if candidateCount <= 0 || candidateCount > len(sources) {
		candidateCount = len(sources)
	}
	candidates := sources[:candidateCount]

	documents := make([]string, len(candidates))
	for i, s := range candidates {
		documents[i] = s.ChunkText
	}

	var topNPtr *int
	if topN > 0 {
		topNPtr = &topN
	}

	results, err := o.reranker.Rerank(ctx, model, query, documents, topNPtr)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].RelevanceScore > results[j].RelevanceScore })

	reranked := make([]RankedSource, 0, len(results))
	for i, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		s := candidates[r.Index]
		score := r.RelevanceScore
		s.RerankScore = &score
		s.SourceID = fmt.Sprintf("S%d", i+1)
		reranked = append(reranked, s)
	}
	return reranked, nil
}

// generateMessages composes [system_prompt, history[-window:], user_prompt],
// per spec.md §4.8's generate node.
func (o *Orchestrator) generateMessages(history []checkpoint.Message, window int, question, retrievedContext string) []ChatMessage {
	messages := []ChatMessage{{Role: "system", Content: o.prompts.System}}

	start := 0
	if window > 0 && len(history) > window {
		start = len(history) - window
	}
	for _, m := range history[start:] {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	messages = append(messages, ChatMessage{Role: "user", Content: o.prompts.Render(question, retrievedContext)})
	return messages
}

func activeSourceIDs(sources []RankedSource) map[string]bool {
	active := make(map[string]bool, len(sources))
	for _, s := range sources {
		active[s.SourceID] = true
	}
	return active
}

func (o *Orchestrator) loadHistory(ctx context.Context, req GenerateRequest) ([]checkpoint.Message, string, error) {
	if req.Mode != ModeSession || o.checkpoint == nil {
		return nil, "", nil
	}
	threadID := threadID("rag", req.ProjectID, req.SessionID)
	history, err := o.checkpoint.Load(ctx, threadID)
	if err != nil {
		return nil, threadID, err
	}
	return history, threadID, nil
}

func (o *Orchestrator) saveTurn(ctx context.Context, threadID, question, answer string) {
	if threadID == "" || o.checkpoint == nil {
		return
	}
	if err := o.checkpoint.AppendTurn(ctx, threadID, question, answer); err != nil {
		o.logger.Warn("failed to append checkpoint turn", zap.String("thread_id", threadID), zap.Error(err))
	}
}

// Generate runs the full batch (non-streaming) retrieve->generate flow.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	history, threadID, err := o.loadHistory(ctx, req)
	if err != nil {
		return GenerateResult{}, err
	}

	sources, xmlContext, err := o.retrieveNode(ctx, req)
	if err != nil {
		return GenerateResult{}, err
	}

	messages := o.generateMessages(history, req.HistoryWindow, req.Query, xmlContext)

	chatResult, err := o.chat.Chat(ctx, req.ChatModel, messages)
	if err != nil {
		return GenerateResult{}, err
	}

	citationsUsed, answer := ExtractCitations(chatResult.Content, activeSourceIDs(sources))

	o.saveTurn(ctx, threadID, req.Query, answer)

	return GenerateResult{
		SessionID:      req.SessionID,
		Answer:         answer,
		CitationsUsed:  citationsUsed,
		Sources:        sources,
		ChatModel:      req.ChatModel,
		EmbeddingModel: req.EmbeddingModel,
		RerankModel:    req.RerankModel,
	}, nil
}
