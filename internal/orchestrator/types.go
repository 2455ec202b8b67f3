// Package orchestrator implements the two-node retrieve->generate state
// machine, XML context assembly, citation extraction, and SSE streaming
// (spec.md §4.8). It is a plain in-memory reducer rather than an external
// graph framework, per spec.md §9's redesign of the original LangGraph
// state machine.
package orchestrator

import (
	"context"

	"ragsuite/internal/checkpoint"
)

// Mode selects whether a request persists conversation memory.
type Mode string

const (
	ModeStateless Mode = "stateless"
	ModeSession   Mode = "session"
)

// ChatMessage is a minimal role/content pair, independent of any wire
// format, mirroring the decoupling pattern used by internal/pipeline/chunk.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatResult is a non-streamed chat completion.
type ChatResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// StreamChunk is one normalized delta from a streamed chat completion.
type StreamChunk struct {
	ContentDelta string
	Done         bool
	FinishReason string
}

// ChatClient is the abstract chat-model collaborator, satisfied by an
// adapter over internal/inference.OllamaClient.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (ChatResult, error)
	ChatStream(ctx context.Context, model string, messages []ChatMessage, onChunk func(StreamChunk) error) error
}

// GenerateRequest is one orchestrator invocation.
type GenerateRequest struct {
	ProjectID            string
	SessionID            string
	Query                string
	DocumentIDs          []string
	Mode                 Mode
	ChatModel            string
	EmbeddingModel       string
	RerankModel          *string
	HistoryWindow        int
	TopK                 int
	DenseTopK            int
	SparseTopK           int
	DenseWeight          float64
	RerankCandidateCount int
	RerankTopN           int
}

// GenerateResult is the orchestrator's batch-mode output.
type GenerateResult struct {
	SessionID      string
	Answer         string
	CitationsUsed  []string
	Sources        []RankedSource
	ChatModel      string
	EmbeddingModel string
	RerankModel    *string
}

// RankedSource is a retrieval source after optional reranking, with its
// final S1..Sk source id and both hybrid and rerank scores preserved.
type RankedSource struct {
	SourceID            string
	HybridRank          int
	RerankScore         *float64
	DocumentID          string
	DocumentName        string
	ChunkIndex          int
	ContextHeader       string
	ChunkText           string
	ContextualizedChunk string
}

// threadID builds the checkpoint key, per spec.md §9.
func threadID(prefix, projectID, sessionID string) string {
	return checkpoint.ThreadID(prefix, projectID, sessionID)
}
