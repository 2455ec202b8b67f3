package inference

import (
	"context"

	"ragsuite/internal/orchestrator"
	"ragsuite/internal/pipeline/chunk"
)

// EmbedAdapter adapts OllamaClient to internal/ingestion.Embedder, batch
// embedding a slice of contextualized chunks in one call.
type EmbedAdapter struct {
	Client *OllamaClient
}

func (a EmbedAdapter) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	result, err := a.Client.Embed(ctx, model, texts)
	if err != nil {
		return nil, err
	}
	return result.Embeddings, nil
}

// QueryEmbedAdapter adapts OllamaClient to internal/retrieval.Embedder,
// embedding a single query string.
type QueryEmbedAdapter struct {
	Client *OllamaClient
}

func (a QueryEmbedAdapter) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	result, err := a.Client.Embed(ctx, model, []string{query})
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, nil
	}
	return result.Embeddings[0], nil
}

// OrchestratorChatAdapter adapts OllamaClient to internal/orchestrator's
// ChatClient interface. internal/orchestrator never imports
// internal/inference, so this one-way edge is safe: only the composition
// root (cmd/orchestrator) wires the two together.
type OrchestratorChatAdapter struct {
	Client      *OllamaClient
	Temperature float64
}

func (a OrchestratorChatAdapter) Chat(ctx context.Context, model string, messages []orchestrator.ChatMessage) (orchestrator.ChatResult, error) {
	result, err := a.Client.Chat(ctx, model, toOrchestratorWireMessages(messages), a.Temperature, nil)
	if err != nil {
		return orchestrator.ChatResult{}, err
	}
	return orchestrator.ChatResult{
		Content:          result.Content,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		FinishReason:     result.FinishReason,
	}, nil
}

func (a OrchestratorChatAdapter) ChatStream(ctx context.Context, model string, messages []orchestrator.ChatMessage, onChunk func(orchestrator.StreamChunk) error) error {
	return a.Client.ChatStream(ctx, model, toOrchestratorWireMessages(messages), a.Temperature, nil, func(sc StreamChunk) error {
		return onChunk(orchestrator.StreamChunk{ContentDelta: sc.ContentDelta, Done: sc.Done, FinishReason: sc.FinishReason})
	})
}

func toOrchestratorWireMessages(messages []orchestrator.ChatMessage) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out
}


// ChatAdapter adapts OllamaClient to the chunk.ChatCompleter and
// header.ChatCompleter interfaces so the ingestion pipeline can call
// the inference gateway without it depending on the wire format directly.
type ChatAdapter struct {
	Client      *OllamaClient
	Model       string
	Temperature float64
}

func (a ChatAdapter) CompleteChat(ctx context.Context, model string, messages []chunk.ChatMessage) (string, error) {
	if model == "" {
		model = a.Model
	}
	msgs := make([]Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	result, err := a.Client.Chat(ctx, model, msgs, a.Temperature, nil)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}
