package header

import (
	"context"
	"testing"

	"ragsuite/internal/pipeline/chunk"
)

func TestTemplateModeHeader(t *testing.T) {
	outputs, err := Generate(context.Background(), nil, "", ModeTemplate, []Input{
		{DocumentName: "Contract.pdf", ChunkIndex: 0, ChunkText: "The parties agree..."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs[0].Header != "Document 'Contract.pdf', chunk 1." {
		t.Fatalf("unexpected header: %q", outputs[0].Header)
	}
	if outputs[0].Contextualized != "Document 'Contract.pdf', chunk 1.\n\nThe parties agree..." {
		t.Fatalf("unexpected contextualized text: %q", outputs[0].Contextualized)
	}
}

func TestCancelledContextBeforeLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, nil, "", ModeTemplate, []Input{{DocumentName: "A", ChunkIndex: 0, ChunkText: "x"}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

type stubChatCompleter struct{ response string }

func (s stubChatCompleter) CompleteChat(ctx context.Context, model string, messages []chunk.ChatMessage) (string, error) {
	return s.response, nil
}

func TestLLMModeStripsThinking(t *testing.T) {
	client := stubChatCompleter{response: "<thinking>internal</thinking>This chunk covers termination clauses."}
	outputs, err := Generate(context.Background(), client, "model", ModeLLM, []Input{
		{DocumentName: "Contract.pdf", ChunkIndex: 2, ChunkText: "Either party may terminate..."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs[0].Header != "This chunk covers termination clauses." {
		t.Fatalf("expected thinking section stripped, got %q", outputs[0].Header)
	}
}
