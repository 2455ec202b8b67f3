package chunk

import (
	"context"
	"errors"
	"testing"
)

type stubChatCompleter struct {
	response string
	err      error
}

func (s stubChatCompleter) CompleteChat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	return s.response, s.err
}

func TestAgenticParsesDirectJSON(t *testing.T) {
	client := stubChatCompleter{response: `{"chunks":[{"text":"First part.","rationale":"intro"},{"text":"Second part.","rationale":""}]}`}
	candidates := Agentic(context.Background(), client, "test-model", "First part. Second part.", DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100}, nil)

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[1].Rationale != rationaleAgenticDefault {
		t.Fatalf("expected default rationale for empty rationale, got %q", candidates[1].Rationale)
	}
}

func TestAgenticFallsBackOnUpstreamError(t *testing.T) {
	client := stubChatCompleter{err: errors.New("upstream unavailable")}
	candidates := Agentic(context.Background(), client, "test-model", "Paragraph one.\n\nParagraph two.", DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100}, nil)

	if len(candidates) == 0 {
		t.Fatal("expected fallback candidates")
	}
	for _, c := range candidates {
		if len(c.Rationale) < len(rationaleFallbackPrefix) || c.Rationale[:len(rationaleFallbackPrefix)] != rationaleFallbackPrefix {
			t.Fatalf("expected fallback rationale prefix, got %q", c.Rationale)
		}
	}
}

func TestAgenticFallsBackOnEmptyChunks(t *testing.T) {
	client := stubChatCompleter{response: `{"chunks":[]}`}
	candidates := Agentic(context.Background(), client, "test-model", "Paragraph one.\n\nParagraph two.", DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100}, nil)
	if len(candidates) == 0 {
		t.Fatal("expected fallback candidates for empty chunk list")
	}
}

func TestAgenticFallsBackOnMalformedJSONWithoutFence(t *testing.T) {
	client := stubChatCompleter{response: "not json at all"}
	candidates := Agentic(context.Background(), client, "test-model", "Paragraph one.\n\nParagraph two.", DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100}, nil)
	if len(candidates) == 0 {
		t.Fatal("expected fallback candidates for malformed response")
	}
}

func TestParseAgenticResponseFencedFallback(t *testing.T) {
	raw := "<thinking>scratch</thinking>Here is the result:\n```json\n{\"chunks\":[{\"text\":\"A\",\"rationale\":\"r\"}]}\n```\n"
	parsed, err := ParseAgenticResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Chunks) != 1 || parsed.Chunks[0].Text != "A" {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
}
