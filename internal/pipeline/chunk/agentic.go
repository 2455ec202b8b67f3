package chunk

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ChatCompleter is the abstract chat-model collaborator the agentic chunker
// depends on, satisfied by internal/inference's client.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// ChatMessage is a minimal role/content pair, independent of any particular
// wire format, so chunk doesn't import internal/inference.
type ChatMessage struct {
	Role    string
	Content string
}

const agenticPromptTemplate = `Split the following document into coherent chunks. ` +
	`Respond with JSON only: {"chunks":[{"text":"...","rationale":"..."}]}.\n\n%s`

// Agentic asks the chat model for chunk boundaries with a schema-constrained
// prompt. Any validation failure or upstream error falls back to the
// deterministic chunker, per spec.md §4.3.
func Agentic(ctx context.Context, client ChatCompleter, model, text string, fallbackOpts DeterministicOptions, logger *zap.Logger) []Candidate {
	candidates, err := agenticAttempt(ctx, client, model, text)
	if err == nil && len(candidates) > 0 {
		return candidates
	}

	if logger != nil {
		logger.Warn("agentic chunking failed, falling back to deterministic", zap.Error(err))
	}

	fallback := Deterministic(text, fallbackOpts)
	for i := range fallback {
		fallback[i].Rationale = rationaleFallbackPrefix + ": " + fallback[i].Rationale
	}
	return fallback
}

func agenticAttempt(ctx context.Context, client ChatCompleter, model, text string) ([]Candidate, error) {
	prompt := fmt.Sprintf(agenticPromptTemplate, text)
	raw, err := client.CompleteChat(ctx, model, []ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("agentic chunk completion: %w", err)
	}

	parsed, err := ParseAgenticResponse(raw)
	if err != nil {
		return nil, err
	}
	if len(parsed.Chunks) == 0 {
		return nil, fmt.Errorf("agentic response contained no chunks")
	}

	candidates := make([]Candidate, 0, len(parsed.Chunks))
	cursor := 0
	for index, entry := range parsed.Chunks {
		chunkText := strings.TrimSpace(entry.Text)
		if chunkText == "" {
			return nil, fmt.Errorf("agentic chunk %d has empty text", index)
		}

		start := strings.Index(text[min(cursor, len(text)):], chunkText)
		if start == -1 {
			start = cursor
		} else {
			start += min(cursor, len(text))
		}
		end := start + len(chunkText)

		rationale := strings.TrimSpace(entry.Rationale)
		if rationale == "" {
			rationale = rationaleAgenticDefault
		}

		candidates = append(candidates, Candidate{
			ChunkIndex: index,
			StartChar:  start,
			EndChar:    end,
			Text:       chunkText,
			Rationale:  rationale,
		})
		cursor = end
	}
	return candidates, nil
}
