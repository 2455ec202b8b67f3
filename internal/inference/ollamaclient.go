// Package inference implements the Ollama adapter and the OpenAI-compatible
// gateway surface fronting it (spec.md §2, §6). It is the realization of
// "Inference Gateway" — non-streamed and streamed chat, embeddings, rerank,
// with NDJSON upstream parsed into SSE downstream.
package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragsuite/internal/apierr"
)

// OllamaClient is the raw adapter over an Ollama-style runtime's
// /api/chat, /api/embed, and /api/rerank endpoints.
type OllamaClient struct {
	baseURL string
	http    *http.Client
}

func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ChatResult is a non-streamed chat completion, thinking wrapped inline
// with content when both are present, per spec.md §6.
type ChatResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  *int    `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
	Options  chatOptions   `json:"options"`
}

type chatResponseMessage struct {
	Content  string `json:"content"`
	Thinking string `json:"thinking"`
}

type chatResponse struct {
	Message         chatResponseMessage `json:"message"`
	PromptEvalCount int                 `json:"prompt_eval_count"`
	EvalCount       int                 `json:"eval_count"`
	DoneReason      string              `json:"done_reason"`
}

// Chat runs a non-streamed chat completion against /api/chat.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []Message, temperature float64, maxTokens *int) (ChatResult, error) {
	req := chatRequest{
		Model:    model,
		Stream:   false,
		Messages: toOllamaMessages(messages),
		Options:  chatOptions{Temperature: temperature, NumPredict: maxTokens},
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/api/chat", req, &resp); err != nil {
		return ChatResult{}, err
	}

	content := strings.TrimSpace(resp.Message.Content)
	thinking := strings.TrimSpace(resp.Message.Thinking)
	switch {
	case thinking != "" && content != "":
		content = fmt.Sprintf("<thinking>%s</thinking>\n%s", thinking, content)
	case thinking != "":
		content = fmt.Sprintf("<thinking>%s</thinking>", thinking)
	}
	if content == "" {
		return ChatResult{}, apierr.ExternalService("OllamaClient", c.baseURL+"/api/chat", 0, "empty completion text", nil)
	}

	finishReason := resp.DoneReason
	if finishReason == "" {
		finishReason = "stop"
	}

	return ChatResult{
		Content:          content,
		PromptTokens:     max0(resp.PromptEvalCount),
		CompletionTokens: max0(resp.EvalCount),
		FinishReason:     finishReason,
	}, nil
}

// StreamChunk is one normalized delta from a streamed chat completion.
type StreamChunk struct {
	ContentDelta     string
	Done             bool
	FinishReason     string
	PromptTokens     *int
	CompletionTokens *int
}

// ChatStream runs a streamed chat completion, parsing NDJSON lines one at a
// time and yielding normalized deltas via onChunk, per spec.md §6.
func (c *OllamaClient) ChatStream(ctx context.Context, model string, messages []Message, temperature float64, maxTokens *int, onChunk func(StreamChunk) error) error {
	req := chatRequest{
		Model:    model,
		Stream:   true,
		Messages: toOllamaMessages(messages),
		Options:  chatOptions{Temperature: temperature, NumPredict: maxTokens},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal ollama chat stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apierr.ExternalService("OllamaClient", c.baseURL+"/api/chat", 0, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return apierr.ExternalService("OllamaClient", c.baseURL+"/api/chat", resp.StatusCode, string(b), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		chunk, err := parseChatStreamLine(line)
		if err != nil {
			return err
		}
		if chunk.ContentDelta == "" && !chunk.Done {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return apierr.ExternalService("OllamaClient", c.baseURL+"/api/chat", 0, err.Error(), err)
	}
	return nil
}

func parseChatStreamLine(line string) (StreamChunk, error) {
	var raw struct {
		Done    bool `json:"done"`
		Message struct {
			Content  string `json:"content"`
			Thinking string `json:"thinking"`
		} `json:"message"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount *int   `json:"prompt_eval_count"`
		EvalCount       *int   `json:"eval_count"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return StreamChunk{}, apierr.ExternalService("OllamaClient", "chat-stream", 0, "malformed JSON line", err)
	}

	var delta strings.Builder
	if raw.Message.Thinking != "" {
		delta.WriteString("<thinking>")
		delta.WriteString(raw.Message.Thinking)
		delta.WriteString("</thinking>")
	}
	delta.WriteString(raw.Message.Content)

	var finishReason string
	if raw.DoneReason != "" {
		finishReason = raw.DoneReason
	}

	return StreamChunk{
		ContentDelta:     delta.String(),
		Done:             raw.Done,
		FinishReason:     finishReason,
		PromptTokens:     raw.PromptEvalCount,
		CompletionTokens: raw.EvalCount,
	}, nil
}

// EmbedResult is the result of an embedding request.
type EmbedResult struct {
	Embeddings   [][]float32
	PromptTokens int
}

// Embed generates embeddings for one or more texts via /api/embed.
func (c *OllamaClient) Embed(ctx context.Context, model string, texts []string) (EmbedResult, error) {
	req := map[string]any{"model": model, "input": texts}

	var resp struct {
		Embeddings      [][]float32 `json:"embeddings"`
		PromptEvalCount int         `json:"prompt_eval_count"`
	}
	if err := c.postJSON(ctx, "/api/embed", req, &resp); err != nil {
		return EmbedResult{}, err
	}
	if len(resp.Embeddings) == 0 {
		return EmbedResult{}, apierr.ExternalService("OllamaClient", c.baseURL+"/api/embed", 0, "missing embeddings in response", nil)
	}
	return EmbedResult{Embeddings: resp.Embeddings, PromptTokens: max0(resp.PromptEvalCount)}, nil
}

// RerankResult is one scored (query, document) pair.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

// Rerank scores candidate documents for one query via /api/rerank.
func (c *OllamaClient) Rerank(ctx context.Context, model, query string, documents []string, topN *int) ([]RerankResult, error) {
	req := map[string]any{"model": model, "query": query, "documents": documents}
	if topN != nil {
		req["top_n"] = *topN
	}

	var resp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := c.postJSON(ctx, "/api/rerank", req, &resp); err != nil {
		return nil, err
	}

	results := make([]RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	return results, nil
}

func (c *OllamaClient) postJSON(ctx context.Context, path string, reqBody, respBody any) error {
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request to %s: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return apierr.ExternalService("OllamaClient", c.baseURL+path, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return apierr.ExternalService("OllamaClient", c.baseURL+path, resp.StatusCode, string(body), nil)
	}
	if respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			return apierr.ExternalService("OllamaClient", c.baseURL+path, resp.StatusCode, "malformed JSON response", err)
		}
	}
	return nil
}

// Message is a role/content chat turn, independent of any particular wire
// format.
type Message struct {
	Role    string
	Content string
}

func toOllamaMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
