package inference

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragsuite/internal/apierr"
	"ragsuite/internal/opmanager"
)

// Gateway exposes the OpenAI-compatible surface (chat/completions,
// completions, embeddings, rerank) over an OllamaClient, per spec.md §2/§6.
type Gateway struct {
	client *OllamaClient
	ops    *opmanager.Manager
	log    *zap.Logger
}

func NewGateway(client *OllamaClient, ops *opmanager.Manager, log *zap.Logger) *Gateway {
	return &Gateway{client: client, ops: ops, log: log}
}

func (g *Gateway) RegisterRoutes(r gin.IRouter) {
	r.POST("/chat/completions", g.handleChatCompletions)
	r.POST("/completions", g.handleCompletions)
	r.POST("/embeddings", g.handleEmbeddings)
	r.POST("/rerank", g.handleRerank)
}

type chatCompletionsRequest struct {
	Model       string        `json:"model" binding:"required"`
	Messages    []chatMessage `json:"messages" binding:"required"`
	Temperature float64       `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

func (g *Gateway) handleChatCompletions(c *gin.Context) {
	var req chatCompletionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierr.Validation("invalid chat completions request: %v", err))
		return
	}

	messages := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}

	ctx, release := g.ops.Register(c.Request.Context(), c.GetHeader("X-Operation-Id"))
	defer release()

	if req.Stream {
		g.streamChatCompletions(c, ctx, req, messages)
		return
	}

	result, err := g.client.Chat(ctx, req.Model, messages, req.Temperature, req.MaxTokens)
	if err != nil {
		if apierr.IsCancelled(err) || ctx.Err() != nil {
			c.Error(apierr.Cancelled("chat completion cancelled"))
			return
		}
		c.Error(err)
		return
	}

	id := completionID()
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"object":  "chat.completion",
		"model":   req.Model,
		"choices": []gin.H{{"index": 0, "message": gin.H{"role": "assistant", "content": result.Content}, "finish_reason": result.FinishReason}},
		"usage": gin.H{
			"prompt_tokens":     result.PromptTokens,
			"completion_tokens": result.CompletionTokens,
			"total_tokens":      result.PromptTokens + result.CompletionTokens,
		},
	})
}

func (g *Gateway) streamChatCompletions(c *gin.Context, ctx context.Context, req chatCompletionsRequest, messages []Message) {
	id := completionID()
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sendChunk := func(delta gin.H, finishReason *string) {
		chunk := gin.H{
			"id":      id,
			"object":  "chat.completion.chunk",
			"model":   req.Model,
			"choices": []gin.H{{"index": 0, "delta": delta, "finish_reason": finishReason}},
		}
		c.SSEvent("", chunk)
		c.Writer.Flush()
	}

	sendChunk(gin.H{"role": "assistant"}, nil)

	err := g.client.ChatStream(ctx, req.Model, messages, req.Temperature, req.MaxTokens, func(sc StreamChunk) error {
		if ctx.Err() != nil {
			return apierr.Cancelled("chat stream cancelled")
		}
		if sc.ContentDelta != "" {
			sendChunk(gin.H{"content": sc.ContentDelta}, nil)
		}
		return nil
	})
	if err != nil {
		c.SSEvent("error", gin.H{"detail": err.Error()})
		c.Writer.Flush()
		return
	}

	finish := "stop"
	sendChunk(gin.H{}, &finish)
	c.SSEvent("", "[DONE]")
	c.Writer.Flush()
}

func (g *Gateway) handleCompletions(c *gin.Context) {
	var req struct {
		Model       string  `json:"model" binding:"required"`
		Prompt      string  `json:"prompt" binding:"required"`
		Temperature float64 `json:"temperature"`
		MaxTokens   *int    `json:"max_tokens"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierr.Validation("invalid completions request: %v", err))
		return
	}

	result, err := g.client.Chat(c.Request.Context(), req.Model, []Message{{Role: "user", Content: req.Prompt}}, req.Temperature, req.MaxTokens)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      completionID(),
		"object":  "text_completion",
		"model":   req.Model,
		"choices": []gin.H{{"index": 0, "text": result.Content, "finish_reason": result.FinishReason}},
	})
}

func (g *Gateway) handleEmbeddings(c *gin.Context) {
	var req struct {
		Model string   `json:"model" binding:"required"`
		Input []string `json:"input" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierr.Validation("invalid embeddings request: %v", err))
		return
	}

	result, err := g.client.Embed(c.Request.Context(), req.Model, req.Input)
	if err != nil {
		c.Error(err)
		return
	}

	data := make([]gin.H, 0, len(result.Embeddings))
	for i, e := range result.Embeddings {
		data = append(data, gin.H{"index": i, "embedding": e, "object": "embedding"})
	}
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"model":  req.Model,
		"data":   data,
		"usage":  gin.H{"prompt_tokens": result.PromptTokens, "total_tokens": result.PromptTokens},
	})
}

func (g *Gateway) handleRerank(c *gin.Context) {
	var req struct {
		Model     string   `json:"model" binding:"required"`
		Query     string   `json:"query" binding:"required"`
		Documents []string `json:"documents" binding:"required"`
		TopN      *int     `json:"top_n"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apierr.Validation("invalid rerank request: %v", err))
		return
	}

	results, err := g.client.Rerank(c.Request.Context(), req.Model, req.Query, req.Documents, req.TopN)
	if err != nil {
		c.Error(err)
		return
	}

	rows := make([]gin.H, 0, len(results))
	for _, r := range results {
		rows = append(rows, gin.H{"index": r.Index, "relevance_score": r.RelevanceScore})
	}
	c.JSON(http.StatusOK, gin.H{"results": rows})
}

func completionID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("chatcmpl-%s", hex.EncodeToString(buf))
}
