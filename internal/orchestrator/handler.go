package orchestrator

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragsuite/internal/apierr"
	"ragsuite/internal/opmanager"
)

// operationIDHeader is the client-supplied id used for cooperative
// cancellation via internal/opmanager, per spec.md §4.10.
const operationIDHeader = "X-Operation-Id"

// Handler exposes the batch and streaming HTTP endpoints over an
// Orchestrator.
type Handler struct {
	orchestrator *Orchestrator
	ops          *opmanager.Manager
	logger       *zap.Logger
}

func NewHandler(o *Orchestrator, ops *opmanager.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orchestrator: o, ops: ops, logger: logger}
}

type generateRequestBody struct {
	ProjectID            string   `json:"project_id" binding:"required"`
	SessionID            string   `json:"session_id"`
	Query                string   `json:"query" binding:"required"`
	DocumentIDs          []string `json:"document_ids"`
	Mode                 string   `json:"mode"`
	ChatModel            string   `json:"chat_model" binding:"required"`
	EmbeddingModel       string   `json:"embedding_model" binding:"required"`
	RerankModel          *string  `json:"rerank_model"`
	HistoryWindow        int      `json:"history_window"`
	TopK                 int      `json:"top_k"`
	DenseTopK            int      `json:"dense_top_k"`
	SparseTopK           int      `json:"sparse_top_k"`
	DenseWeight          float64  `json:"dense_weight"`
	RerankCandidateCount int      `json:"rerank_candidate_count"`
	RerankTopN           int      `json:"rerank_top_n"`
}

func (b generateRequestBody) toRequest() GenerateRequest {
	mode := ModeStateless
	if b.Mode == string(ModeSession) {
		mode = ModeSession
	}
	return GenerateRequest{
		ProjectID:            b.ProjectID,
		SessionID:            b.SessionID,
		Query:                b.Query,
		DocumentIDs:          b.DocumentIDs,
		Mode:                 mode,
		ChatModel:            b.ChatModel,
		EmbeddingModel:       b.EmbeddingModel,
		RerankModel:          b.RerankModel,
		HistoryWindow:        b.HistoryWindow,
		TopK:                 b.TopK,
		DenseTopK:            b.DenseTopK,
		SparseTopK:           b.SparseTopK,
		DenseWeight:          b.DenseWeight,
		RerankCandidateCount: b.RerankCandidateCount,
		RerankTopN:           b.RerankTopN,
	}
}

// Generate handles POST /v1/generate, the non-streaming batch path.
func (h *Handler) Generate(c *gin.Context) {
	var body generateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, release := h.ops.Register(c.Request.Context(), c.GetHeader(operationIDHeader))
	defer release()

	result, err := h.orchestrator.Generate(ctx, body.toRequest())
	if err != nil {
		c.JSON(apierr.Status(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateStream handles POST /v1/generate/stream, emitting a
// meta -> delta* -> done|error SSE sequence per spec.md §4.8, grounded on
// unified-rag-service/main.go's handleStreamingRAG/sendStreamEvent.
func (h *Handler) GenerateStream(c *gin.Context) {
	var body generateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx, release := h.ops.Register(c.Request.Context(), c.GetHeader(operationIDHeader))
	defer release()

	err := h.orchestrator.GenerateStream(ctx, body.toRequest(), func(ev StreamEvent) error {
		return sendStreamEvent(c, ev)
	})
	if err != nil {
		h.logger.Warn("generate stream ended with error", zap.Error(err))
	}
}

func sendStreamEvent(c *gin.Context, ev StreamEvent) error {
	c.SSEvent(string(ev.Type), ev)
	c.Writer.Flush()
	return nil
}
