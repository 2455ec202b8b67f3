package reranker

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragsuite/internal/apierr"
)

// Handler exposes Service over HTTP, matching the wire contract consumed
// by Client.Rerank (model/query/documents/top_n -> results[].index,
// relevance_score), grounded on original_source/backend_reranker/src/routes/rerank.py.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/rerank", h.handleRerank)
}

func (h *Handler) handleRerank(c *gin.Context) {
	var req struct {
		Model     string   `json:"model" binding:"required"`
		Query     string   `json:"query" binding:"required"`
		Documents []string `json:"documents" binding:"required"`
		TopN      *int     `json:"top_n"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topN := 0
	if req.TopN != nil {
		topN = *req.TopN
	}

	results, err := h.svc.Rerank(c.Request.Context(), req.Model, req.Query, req.Documents, topN)
	if err != nil {
		c.JSON(apierr.Status(err), gin.H{"error": err.Error()})
		return
	}

	rows := make([]gin.H, 0, len(results))
	for _, r := range results {
		rows = append(rows, gin.H{"index": r.Index, "relevance_score": r.RelevanceScore})
	}
	c.JSON(http.StatusOK, gin.H{"results": rows})
}
