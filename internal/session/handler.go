package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragsuite/internal/apierr"
)

// Handler exposes Store's CRUD over HTTP, per spec.md §4.11.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/sessions", h.create)
	r.GET("/sessions", h.list)
	r.GET("/sessions/:session_id", h.get)
	r.PATCH("/sessions/:session_id", h.update)
	r.DELETE("/sessions/:session_id", h.delete)
	r.POST("/sessions/:session_id/turns", h.appendTurn)
}

func (h *Handler) create(c *gin.Context) {
	var body struct {
		ProjectID string `json:"project_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(apierr.Validation("invalid session request: %v", err))
		return
	}
	record, err := h.store.CreateSession(c.Request.Context(), body.ProjectID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) list(c *gin.Context) {
	summaries, err := h.store.ListSessions(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries})
}

func (h *Handler) get(c *gin.Context) {
	record, err := h.store.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) update(c *gin.Context) {
	var body struct {
		Title               *string   `json:"title"`
		SelectedDocumentIDs *[]string `json:"selected_document_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(apierr.Validation("invalid session patch: %v", err))
		return
	}
	if err := h.store.UpdateSession(c.Request.Context(), c.Param("session_id"), PatchFields{Title: body.Title, SelectedDocumentIDs: body.SelectedDocumentIDs}); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.store.DeleteSession(c.Request.Context(), c.Param("session_id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) appendTurn(c *gin.Context) {
	var body struct {
		ProjectID           string   `json:"project_id" binding:"required"`
		UserContent         string   `json:"user_content"`
		AssistantContent    string   `json:"assistant_content"`
		SelectedDocumentIDs []string `json:"selected_document_ids"`
		SourceIDs           []string `json:"source_ids"`
		LatestResponse      string   `json:"latest_response"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(apierr.Validation("invalid turn request: %v", err))
		return
	}
	record, err := h.store.AppendTurn(c.Request.Context(), c.Param("session_id"), body.ProjectID, AppendTurnInput{
		UserContent:         body.UserContent,
		AssistantContent:    body.AssistantContent,
		SelectedDocumentIDs: body.SelectedDocumentIDs,
		SourceIDs:           body.SourceIDs,
		LatestResponse:      body.LatestResponse,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, record)
}
