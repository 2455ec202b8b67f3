package ingestion

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragsuite/internal/apierr"
	"ragsuite/internal/lineage"
	"ragsuite/internal/pipeline/chunk"
)

// Handler exposes project CRUD plus the automatic/manual ingestion
// workflows over HTTP, grounded on
// original_source/backend_ingestion/src/services/project_service.py for
// project lifecycle and unified-rag-service/main.go's document upload
// handler for the automatic-ingest endpoint's multipart shape.
type Handler struct {
	svc               *Service
	lineage           *lineage.Store
	collectionPrefix  string
}

func NewHandler(svc *Service, lineageStore *lineage.Store, collectionPrefix string) *Handler {
	if collectionPrefix == "" {
		collectionPrefix = "ragsuite"
	}
	return &Handler{svc: svc, lineage: lineageStore, collectionPrefix: collectionPrefix}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/projects", h.createProject)
	r.GET("/projects", h.listProjects)
	r.GET("/projects/:project_id", h.getProject)
	r.DELETE("/projects/:project_id", h.deleteProject)
	r.POST("/projects/:project_id/documents", h.ingestAutomatic)
	r.POST("/projects/:project_id/documents/manual", h.ingestManual)
	r.POST("/projects/:project_id/documents/upload", h.ingestUpload)
}

func (h *Handler) createProject(c *gin.Context) {
	var body struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(apierr.Validation("invalid project request: %v", err))
		return
	}

	id := uuid.NewString()
	collection := h.collectionPrefix + "_" + strings.ToLower(strings.ReplaceAll(body.Name, " ", "_"))
	project, err := h.lineage.CreateProject(c.Request.Context(), id, body.Name, body.Description, collection)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *Handler) listProjects(c *gin.Context) {
	projects, err := h.lineage.ListProjects(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handler) getProject(c *gin.Context) {
	project, err := h.lineage.GetProject(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *Handler) deleteProject(c *gin.Context) {
	if err := h.lineage.DeleteProject(c.Request.Context(), c.Param("project_id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type ingestAutomaticBody struct {
	DocumentName          string `json:"document_name" binding:"required"`
	SourceType            string `json:"source_type" binding:"required"`
	RawText               string `json:"raw_text" binding:"required"`
	ChunkingMode          string `json:"chunking_mode"`
	ContextualizationMode string `json:"contextualization_mode"`
	AgenticModel          string `json:"agentic_model"`
	HeaderModel           string `json:"header_model"`
	EmbeddingModel        string `json:"embedding_model" binding:"required"`
}

func (h *Handler) ingestAutomatic(c *gin.Context) {
	var body ingestAutomaticBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(apierr.Validation("invalid ingest request: %v", err))
		return
	}

	chunkingMode := lineage.ChunkingDeterministic
	if body.ChunkingMode == string(lineage.ChunkingAgentic) {
		chunkingMode = lineage.ChunkingAgentic
	}
	contextMode := lineage.ContextualizationMode(body.ContextualizationMode)
	if contextMode == "" {
		contextMode = lineage.ContextualizationDisabled
	}

	agenticClient := h.svc.ChatClient
	headerClient := h.svc.ChatClient

	doc, err := h.svc.Ingest(c.Request.Context(), AutomaticInput{
		ProjectID:             c.Param("project_id"),
		DocumentName:          body.DocumentName,
		SourceType:            lineage.SourceType(body.SourceType),
		RawText:               body.RawText,
		ChunkingMode:          chunkingMode,
		ContextualizationMode: contextMode,
		ChunkOptions:          chunk.DeterministicOptions{MaxChunkChars: 1800, MinChunkChars: 200, OverlapChars: 150},
		AgenticChatClient:     agenticClient,
		AgenticModel:          body.AgenticModel,
		HeaderChatClient:      headerClient,
		HeaderModel:           body.HeaderModel,
		EmbeddingModel:        body.EmbeddingModel,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

type manualChunkBody struct {
	ChunkIndex    int    `json:"chunk_index"`
	StartChar     int    `json:"start_char"`
	EndChar       int    `json:"end_char"`
	Text          string `json:"text" binding:"required"`
	ContextHeader string `json:"context_header"`
}

func (h *Handler) ingestManual(c *gin.Context) {
	var body struct {
		DocumentName   string            `json:"document_name" binding:"required"`
		SourceType     string            `json:"source_type" binding:"required"`
		NormalizedText string            `json:"normalized_text" binding:"required"`
		ApprovedChunks []manualChunkBody `json:"approved_chunks" binding:"required"`
		EmbeddingModel string            `json:"embedding_model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(apierr.Validation("invalid manual ingest request: %v", err))
		return
	}

	chunks := make([]ManualChunk, len(body.ApprovedChunks))
	for i, mc := range body.ApprovedChunks {
		chunks[i] = ManualChunk{ChunkIndex: mc.ChunkIndex, StartChar: mc.StartChar, EndChar: mc.EndChar, Text: mc.Text, ContextHeader: mc.ContextHeader}
	}

	doc, err := h.svc.IngestManual(c.Request.Context(), ManualInput{
		ProjectID:      c.Param("project_id"),
		DocumentName:   body.DocumentName,
		SourceType:     lineage.SourceType(body.SourceType),
		NormalizedText: body.NormalizedText,
		ApprovedChunks: chunks,
		EmbeddingModel: body.EmbeddingModel,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// ingestUpload accepts a raw file upload (multipart form field "file") and
// runs it through the automatic workflow with template contextualization,
// per unified-rag-service/main.go's documentUploadHandler.
func (h *Handler) ingestUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(apierr.Validation("missing file field: %v", err))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.Error(apierr.Validation("cannot open uploaded file: %v", err))
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		c.Error(apierr.Validation("cannot read uploaded file: %v", err))
		return
	}

	embeddingModel := c.PostForm("embedding_model")
	if embeddingModel == "" {
		c.Error(apierr.Validation("embedding_model is required"))
		return
	}

	doc, err := h.svc.Ingest(c.Request.Context(), AutomaticInput{
		ProjectID:             c.Param("project_id"),
		DocumentName:          fileHeader.Filename,
		SourceType:            lineage.SourceUpload,
		RawText:               string(raw),
		ChunkingMode:          lineage.ChunkingDeterministic,
		ContextualizationMode: lineage.ContextualizationTemplate,
		ChunkOptions:          chunk.DeterministicOptions{MaxChunkChars: 1800, MinChunkChars: 200, OverlapChars: 150},
		EmbeddingModel:        embeddingModel,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}
