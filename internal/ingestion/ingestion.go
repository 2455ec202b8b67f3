// Package ingestion implements the automatic and manual ingestion
// workflows: normalize → chunk → header → embed → upsert → persist
// (spec.md §4.9).
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragsuite/internal/lineage"
	"ragsuite/internal/pipeline/chunk"
	"ragsuite/internal/pipeline/header"
	"ragsuite/internal/pipeline/normalize"
	"ragsuite/internal/vectorstore"
)

// Embedder generates embeddings for a batch of texts, in order.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// VectorWriter is the subset of internal/vectorstore.Store this package
// depends on.
type VectorWriter interface {
	EnsureCollection(ctx context.Context, collectionName string, dim uint64) error
	Upsert(ctx context.Context, collectionName string, points []vectorstore.Point) error
}

// BlobArchiver archives raw uploaded document bytes, best-effort.
type BlobArchiver interface {
	Archive(ctx context.Context, projectID, documentID string, raw []byte) (string, error)
}

// Service wires the pipeline stages and persistence.
type Service struct {
	lineage  *lineage.Store
	vectors  VectorWriter
	embedder Embedder
	blobs    BlobArchiver
	logger   *zap.Logger

	// ChatClient backs the agentic chunker and LLM header generator when
	// a caller selects those modes. Optional: when the client passed in is
	// nil, Ingest falls back to deterministic chunking and contextualize to
	// template headers; chunk.Agentic and header.Generate themselves call
	// the client without a nil check.
	ChatClient chunk.ChatCompleter
}

func NewService(lineageStore *lineage.Store, vectors VectorWriter, embedder Embedder, blobs BlobArchiver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lineage: lineageStore, vectors: vectors, embedder: embedder, blobs: blobs, logger: logger}
}

// AutomaticInput drives the full pipeline for a newly uploaded document.
type AutomaticInput struct {
	ProjectID              string
	DocumentName           string
	SourceType             lineage.SourceType
	RawText                string
	ChunkingMode           lineage.ChunkingMode
	ContextualizationMode  lineage.ContextualizationMode
	NormalizationOptions   normalize.Options
	ChunkOptions           chunk.DeterministicOptions
	AgenticChatClient      chunk.ChatCompleter
	AgenticModel           string
	HeaderChatClient       chunk.ChatCompleter
	HeaderModel            string
	EmbeddingModel         string
	NormalizationVersion   string
	ChunkingVersion        string
	ContextualizationVer   string
}

// Ingest runs the automatic workflow: optional normalize, chunk
// (deterministic or agentic), optional header, embed, upsert, persist.
func (s *Service) Ingest(ctx context.Context, in AutomaticInput) (lineage.Document, error) {
	normResult := normalize.Normalize(in.RawText, in.NormalizationOptions)

	var candidates []chunk.Candidate
	switch in.ChunkingMode {
	case lineage.ChunkingAgentic:
		if in.AgenticChatClient == nil {
			s.logger.Warn("agentic chunking requested without a chat client, falling back to deterministic")
			candidates = chunk.Deterministic(normResult.Text, in.ChunkOptions)
		} else {
			candidates = chunk.Agentic(ctx, in.AgenticChatClient, in.AgenticModel, normResult.Text, in.ChunkOptions, s.logger)
		}
	default:
		candidates = chunk.Deterministic(normResult.Text, in.ChunkOptions)
	}

	project, err := s.lineage.GetProject(ctx, in.ProjectID)
	if err != nil {
		return lineage.Document{}, err
	}

	documentID := uuid.NewString()

	contextualized, headers, err := s.contextualize(ctx, in.ContextualizationMode, in.HeaderChatClient, in.HeaderModel, in.DocumentName, normResult.Text, candidates)
	if err != nil {
		return lineage.Document{}, err
	}

	chunks, err := s.embedAndUpsert(ctx, project, documentID, in.DocumentName, in.SourceType, candidates, contextualized, headers, in.EmbeddingModel)
	if err != nil {
		return lineage.Document{}, err
	}

	doc := lineage.Document{
		ID:                    documentID,
		ProjectID:             in.ProjectID,
		Name:                  in.DocumentName,
		SourceType:            in.SourceType,
		RawText:               in.RawText,
		NormalizedText:        normResult.Text,
		Workflow:              lineage.WorkflowAutomatic,
		ChunkingMode:          in.ChunkingMode,
		ContextualizationMode: in.ContextualizationMode,
		NormalizationVersion:  in.NormalizationVersion,
		ChunkingVersion:       in.ChunkingVersion,
		ContextualizationVer:  in.ContextualizationVer,
		EmbeddingModel:        in.EmbeddingModel,
		CreatedAt:             time.Now().UTC(),
	}
	if doc, err = s.lineage.CreateDocument(ctx, doc); err != nil {
		return lineage.Document{}, fmt.Errorf("persist document: %w", err)
	}
	if err := s.lineage.InsertChunks(ctx, chunks); err != nil {
		return lineage.Document{}, fmt.Errorf("persist chunks: %w", err)
	}

	s.archiveRawBlob(ctx, in.SourceType, in.ProjectID, documentID, in.RawText)

	return doc, nil
}

// ManualChunk is a caller-approved chunk boundary for the manual workflow.
type ManualChunk struct {
	ChunkIndex    int
	StartChar     int
	EndChar       int
	Text          string
	ContextHeader string
}

// ManualInput supplies pre-normalized text and pre-approved chunks; only
// embed/upsert/persist run, per spec.md §4.9.
type ManualInput struct {
	ProjectID      string
	DocumentName   string
	SourceType     lineage.SourceType
	NormalizedText string
	ApprovedChunks []ManualChunk
	EmbeddingModel string
}

// IngestManual embeds and persists caller-supplied approved chunks without
// running normalize/chunk/header.
func (s *Service) IngestManual(ctx context.Context, in ManualInput) (lineage.Document, error) {
	project, err := s.lineage.GetProject(ctx, in.ProjectID)
	if err != nil {
		return lineage.Document{}, err
	}

	documentID := uuid.NewString()

	candidates := make([]chunk.Candidate, len(in.ApprovedChunks))
	contextualized := make([]string, len(in.ApprovedChunks))
	headers := make([]string, len(in.ApprovedChunks))
	for i, mc := range in.ApprovedChunks {
		candidates[i] = chunk.Candidate{ChunkIndex: mc.ChunkIndex, StartChar: mc.StartChar, EndChar: mc.EndChar, Text: mc.Text}
		headers[i] = mc.ContextHeader
		if mc.ContextHeader != "" {
			contextualized[i] = mc.ContextHeader + "\n\n" + mc.Text
		} else {
			contextualized[i] = mc.Text
		}
	}

	chunks, err := s.embedAndUpsert(ctx, project, documentID, in.DocumentName, in.SourceType, candidates, contextualized, headers, in.EmbeddingModel)
	if err != nil {
		return lineage.Document{}, err
	}

	doc := lineage.Document{
		ID:                    documentID,
		ProjectID:             in.ProjectID,
		Name:                  in.DocumentName,
		SourceType:            in.SourceType,
		NormalizedText:        in.NormalizedText,
		Workflow:              lineage.WorkflowManual,
		ChunkingMode:          lineage.ChunkingManual,
		ContextualizationMode: lineage.ContextualizationManual,
		EmbeddingModel:        in.EmbeddingModel,
		CreatedAt:             time.Now().UTC(),
	}
	if doc, err = s.lineage.CreateDocument(ctx, doc); err != nil {
		return lineage.Document{}, fmt.Errorf("persist document: %w", err)
	}
	if err := s.lineage.InsertChunks(ctx, chunks); err != nil {
		return lineage.Document{}, fmt.Errorf("persist chunks: %w", err)
	}

	return doc, nil
}

func (s *Service) contextualize(ctx context.Context, mode lineage.ContextualizationMode, client chunk.ChatCompleter, model, documentName, fullNormalized string, candidates []chunk.Candidate) ([]string, []string, error) {
	if mode == lineage.ContextualizationDisabled {
		contextualized := make([]string, len(candidates))
		for i, c := range candidates {
			contextualized[i] = c.Text
		}
		return contextualized, make([]string, len(candidates)), nil
	}

	headerMode := header.ModeTemplate
	if mode == lineage.ContextualizationLLM && client != nil {
		headerMode = header.ModeLLM
	} else if mode == lineage.ContextualizationLLM {
		s.logger.Warn("llm header generation requested without a chat client, falling back to template")
	}

	inputs := make([]header.Input, len(candidates))
	for i, c := range candidates {
		inputs[i] = header.Input{DocumentName: documentName, FullNormalized: fullNormalized, ChunkIndex: c.ChunkIndex, ChunkText: c.Text}
	}

	outputs, err := header.Generate(ctx, client, model, headerMode, inputs)
	if err != nil {
		return nil, nil, err
	}

	contextualized := make([]string, len(outputs))
	headers := make([]string, len(outputs))
	for i, o := range outputs {
		contextualized[i] = o.Contextualized
		headers[i] = o.Header
	}
	return contextualized, headers, nil
}

func (s *Service) embedAndUpsert(ctx context.Context, project lineage.Project, documentID, documentName string, sourceType lineage.SourceType, candidates []chunk.Candidate, contextualized, headers []string, embeddingModel string) ([]lineage.Chunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, embeddingModel, contextualized)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(candidates) {
		return nil, fmt.Errorf("embedding count %d does not match chunk count %d", len(vectors), len(candidates))
	}

	dim := uint64(len(vectors[0]))
	if err := s.vectors.EnsureCollection(ctx, project.CollectionName, dim); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chunks := make([]lineage.Chunk, len(candidates))
	points := make([]vectorstore.Point, len(candidates))

	for i, c := range candidates {
		pointID := uuid.NewString()
		chunkID := lineage.ChunkKey(documentID, c.ChunkIndex)

		chunks[i] = lineage.Chunk{
			ID:                  uuid.NewString(),
			DocumentID:          documentID,
			ChunkIndex:          c.ChunkIndex,
			StartChar:           c.StartChar,
			EndChar:             c.EndChar,
			Rationale:           c.Rationale,
			RawChunk:            c.Text,
			NormalizedChunk:     c.Text,
			ContextHeader:       headers[i],
			ContextualizedChunk: contextualized[i],
			Approved:            true,
			VectorPointID:       pointID,
			CreatedAt:           now,
		}

		points[i] = vectorstore.Point{
			ID:     pointID,
			Vector: vectors[i],
			Payload: map[string]any{
				"project_id":    project.ID,
				"document_id":   documentID,
				"document_name": documentName,
				"chunk_id":      chunkID,
				"chunk_index":   c.ChunkIndex,
				"start_char":    c.StartChar,
				"end_char":      c.EndChar,
				"source_type":   string(sourceType),
				"indexed_at":    now.Format(time.RFC3339),
			},
		}
	}

	if err := s.vectors.Upsert(ctx, project.CollectionName, points); err != nil {
		return nil, err
	}

	return chunks, nil
}

func (s *Service) archiveRawBlob(ctx context.Context, sourceType lineage.SourceType, projectID, documentID, rawText string) {
	if s.blobs == nil || sourceType != lineage.SourceUpload || rawText == "" {
		return
	}
	key, err := s.blobs.Archive(ctx, projectID, documentID, []byte(rawText))
	if err != nil {
		s.logger.Warn("raw blob archival failed", zap.String("document_id", documentID), zap.Error(err))
		return
	}
	if err := s.lineage.SetDocumentRawBlobKey(ctx, documentID, key); err != nil {
		s.logger.Warn("failed to stamp raw_blob_key", zap.String("document_id", documentID), zap.Error(err))
	}
}
