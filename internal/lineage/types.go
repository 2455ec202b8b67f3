// Package lineage implements the SQL-authoritative Project/Document/Chunk
// store shared by the ingestion control plane (writer) and the hybrid
// retrieval service (reader), per spec.md §3 Data model and Ownership.
package lineage

import (
	"strconv"
	"time"
)

// WorkflowMode selects automatic vs. manual document ingestion.
type WorkflowMode string

const (
	WorkflowAutomatic WorkflowMode = "automatic"
	WorkflowManual    WorkflowMode = "manual"
)

// ChunkingMode selects how a document's chunks were produced.
type ChunkingMode string

const (
	ChunkingDeterministic ChunkingMode = "deterministic"
	ChunkingAgentic       ChunkingMode = "agentic"
	ChunkingManual        ChunkingMode = "manual"
)

// ContextualizationMode selects how a chunk's context_header was produced.
type ContextualizationMode string

const (
	ContextualizationLLM      ContextualizationMode = "llm"
	ContextualizationTemplate ContextualizationMode = "template"
	ContextualizationManual   ContextualizationMode = "manual"
	ContextualizationDisabled ContextualizationMode = "disabled"
)

// SourceType records how a document entered the system, per SPEC_FULL.md's
// supplemented Document fields.
type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceAPI    SourceType = "api"
	SourceManual SourceType = "manual"
)

// Project owns documents and a vector collection.
type Project struct {
	ID             string
	Name           string
	Description    string
	CollectionName string
	CreatedAt      time.Time
}

// Document belongs to a project and owns chunks.
type Document struct {
	ID                    string
	ProjectID             string
	Name                  string
	SourceType            SourceType
	RawText               string
	NormalizedText        string
	Workflow              WorkflowMode
	ChunkingMode          ChunkingMode
	ContextualizationMode ContextualizationMode
	NormalizationVersion  string
	ChunkingVersion       string
	ContextualizationVer  string
	EmbeddingModel        string
	RawBlobKey            *string
	CreatedAt             time.Time
}

// Chunk is a contiguous text slice of a document used as a retrieval unit.
// Invariant: 0 <= StartChar < EndChar, ChunkIndex contiguous from 0 per
// document, ContextualizedChunk non-empty.
type Chunk struct {
	ID                  string
	DocumentID          string
	ChunkIndex          int
	StartChar           int
	EndChar             int
	Rationale           string
	RawChunk            string
	NormalizedChunk     string
	ContextHeader       string
	ContextualizedChunk string
	Approved            bool
	VectorPointID        string
	CreatedAt           time.Time
}

// ChunkKey is the composite identity used as the retrieval candidate key
// and as the vector payload's chunk_id, per spec.md §3.
func (c Chunk) ChunkKey() string {
	return ChunkKey(c.DocumentID, c.ChunkIndex)
}

// ChunkKey formats the "{document_id}:{chunk_index}" composite id.
func ChunkKey(documentID string, chunkIndex int) string {
	return documentID + ":" + strconv.Itoa(chunkIndex)
}
