package ingestion

import (
	"context"
	"testing"

	"ragsuite/internal/lineage"
	"ragsuite/internal/pipeline/chunk"
	"ragsuite/internal/store"
	"ragsuite/internal/vectorstore"
)

type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, nil
}

type fakeVectors struct {
	ensuredCollection string
	ensuredDim        uint64
	upserted          []vectorstore.Point
}

func (f *fakeVectors) EnsureCollection(ctx context.Context, collectionName string, dim uint64) error {
	f.ensuredCollection = collectionName
	f.ensuredDim = dim
	return nil
}

func (f *fakeVectors) Upsert(ctx context.Context, collectionName string, points []vectorstore.Point) error {
	f.upserted = append(f.upserted, points...)
	return nil
}

type fakeBlobs struct {
	archived bool
	key      string
}

func (f *fakeBlobs) Archive(ctx context.Context, projectID, documentID string, raw []byte) (string, error) {
	f.archived = true
	f.key = projectID + "/" + documentID + "/raw"
	return f.key, nil
}

func newTestLineage(t *testing.T) *lineage.Store {
	t.Helper()
	db, err := store.Open(t.TempDir(), "ingestion_test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ls, err := lineage.NewStore(db)
	if err != nil {
		t.Fatalf("new lineage store: %v", err)
	}
	return ls
}

func TestIngestAutomaticDeterministicTemplate(t *testing.T) {
	ls := newTestLineage(t)
	if _, err := ls.CreateProject(context.Background(), "proj-1", "Contracts", "", "rag_contracts"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	vectors := &fakeVectors{}
	blobs := &fakeBlobs{}
	svc := NewService(ls, vectors, &fakeEmbedder{dim: 4}, blobs, nil)

	text := "First paragraph of the agreement.\n\nSecond paragraph with more detail about termination."
	doc, err := svc.Ingest(context.Background(), AutomaticInput{
		ProjectID:             "proj-1",
		DocumentName:          "agreement.pdf",
		SourceType:            lineage.SourceUpload,
		RawText:               text,
		ChunkingMode:          lineage.ChunkingDeterministic,
		ContextualizationMode: lineage.ContextualizationTemplate,
		ChunkOptions:          chunk.DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100, OverlapChars: 0},
		EmbeddingModel:        "nomic-embed-text",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected document id to be minted")
	}
	if vectors.ensuredCollection != "rag_contracts" {
		t.Fatalf("expected collection ensured, got %q", vectors.ensuredCollection)
	}
	if vectors.ensuredDim != 4 {
		t.Fatalf("expected dim 4, got %d", vectors.ensuredDim)
	}
	if len(vectors.upserted) == 0 {
		t.Fatal("expected points upserted")
	}
	for _, p := range vectors.upserted {
		if p.Payload["document_name"] != "agreement.pdf" {
			t.Fatalf("expected document_name payload set, got %+v", p.Payload)
		}
		if p.Payload["chunk_id"] == "" {
			t.Fatalf("expected chunk_id payload set, got %+v", p.Payload)
		}
	}

	stored, err := ls.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if stored.Name != "agreement.pdf" {
		t.Fatalf("unexpected stored document: %+v", stored)
	}

	candidates, err := ls.LoadApprovedChunks(context.Background(), "proj-1", nil)
	if err != nil {
		t.Fatalf("load approved chunks: %v", err)
	}
	if len(candidates) != len(vectors.upserted) {
		t.Fatalf("expected chunk count to match upserted points, got %d vs %d", len(candidates), len(vectors.upserted))
	}
	if !blobs.archived {
		t.Fatal("expected raw blob archived for upload source type")
	}
}

func TestIngestAutomaticSkipsArchivalForNonUploadSource(t *testing.T) {
	ls := newTestLineage(t)
	if _, err := ls.CreateProject(context.Background(), "proj-1", "Contracts", "", "rag_contracts"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	blobs := &fakeBlobs{}
	svc := NewService(ls, &fakeVectors{}, &fakeEmbedder{dim: 2}, blobs, nil)

	_, err := svc.Ingest(context.Background(), AutomaticInput{
		ProjectID:             "proj-1",
		DocumentName:          "api-doc",
		SourceType:            lineage.SourceAPI,
		RawText:               "some api-provided content here.",
		ChunkingMode:          lineage.ChunkingDeterministic,
		ContextualizationMode: lineage.ContextualizationDisabled,
		ChunkOptions:          chunk.DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100},
		EmbeddingModel:        "m",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if blobs.archived {
		t.Fatal("expected no archival for non-upload source type")
	}
}

func TestIngestManualEmbedsAndPersistsApprovedChunks(t *testing.T) {
	ls := newTestLineage(t)
	if _, err := ls.CreateProject(context.Background(), "proj-1", "Contracts", "", "rag_contracts"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	vectors := &fakeVectors{}
	svc := NewService(ls, vectors, &fakeEmbedder{dim: 3}, nil, nil)

	doc, err := svc.IngestManual(context.Background(), ManualInput{
		ProjectID:      "proj-1",
		DocumentName:   "manual.txt",
		SourceType:     lineage.SourceManual,
		NormalizedText: "chunk one text. chunk two text.",
		ApprovedChunks: []ManualChunk{
			{ChunkIndex: 0, StartChar: 0, EndChar: 15, Text: "chunk one text."},
			{ChunkIndex: 1, StartChar: 16, EndChar: 32, Text: "chunk two text.", ContextHeader: "Section 2"},
		},
		EmbeddingModel: "m",
	})
	if err != nil {
		t.Fatalf("ingest manual: %v", err)
	}

	candidates, err := ls.LoadApprovedChunks(context.Background(), "proj-1", []string{doc.ID})
	if err != nil {
		t.Fatalf("load approved chunks: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 approved chunks, got %d", len(candidates))
	}
	if len(vectors.upserted) != 2 {
		t.Fatalf("expected 2 points upserted, got %d", len(vectors.upserted))
	}
}

func TestIngestRejectsUnknownProject(t *testing.T) {
	ls := newTestLineage(t)
	svc := NewService(ls, &fakeVectors{}, &fakeEmbedder{dim: 2}, nil, nil)

	_, err := svc.Ingest(context.Background(), AutomaticInput{
		ProjectID:             "missing",
		DocumentName:          "x",
		SourceType:            lineage.SourceAPI,
		RawText:               "text",
		ChunkingMode:          lineage.ChunkingDeterministic,
		ContextualizationMode: lineage.ContextualizationDisabled,
		ChunkOptions:          chunk.DeterministicOptions{MaxChunkChars: 500, MinChunkChars: 100},
		EmbeddingModel:        "m",
	})
	if err == nil {
		t.Fatal("expected error for unknown project")
	}
}
