package retrieval

import (
	"context"
	"testing"

	"ragsuite/internal/lineage"
	"ragsuite/internal/store"
	"ragsuite/internal/vectorstore"
)

type fakeEmbedder struct {
	calls int
	vec   []float32
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	f.calls++
	return f.vec, nil
}

type fakeVectors struct {
	hits []vectorstore.SearchHit
}

func (f *fakeVectors) Search(ctx context.Context, collectionName string, queryVector []float32, limit uint64, documentIDFilter []string) ([]vectorstore.SearchHit, error) {
	return f.hits, nil
}

func setupLineage(t *testing.T) (*lineage.Store, lineage.Project, lineage.Document) {
	t.Helper()
	db, err := store.Open(t.TempDir(), "retrieval_test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ls, err := lineage.NewStore(db)
	if err != nil {
		t.Fatalf("new lineage store: %v", err)
	}
	ctx := context.Background()

	p, err := ls.CreateProject(ctx, "proj-1", "Contracts", "", "rag_contracts")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	doc, err := ls.CreateDocument(ctx, lineage.Document{
		ID: "doc-1", ProjectID: p.ID, Name: "agreement.pdf",
		SourceType: lineage.SourceUpload, Workflow: lineage.WorkflowAutomatic,
		ChunkingMode: lineage.ChunkingDeterministic, ContextualizationMode: lineage.ContextualizationTemplate,
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	if err := ls.InsertChunks(ctx, []lineage.Chunk{
		{ID: "c0", DocumentID: doc.ID, ChunkIndex: 0, StartChar: 0, EndChar: 20,
			ContextHeader:       "This clause governs termination notice periods.",
			ContextualizedChunk: "termination requires thirty days notice", Approved: true, VectorPointID: "vp0"},
		{ID: "c1", DocumentID: doc.ID, ChunkIndex: 1, StartChar: 20, EndChar: 40,
			ContextualizedChunk: "payment terms are net thirty", Approved: true, VectorPointID: "vp1"},
	}); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	return ls, p, doc
}

func TestRetrieveFusesDenseAndSparseAndAssignsSourceIDs(t *testing.T) {
	ls, _, doc := setupLineage(t)
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	vectors := &fakeVectors{hits: []vectorstore.SearchHit{
		{Payload: map[string]any{"chunk_id": doc.ID + ":0"}, Score: 0.9},
		{Payload: map[string]any{"chunk_id": doc.ID + ":1"}, Score: 0.2},
	}}

	svc := NewService(ls, vectors, embedder, nil)
	result, err := svc.Retrieve(context.Background(), Params{
		ProjectID: "proj-1", Query: "notice period termination",
		EmbeddingModel: "nomic-embed-text", DenseTopK: 10, SparseTopK: 10, TopK: 10, DenseWeight: 0.5,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(result.Sources))
	}
	if result.Sources[0].SourceID != "S1" || result.Sources[1].SourceID != "S2" {
		t.Fatalf("expected sequential source ids, got %+v", result.Sources)
	}
	if result.Sources[0].HybridScore < result.Sources[1].HybridScore {
		t.Fatalf("expected descending hybrid score, got %+v", result.Sources)
	}
	if len(result.Documents) != 1 || result.Documents[0].DocumentID != doc.ID {
		t.Fatalf("expected one aggregated document, got %+v", result.Documents)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected embedder called once, got %d", embedder.calls)
	}
	if result.Sources[0].ContextHeader != "This clause governs termination notice periods." {
		t.Fatalf("expected context header to survive retrieval, got %+v", result.Sources[0])
	}
}

func TestRetrieveValidatesDocumentOwnership(t *testing.T) {
	ls, _, _ := setupLineage(t)
	embedder := &fakeEmbedder{vec: []float32{0.1}}
	vectors := &fakeVectors{}

	svc := NewService(ls, vectors, embedder, nil)
	_, err := svc.Retrieve(context.Background(), Params{
		ProjectID: "proj-1", DocumentIDs: []string{"not-owned"}, Query: "q",
		EmbeddingModel: "m", DenseTopK: 10, SparseTopK: 10, TopK: 10, DenseWeight: 0.5,
	})
	if err == nil {
		t.Fatal("expected ownership validation error")
	}
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	ls, _, _ := setupLineage(t)
	svc := NewService(ls, &fakeVectors{}, &fakeEmbedder{}, nil)
	if _, err := svc.Retrieve(context.Background(), Params{ProjectID: "proj-1", Query: ""}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestRetrieveNoCandidatesReturnsEmptyResult(t *testing.T) {
	db, err := store.Open(t.TempDir(), "empty_test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ls, err := lineage.NewStore(db)
	if err != nil {
		t.Fatalf("new lineage store: %v", err)
	}
	if _, err := ls.CreateProject(context.Background(), "proj-1", "Empty", "", "rag_empty"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	svc := NewService(ls, &fakeVectors{}, &fakeEmbedder{vec: []float32{0.1}}, nil)
	result, err := svc.Retrieve(context.Background(), Params{
		ProjectID: "proj-1", Query: "anything", EmbeddingModel: "m",
		DenseTopK: 10, SparseTopK: 10, TopK: 10, DenseWeight: 0.5,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", result.Sources)
	}
}
