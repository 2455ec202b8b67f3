package orchestrator

import (
	"context"
	"strings"
	"testing"

	"ragsuite/internal/checkpoint"
	"ragsuite/internal/lineage"
	"ragsuite/internal/retrieval"
	"ragsuite/internal/store"
	"ragsuite/internal/vectorstore"
)

type fakeEmbedder struct{ vec []float32 }

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, model, query string) ([]float32, error) {
	return f.vec, nil
}

type fakeVectors struct{ hits []vectorstore.SearchHit }

func (f *fakeVectors) Search(ctx context.Context, collectionName string, queryVector []float32, limit uint64, documentIDFilter []string) ([]vectorstore.SearchHit, error) {
	return f.hits, nil
}

type fakeChat struct {
	reply        string
	streamParts  []string
	lastMessages []ChatMessage
}

func (f *fakeChat) Chat(ctx context.Context, model string, messages []ChatMessage) (ChatResult, error) {
	f.lastMessages = messages
	return ChatResult{Content: f.reply}, nil
}

func (f *fakeChat) ChatStream(ctx context.Context, model string, messages []ChatMessage, onChunk func(StreamChunk) error) error {
	for _, part := range f.streamParts {
		if err := onChunk(StreamChunk{ContentDelta: part}); err != nil {
			return err
		}
	}
	return onChunk(StreamChunk{Done: true})
}

type fakeReranker struct {
	results []RerankResult
}

func (f *fakeReranker) Rerank(ctx context.Context, model, query string, documents []string, topN *int) ([]RerankResult, error) {
	return f.results, nil
}

func setupRetrieval(t *testing.T) *retrieval.Service {
	t.Helper()
	db, err := store.Open(t.TempDir(), "orchestrator_test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ls, err := lineage.NewStore(db)
	if err != nil {
		t.Fatalf("new lineage store: %v", err)
	}
	ctx := context.Background()
	if _, err := ls.CreateProject(ctx, "proj-1", "Contracts", "", "rag_contracts"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	doc, err := ls.CreateDocument(ctx, lineage.Document{
		ID: "doc-1", ProjectID: "proj-1", Name: "agreement.pdf",
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
	}); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	vectors := &fakeVectors{hits: []vectorstore.SearchHit{
		{Payload: map[string]any{"chunk_id": doc.ID + ":0"}, Score: 0.9},
	}}
	return retrieval.NewService(ls, vectors, &fakeEmbedder{vec: []float32{0.1, 0.2}}, nil)
}

func newTestCheckpoint(t *testing.T) *checkpoint.Store {
	t.Helper()
	db, err := store.Open(t.TempDir(), "checkpoint_test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	cs, err := checkpoint.NewStore(db)
	if err != nil {
		t.Fatalf("new checkpoint store: %v", err)
	}
	return cs
}

func baseRequest() GenerateRequest {
	return GenerateRequest{
		ProjectID: "proj-1", Query: "what is the notice period?",
		ChatModel: "llama3", EmbeddingModel: "nomic-embed-text",
		TopK: 10, DenseTopK: 10, SparseTopK: 10, DenseWeight: 0.5,
	}
}

func TestGenerateBatchExtractsCitations(t *testing.T) {
	retrievalSvc := setupRetrieval(t)
	chat := &fakeChat{reply: "Termination requires thirty days notice [S1]."}
	o := New(retrievalSvc, nil, chat, nil, DefaultPromptSet(), nil)

	result, err := o.Generate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0].SourceID != "S1" {
		t.Fatalf("expected one source S1, got %+v", result.Sources)
	}
	if len(result.CitationsUsed) != 1 || result.CitationsUsed[0] != "S1" {
		t.Fatalf("expected citation S1 used, got %+v", result.CitationsUsed)
	}
	if result.Answer == "" {
		t.Fatal("expected non-empty answer")
	}
	if result.Sources[0].ContextHeader != "This clause governs termination notice periods." {
		t.Fatalf("expected context header threaded onto the ranked source, got %+v", result.Sources[0])
	}

	var sawPrompt string
	for _, m := range chat.lastMessages {
		if m.Role == "user" {
			sawPrompt = m.Content
		}
	}
	if !strings.Contains(sawPrompt, "<context_header>This clause governs termination notice periods.</context_header>") {
		t.Fatalf("expected the user prompt's XML context to carry the context header, got %q", sawPrompt)
	}
}

func TestGenerateWithRerankReassignsSourceIDs(t *testing.T) {
	retrievalSvc := setupRetrieval(t)
	reranker := &fakeReranker{results: []RerankResult{{Index: 0, RelevanceScore: 0.99}}}
	chat := &fakeChat{reply: "Answer [S1]."}
	o := New(retrievalSvc, reranker, chat, nil, DefaultPromptSet(), nil)

	req := baseRequest()
	model := "bge-reranker-v2-m3"
	req.RerankModel = &model
	req.RerankCandidateCount = 5
	req.RerankTopN = 5

	result, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0].RerankScore == nil {
		t.Fatalf("expected reranked source with score, got %+v", result.Sources)
	}
}

func TestGenerateSessionModePersistsCheckpoint(t *testing.T) {
	retrievalSvc := setupRetrieval(t)
	cs := newTestCheckpoint(t)
	chat := &fakeChat{reply: "Thirty days [S1]."}
	o := New(retrievalSvc, nil, chat, cs, DefaultPromptSet(), nil)

	req := baseRequest()
	req.Mode = ModeSession
	req.SessionID = "sess-1"

	if _, err := o.Generate(context.Background(), req); err != nil {
		t.Fatalf("generate: %v", err)
	}

	thread := checkpoint.ThreadID("rag", "proj-1", "sess-1")
	history, err := cs.Load(context.Background(), thread)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user+assistant turn persisted, got %d messages", len(history))
	}

	// A second turn should see the first in history.
	req2 := req
	req2.Query = "and the payment terms?"
	if _, err := o.Generate(context.Background(), req2); err != nil {
		t.Fatalf("generate turn 2: %v", err)
	}
	history, err = cs.Load(context.Background(), thread)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages after two turns, got %d", len(history))
	}
}

func TestGenerateStreamEmitsMetaDeltaDone(t *testing.T) {
	retrievalSvc := setupRetrieval(t)
	chat := &fakeChat{streamParts: []string{"Thirty ", "days ", "[S1]."}}
	o := New(retrievalSvc, nil, chat, nil, DefaultPromptSet(), nil)

	var events []StreamEvent
	err := o.GenerateStream(context.Background(), baseRequest(), func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("generate stream: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least meta+done events, got %d", len(events))
	}
	meta := events[0]
	if meta.Type != StreamMeta {
		t.Fatalf("expected first event meta, got %s", meta.Type)
	}
	if meta.ProjectID != "proj-1" || meta.Query != "what is the notice period?" ||
		meta.ChatModel != "llama3" || meta.EmbeddingModel != "nomic-embed-text" {
		t.Fatalf("expected meta to carry the request envelope, got %+v", meta)
	}

	for _, ev := range events[1 : len(events)-1] {
		if ev.Type != StreamDelta {
			t.Fatalf("expected only delta events between meta and done, got %s", ev.Type)
		}
		if ev.Content == "" {
			t.Fatalf("expected delta event to carry content, got %+v", ev)
		}
	}

	last := events[len(events)-1]
	if last.Type != StreamDone {
		t.Fatalf("expected terminal done event, got %s", last.Type)
	}
	if last.ProjectID != "proj-1" || last.Query != "what is the notice period?" ||
		last.ChatModel != "llama3" || last.EmbeddingModel != "nomic-embed-text" {
		t.Fatalf("expected done to carry the request envelope, got %+v", last)
	}
	if len(last.Documents) != 1 {
		t.Fatalf("expected one deduplicated document on done, got %+v", last.Documents)
	}
	if len(last.CitationsUsed) != 1 || last.CitationsUsed[0] != "S1" {
		t.Fatalf("expected citation S1 extracted from concatenated stream, got %+v", last.CitationsUsed)
	}
}

func TestExtractCitationsDropsInactiveAndDedupes(t *testing.T) {
	active := map[string]bool{"S1": true, "S2": true}
	used, stripped := ExtractCitations("Per [S1] and [S9], also [S1] again [S2].", active)
	if len(used) != 2 || used[0] != "S1" || used[1] != "S2" {
		t.Fatalf("expected [S1 S2] in first-seen order, got %+v", used)
	}
	if stripped != "Per  and , also  again ." {
		t.Fatalf("unexpected stripped text: %q", stripped)
	}
}

func TestBuildSourceSetXMLEmpty(t *testing.T) {
	if got := BuildSourceSetXML(nil); got != `<source_set empty="true" />` {
		t.Fatalf("unexpected empty xml: %q", got)
	}
}
