package session

import (
	"context"
	"strings"
	"testing"

	"ragsuite/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(t.TempDir(), "sessions.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateSession(ctx, "proj-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if rec.Title != defaultTitle {
		t.Fatalf("expected default title, got %q", rec.Title)
	}

	got, err := s.GetSession(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ID != rec.ID || got.ProjectID != "proj-1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Messages) != 0 {
		t.Fatalf("expected no messages yet, got %d", len(got.Messages))
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestAppendTurnCreatesSessionAndDerivesTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.AppendTurn(ctx, "", "proj-1", AppendTurnInput{
		UserContent:      "What does the contract say about termination?\nAnd notice periods?",
		AssistantContent: "It requires 30 days notice.",
		SourceIDs:        []string{"S1", "S2"},
		LatestResponse:   "It requires 30 days notice.",
	})
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected session id to be minted")
	}
	if len(rec.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(rec.Messages))
	}
	if rec.Messages[0].Role != RoleUser || rec.Messages[1].Role != RoleAssistant {
		t.Fatalf("unexpected message roles: %+v", rec.Messages)
	}
	if strings.Contains(rec.Title, "\n") {
		t.Fatalf("expected newline collapsed in title, got %q", rec.Title)
	}
	if rec.Title == defaultTitle {
		t.Fatal("expected title to be derived from first user message")
	}
	if rec.SelectedSourceID == nil || *rec.SelectedSourceID != "S1" {
		t.Fatalf("expected selected_source_id S1, got %+v", rec.SelectedSourceID)
	}
	if rec.LatestResponse == nil || *rec.LatestResponse != "It requires 30 days notice." {
		t.Fatalf("unexpected latest response: %+v", rec.LatestResponse)
	}

	// Second turn keeps the derived title and appends further messages.
	rec2, err := s.AppendTurn(ctx, rec.ID, "proj-1", AppendTurnInput{
		UserContent:      "Thanks",
		AssistantContent: "You're welcome",
	})
	if err != nil {
		t.Fatalf("append second turn: %v", err)
	}
	if rec2.Title != rec.Title {
		t.Fatalf("expected title unchanged on later turns, got %q vs %q", rec2.Title, rec.Title)
	}
	if len(rec2.Messages) != 4 {
		t.Fatalf("expected 4 messages after second turn, got %d", len(rec2.Messages))
	}
}

func TestAppendTurnLongTitleTruncated(t *testing.T) {
	s := newTestStore(t)
	long := strings.Repeat("a", 200)

	rec, err := s.AppendTurn(context.Background(), "", "proj-1", AppendTurnInput{UserContent: long})
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}
	if len(rec.Title) != maxTitleLength {
		t.Fatalf("expected title capped at %d chars, got %d", maxTitleLength, len(rec.Title))
	}
}

func TestListAndDeleteSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSession(ctx, "proj-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateSession(ctx, "proj-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateSession(ctx, "proj-2"); err != nil {
		t.Fatalf("create: %v", err)
	}

	summaries, err := s.ListSessions(ctx, "proj-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions for proj-1, got %d", len(summaries))
	}

	if err := s.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSession(ctx, a.ID); err == nil {
		t.Fatal("expected deleted session to be gone")
	}
	if err := s.DeleteSession(ctx, a.ID); err == nil {
		t.Fatal("expected error deleting already-deleted session")
	}
}

func TestUpdateSessionPatchesOnlyGivenFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateSession(ctx, "proj-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Renamed"
	if err := s.UpdateSession(ctx, rec.ID, PatchFields{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetSession(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %q", got.Title)
	}
	if len(got.SelectedDocumentIDs) != 0 {
		t.Fatalf("expected selected document ids untouched, got %+v", got.SelectedDocumentIDs)
	}

	docs := []string{"doc-1", "doc-2"}
	if err := s.UpdateSession(ctx, rec.ID, PatchFields{SelectedDocumentIDs: &docs}); err != nil {
		t.Fatalf("update docs: %v", err)
	}
	got2, err := s.GetSession(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got2.SelectedDocumentIDs) != 2 {
		t.Fatalf("expected 2 selected document ids, got %+v", got2.SelectedDocumentIDs)
	}
	if got2.Title != "Renamed" {
		t.Fatalf("expected title preserved after doc patch, got %q", got2.Title)
	}
}
