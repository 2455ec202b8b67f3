package checkpoint

import (
	"context"
	"testing"

	"ragsuite/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(t.TempDir(), "checkpoint_test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestThreadID(t *testing.T) {
	if got := ThreadID("hybrid", "proj-1", "sess-1"); got != "hybrid:proj-1:sess-1" {
		t.Fatalf("unexpected thread id: %q", got)
	}
}

func TestLoadEmptyThread(t *testing.T) {
	s := newTestStore(t)
	messages, err := s.Load(context.Background(), "hybrid:proj-1:sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}

func TestAppendTurnAndLoadPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	threadID := ThreadID("hybrid", "proj-1", "sess-1")

	if err := s.AppendTurn(ctx, threadID, "what is the notice period?", "30 days."); err != nil {
		t.Fatalf("append turn: %v", err)
	}
	if err := s.AppendTurn(ctx, threadID, "thanks", "you're welcome"); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	messages, err := s.Load(ctx, threadID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, want := range wantRoles {
		if messages[i].Role != want {
			t.Fatalf("message %d: expected role %s, got %s", i, want, messages[i].Role)
		}
	}
	if messages[0].Content != "what is the notice period?" || messages[1].Content != "30 days." {
		t.Fatalf("unexpected message contents: %+v", messages[:2])
	}
}

func TestAppendTurnSkipsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	threadID := ThreadID("hybrid", "proj-1", "sess-2")

	if err := s.AppendTurn(ctx, threadID, "", ""); err != nil {
		t.Fatalf("append turn: %v", err)
	}
	messages, err := s.Load(ctx, threadID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages persisted for empty turn, got %d", len(messages))
	}
}

func TestAppendTurnDistinctThreadsIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendTurn(ctx, "hybrid:p1:s1", "q1", "a1"); err != nil {
		t.Fatalf("append turn: %v", err)
	}
	if err := s.AppendTurn(ctx, "hybrid:p1:s2", "q2", "a2"); err != nil {
		t.Fatalf("append turn: %v", err)
	}

	m1, err := s.Load(ctx, "hybrid:p1:s1")
	if err != nil {
		t.Fatalf("load s1: %v", err)
	}
	m2, err := s.Load(ctx, "hybrid:p1:s2")
	if err != nil {
		t.Fatalf("load s2: %v", err)
	}
	if len(m1) != 2 || len(m2) != 2 {
		t.Fatalf("expected 2 messages per thread, got %d and %d", len(m1), len(m2))
	}
	if m1[0].Content != "q1" || m2[0].Content != "q2" {
		t.Fatalf("threads leaked into each other: %+v / %+v", m1, m2)
	}
}
