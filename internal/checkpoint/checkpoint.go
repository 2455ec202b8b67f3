// Package checkpoint persists the orchestrator's per-thread conversation
// memory: a key/value of thread id -> ordered message list (spec.md §9
// design note), one SQLite file per orchestrator variant (spec.md §6).
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoint_messages (
	thread_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
`

// Role mirrors internal/session.Role without importing it, keeping the
// checkpoint store independent of the session package's schema evolution.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn recorded against a thread id.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Store loads and appends message history keyed by thread id
// (`"{prefix}:{project_id}:{session_id}"`, spec.md §4.8). Concurrent
// appends to the same thread id are serialized by a per-thread mutex,
// matching spec.md §5's per-thread-id lock description; distinct threads
// proceed concurrently.
type Store struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lockFor(threadID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

// Load returns the full ordered message history for threadID, or an empty
// slice if the thread has no checkpoint yet.
func (s *Store) Load(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM checkpoint_messages WHERE thread_id = ? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendTurn appends a user/assistant message pair to threadID's history
// after a generation completes, per spec.md §4.8's "session mode
// checkpoints the turn after stream completion" rule. Empty contents are
// skipped so a cancelled-before-any-output stream leaves no partial turn.
func (s *Store) AppendTurn(ctx context.Context, threadID, userContent, assistantContent string) error {
	lock := s.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	var nextSeq int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoint_messages WHERE thread_id = ?`, threadID)
	if err := row.Scan(&nextSeq); err != nil {
		return fmt.Errorf("count checkpoint messages for %s: %w", threadID, err)
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := func(role Role, content string) error {
		if content == "" {
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO checkpoint_messages (thread_id, seq, role, content, created_at) VALUES (?,?,?,?,?)`,
			threadID, nextSeq, string(role), content, now,
		)
		if err != nil {
			return err
		}
		nextSeq++
		return nil
	}

	if err := insert(RoleUser, userContent); err != nil {
		return fmt.Errorf("append checkpoint user message: %w", err)
	}
	if err := insert(RoleAssistant, assistantContent); err != nil {
		return fmt.Errorf("append checkpoint assistant message: %w", err)
	}

	return tx.Commit()
}

// ThreadID builds the orchestrator's composite key: prefix, project id,
// session id, per spec.md §9.
func ThreadID(prefix, projectID, sessionID string) string {
	return prefix + ":" + projectID + ":" + sessionID
}
