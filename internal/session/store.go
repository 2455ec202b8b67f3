package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragsuite/internal/apierr"
	"ragsuite/internal/xjson"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	selected_document_ids TEXT NOT NULL DEFAULT '[]',
	selected_source_id TEXT,
	latest_response TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS session_messages (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`

// Store is the SQLite-backed session persistence layer. Writers are
// serialized per the SQL engine's single-writer connection (see
// internal/store.Open), matching spec.md §5's row-level isolation policy.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateSession creates a new session row, title defaulting to
// "Untitled Session" until the first user message auto-derives it.
func (s *Store) CreateSession(ctx context.Context, projectID string) (Record, error) {
	now := time.Now().UTC()
	rec := Record{
		Summary: Summary{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Title:     defaultTitle,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_id, title, message_count, selected_document_ids, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
		rec.ID, rec.ProjectID, rec.Title, 0, "[]", rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

// GetSession loads the full record for id, including messages in order.
func (s *Store) GetSession(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, message_count, selected_document_ids, selected_source_id, latest_response, created_at, updated_at FROM sessions WHERE id = ?`, id)

	var rec Record
	var selectedDocsJSON string
	var selectedSourceID, latestResponse sql.NullString
	if err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Title, &rec.MessageCount, &selectedDocsJSON, &selectedSourceID, &latestResponse, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, apierr.NotFound("session %s not found", id)
		}
		return Record{}, fmt.Errorf("get session %s: %w", id, err)
	}

	_ = xjson.Unmarshal([]byte(selectedDocsJSON), &rec.SelectedDocumentIDs)
	if selectedSourceID.Valid {
		rec.SelectedSourceID = &selectedSourceID.String
	}
	if latestResponse.Valid {
		rec.LatestResponse = &latestResponse.String
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec.Messages = messages
	return rec, nil
}

func (s *Store) loadMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, role, content, created_at FROM session_messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var seq int
		var m Message
		var role string
		if err := rows.Scan(&seq, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		m.ID = fmt.Sprintf("%s:%d", sessionID, seq)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListSessions returns summaries for every session belonging to projectID.
func (s *Store) ListSessions(ctx context.Context, projectID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, message_count, created_at, updated_at FROM sessions WHERE project_id = ? ORDER BY updated_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.ProjectID, &sum.Title, &sum.MessageCount, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("session %s not found", id)
	}
	return tx.Commit()
}

// PatchFields carries the optional fields an UpdateSession call may set.
type PatchFields struct {
	Title               *string
	SelectedDocumentIDs *[]string
}

// UpdateSession patches only the fields present in patch.
func (s *Store) UpdateSession(ctx context.Context, id string, patch PatchFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.Title != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`, *patch.Title, time.Now().UTC(), id); err != nil {
			return err
		}
	}
	if patch.SelectedDocumentIDs != nil {
		buf, _ := xjson.Marshal(*patch.SelectedDocumentIDs)
		if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET selected_document_ids = ?, updated_at = ? WHERE id = ?`, string(buf), time.Now().UTC(), id); err != nil {
			return err
		}
	}
	return nil
}

// AppendTurnInput is one user/assistant exchange to persist.
type AppendTurnInput struct {
	UserContent         string
	AssistantContent    string
	SelectedDocumentIDs []string
	SourceIDs           []string
	LatestResponse      string
}

// AppendTurn atomically loads or creates the session, appends non-empty
// user/assistant messages, and updates derived fields, per spec.md §4.11.
func (s *Store) AppendTurn(ctx context.Context, sessionID, projectID string, input AppendTurnInput) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getOrCreateLocked(ctx, sessionID, projectID)
	if err != nil {
		return Record{}, err
	}

	nextSeq := len(rec.Messages)
	now := time.Now().UTC()
	appended := 0

	if strings.TrimSpace(input.UserContent) != "" {
		if err := s.insertMessage(ctx, rec.ID, nextSeq, RoleUser, input.UserContent, now); err != nil {
			return Record{}, err
		}
		nextSeq++
		appended++
	}
	if strings.TrimSpace(input.AssistantContent) != "" {
		if err := s.insertMessage(ctx, rec.ID, nextSeq, RoleAssistant, input.AssistantContent, now); err != nil {
			return Record{}, err
		}
		nextSeq++
		appended++
	}

	var selectedSourceID *string
	if len(input.SourceIDs) > 0 {
		selectedSourceID = &input.SourceIDs[0]
	}

	title := rec.Title
	if titleIsDefault(title) && strings.TrimSpace(input.UserContent) != "" {
		title = deriveTitle(input.UserContent)
	}

	selectedDocsJSON, _ := xjson.Marshal(input.SelectedDocumentIDs)
	var latestResponse sql.NullString
	if input.LatestResponse != "" {
		latestResponse = sql.NullString{String: input.LatestResponse, Valid: true}
	}
	var sourceIDCol sql.NullString
	if selectedSourceID != nil {
		sourceIDCol = sql.NullString{String: *selectedSourceID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET title=?, message_count=?, selected_document_ids=?, selected_source_id=?, latest_response=?, updated_at=? WHERE id=?`,
		title, rec.MessageCount+appended, string(selectedDocsJSON), sourceIDCol, latestResponse, now, rec.ID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("append turn: %w", err)
	}

	return s.GetSession(ctx, rec.ID)
}

func (s *Store) getOrCreateLocked(ctx context.Context, sessionID, projectID string) (Record, error) {
	if sessionID != "" {
		rec, err := s.GetSession(ctx, sessionID)
		if err == nil {
			return rec, nil
		}
		if apierr.Status(err) != 404 {
			return Record{}, err
		}
	}

	now := time.Now().UTC()
	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_id, title, message_count, selected_document_ids, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
		id, projectID, defaultTitle, 0, "[]", now, now,
	)
	if err != nil {
		return Record{}, fmt.Errorf("create session on append_turn: %w", err)
	}
	return s.GetSession(ctx, id)
}

func (s *Store) insertMessage(ctx context.Context, sessionID string, seq int, role Role, content string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_messages (session_id, seq, role, content, created_at) VALUES (?,?,?,?,?)`,
		sessionID, seq, string(role), content, ts,
	)
	return err
}

func titleIsDefault(title string) bool {
	return title == "" || title == defaultTitle
}

// deriveTitle trims, collapses newlines to spaces, and caps at 64 chars,
// per spec.md §4.11.
func deriveTitle(content string) string {
	title := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	if title == "" {
		return defaultTitle
	}
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}
	return title
}
