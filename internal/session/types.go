// Package session implements session CRUD and append_turn persistence
// (spec.md §4.11), backed by SQLite.
package session

import "time"

// Role is a session message's author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a session's conversation.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Summary is the list-view projection of a session.
type Summary struct {
	ID           string
	ProjectID    string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Record is the full session row.
type Record struct {
	Summary
	Messages            []Message
	SelectedDocumentIDs []string
	SelectedSourceID    *string
	LatestResponse      *string
}

const defaultTitle = "Untitled Session"
const maxTitleLength = 64
