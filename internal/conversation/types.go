// Package conversation holds the chat sessions, their messages and the
// request lifecycle against the assistant service.
package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionID is the session active when nothing else is configured.
const DefaultSessionID = "default_session"

// ConnectionErrorText is the assistant message shown when a send fails.
const ConnectionErrorText = "Error: Could not connect to the server."

var (
	// ErrBusy is returned when the active session already has an operation in flight.
	ErrBusy = errors.New("session is busy")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session. Assistant content is markdown.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation thread known to the client.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title,omitempty"`
}

// DisplayTitle returns the title, or a short form of the id when untitled.
func (s Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	short := s.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Session " + short + "..."
}

// NewSessionID returns a fresh client-generated, time-ordered session id.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "session_" + id.String()
}

// Ticket identifies the session view an operation was started against.
type Ticket struct {
	SessionID string
	Epoch     uint64
}
