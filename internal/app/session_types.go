package app

import "time"

// Session is one persisted conversation with the agent backend.
type Session struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Model   string `json:"model,omitempty"`
	WorkDir string `json:"work_dir,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is one persisted chat message.
type StoredMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // user|assistant|system|error
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore is the persistence collaborator the dispatcher talks to. The
// fallback finalization path reloads messages through it; everything else is
// bookkeeping for the surrounding application.
type SessionStore interface {
	ListSessions() ([]Session, error)
	CreateSession(workDir string) (*Session, error)
	LoadMessages(sessionID string) ([]StoredMessage, error)
	AppendMessage(msg StoredMessage) error
	SetSessionTitle(sessionID, title string) error
	SaveAttachment(sessionID, name string, data []byte) (string, error)
}
