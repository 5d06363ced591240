package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileSessionStore is the JSON-on-disk store. It is the fallback when the
// SQLite store cannot be opened, and the format older installs used.
//
// Layout:
//
//	<root>/session/<sessionID>.json
//	<root>/message/<sessionID>/<msgID>.json
//	<root>/attachment/<sessionID>/<name>
type FileSessionStore struct {
	Root string
}

func DefaultStorageRoot() string {
	// Prefer XDG data dir (Linux/macOS). If unavailable, fall back to ~/.local/share.
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "agent-desk", "storage")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "agent-desk", "storage")
	}
	return filepath.Join(os.TempDir(), "agent-desk", "storage")
}

func NewFileSessionStore(root string) *FileSessionStore {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	return &FileSessionStore{Root: root}
}

func (s *FileSessionStore) sessionDir() string {
	return filepath.Join(s.Root, "session")
}

func (s *FileSessionStore) sessionPath(sessionID string) string {
	return filepath.Join(s.sessionDir(), sessionID+".json")
}

func (s *FileSessionStore) messagesDir(sessionID string) string {
	return filepath.Join(s.Root, "message", sessionID)
}

func (s *FileSessionStore) attachmentDir(sessionID string) string {
	return filepath.Join(s.Root, "attachment", sessionID)
}

func (s *FileSessionStore) CreateSession(workDir string) (*Session, error) {
	if err := os.MkdirAll(s.sessionDir(), 0o755); err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		WorkDir:   strings.TrimSpace(workDir),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *FileSessionStore) writeSession(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.sessionPath(sess.ID), data, 0o644)
}

func (s *FileSessionStore) readSession(sessionID string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *FileSessionStore) ListSessions() ([]Session, error) {
	entries, err := os.ReadDir(s.sessionDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var sessions []Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sess, err := s.readSession(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *FileSessionStore) LoadMessages(sessionID string) ([]StoredMessage, error) {
	dir := s.messagesDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var msgs []StoredMessage
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var msg StoredMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *FileSessionStore) AppendMessage(msg StoredMessage) error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("message has no session id")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	dir := s.messagesDir(msg.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, msg.ID+".json"), data, 0o644); err != nil {
		return err
	}
	return s.touchSession(msg.SessionID)
}

func (s *FileSessionStore) touchSession(sessionID string) error {
	sess, err := s.readSession(sessionID)
	if err != nil {
		// A message for a session we never wrote is not fatal; the session
		// record may live in another store generation.
		return nil
	}
	sess.UpdatedAt = time.Now()
	return s.writeSession(sess)
}

func (s *FileSessionStore) SetSessionTitle(sessionID, title string) error {
	sess, err := s.readSession(sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	sess.Title = strings.TrimSpace(title)
	sess.UpdatedAt = time.Now()
	return s.writeSession(sess)
}

func (s *FileSessionStore) SaveAttachment(sessionID, name string, data []byte) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "", errors.New("attachment has no name")
	}
	dir := s.attachmentDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
