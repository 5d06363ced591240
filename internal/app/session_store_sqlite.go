package app

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteSessionStore persists sessions and messages in a single sqlite file.
// Attachments stay on disk next to the database.
type SQLiteSessionStore struct {
	Root   string
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error

	files *FileSessionStore // attachment storage shares the file layout
}

func NewSQLiteSessionStore(root string) (*SQLiteSessionStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	st := &SQLiteSessionStore{
		Root:   root,
		dbPath: filepath.Join(root, "agent-desk.db"),
		files:  NewFileSessionStore(root),
	}
	// Initialize eagerly so callers fail fast.
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteSessionStore) init() error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				title TEXT,
				model TEXT,
				work_dir TEXT,
				created_at_ns INTEGER NOT NULL,
				updated_at_ns INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at_ns);`,
			`CREATE TABLE IF NOT EXISTS messages (
				id TEXT NOT NULL,
				session_id TEXT NOT NULL,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at_ns INTEGER NOT NULL,
				PRIMARY KEY (session_id, id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_messages_session_created ON messages(session_id, created_at_ns);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				s.err = err
				return
			}
		}

		s.db = db
	})
	return s.err
}

func (s *SQLiteSessionStore) dbConn() (*sql.DB, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("sqlite store unavailable")
	}
	return db, nil
}

func (s *SQLiteSessionStore) CreateSession(workDir string) (*Session, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		WorkDir:   strings.TrimSpace(workDir),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = db.Exec(
		`INSERT INTO sessions (id, title, model, work_dir, created_at_ns, updated_at_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.Model, sess.WorkDir, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteSessionStore) ListSessions() ([]Session, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		`SELECT id, COALESCE(title, ''), COALESCE(model, ''), COALESCE(work_dir, ''), created_at_ns, updated_at_ns
		 FROM sessions ORDER BY updated_at_ns DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var createdNs, updatedNs int64
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Model, &sess.WorkDir, &createdNs, &updatedNs); err != nil {
			return nil, err
		}
		sess.CreatedAt = time.Unix(0, createdNs)
		sess.UpdatedAt = time.Unix(0, updatedNs)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteSessionStore) LoadMessages(sessionID string) ([]StoredMessage, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		`SELECT id, session_id, role, content, created_at_ns
		 FROM messages WHERE session_id = ? ORDER BY created_at_ns, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var createdNs int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdNs); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdNs)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *SQLiteSessionStore) AppendMessage(msg StoredMessage) error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("message has no session id")
	}
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err = db.Exec(
		`INSERT OR REPLACE INTO messages (id, session_id, role, content, created_at_ns) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return err
	}
	_, _ = db.Exec(`UPDATE sessions SET updated_at_ns = ? WHERE id = ?`, time.Now().UnixNano(), msg.SessionID)
	return nil
}

func (s *SQLiteSessionStore) SetSessionTitle(sessionID, title string) error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	res, err := db.Exec(
		`UPDATE sessions SET title = ?, updated_at_ns = ? WHERE id = ?`,
		strings.TrimSpace(title), time.Now().UnixNano(), sessionID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("session not found: " + sessionID)
	}
	return nil
}

func (s *SQLiteSessionStore) SaveAttachment(sessionID, name string, data []byte) (string, error) {
	return s.files.SaveAttachment(sessionID, name, data)
}

// Close releases the underlying database handle.
func (s *SQLiteSessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
