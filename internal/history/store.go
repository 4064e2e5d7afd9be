// Package history keeps the ordered exchange log for one session. The Store
// is an explicitly owned value passed to whoever needs it; there is no
// package-level state. An optional SQLite mirror persists exchanges across
// restarts, and mirror failures degrade to memory-only operation.
package history

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/csvchat-go/internal/logger"
)

// Store is a bounded, append-only exchange log. Append past the cap evicts
// the oldest entry. All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	exchanges []Exchange
	max       int

	db        *sql.DB
	sessionID string
}

// NewStore creates a memory-only Store retaining at most max exchanges.
// max <= 0 means unbounded.
func NewStore(max int) *Store {
	return &Store{max: max}
}

// OpenDB opens (creating if needed) the shared SQLite mirror used by
// persistent stores. Callers own the returned handle.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS exchanges (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create exchanges table: %w", err)
	}
	return db, nil
}

// NewPersistentStore creates a Store that mirrors exchanges to db under the
// given session id and preloads whatever that session already persisted.
func NewPersistentStore(db *sql.DB, sessionID string, max int) *Store {
	s := &Store{max: max, db: db, sessionID: sessionID}
	s.load()
	return s
}

func (s *Store) load() {
	rows, err := s.db.Query(
		`SELECT question, answer, created_at FROM exchanges WHERE session_id = ? ORDER BY id ASC;`,
		s.sessionID,
	)
	if err != nil {
		logger.L.Warn("history preload failed; starting empty", "session", s.sessionID, "error", err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.Question, &e.Answer, &e.CreatedAt); err != nil {
			logger.L.Warn("history row scan failed", "session", s.sessionID, "error", err)
			continue
		}
		s.exchanges = append(s.exchanges, e)
	}
	s.trim()
}

// Append adds a completed exchange, evicting the oldest entry when the
// store is at capacity. The mirror write happens under the same lock so the
// persisted order always matches the in-memory order.
func (s *Store) Append(e Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = append(s.exchanges, e)
	s.trim()

	if s.db != nil {
		_, err := s.db.Exec(
			`INSERT INTO exchanges (session_id, question, answer, created_at) VALUES (?,?,?,?);`,
			s.sessionID, e.Question, e.Answer, e.CreatedAt,
		)
		if err != nil {
			logger.L.Error("failed to persist exchange; continuing in memory", "session", s.sessionID, "error", err)
		}
	}
}

// trim enforces the cap. Caller holds the lock (or is still single-owner).
func (s *Store) trim() {
	if s.max > 0 && len(s.exchanges) > s.max {
		s.exchanges = append([]Exchange(nil), s.exchanges[len(s.exchanges)-s.max:]...)
	}
}

// Clear empties the log. Idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = nil
	if s.db != nil {
		if _, err := s.db.Exec(`DELETE FROM exchanges WHERE session_id = ?;`, s.sessionID); err != nil {
			logger.L.Error("failed to clear persisted exchanges", "session", s.sessionID, "error", err)
		}
	}
}

// Snapshot returns an ordered copy of the log for rendering or replay.
func (s *Store) Snapshot() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Len returns the current number of exchanges.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exchanges)
}
