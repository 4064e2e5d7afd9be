// Package session owns the per-upload state: the parsed table, its rendered
// profile, and the exchange history. Sessions are keyed by uuid and live in
// an in-process registry.
package session

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/csvchat-go/internal/dataset"
	"github.com/comigor/csvchat-go/internal/history"
)

// Session holds one client's dataset and conversation. The table and profile
// are replaced together on re-upload; the history store is created once and
// survives dataset replacement.
type Session struct {
	ID        string
	History   *history.Store
	CreatedAt time.Time

	mu      sync.RWMutex
	table   *dataset.Table
	profile string
}

// Table returns the current dataset.
func (s *Session) Table() *dataset.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Profile returns the rendered profile of the current dataset.
func (s *Session) Profile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SetTable replaces the dataset wholesale and re-renders the profile.
func (s *Session) SetTable(t *dataset.Table) {
	profile := t.Profile()
	s.mu.Lock()
	s.table = t
	s.profile = profile
	s.mu.Unlock()
}

// Registry is the in-process session map.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	maxExchanges int
	db           *sql.DB
}

// NewRegistry creates a registry. db may be nil, in which case histories are
// memory-only.
func NewRegistry(maxExchanges int, db *sql.DB) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		maxExchanges: maxExchanges,
		db:           db,
	}
}

// Create registers a new session around the given table.
func (r *Registry) Create(t *dataset.Table) *Session {
	id := uuid.NewString()

	var store *history.Store
	if r.db != nil {
		store = history.NewPersistentStore(r.db, id, r.maxExchanges)
	} else {
		store = history.NewStore(r.maxExchanges)
	}

	s := &Session{
		ID:        id,
		History:   store,
		CreatedAt: time.Now().UTC(),
	}
	s.SetTable(t)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes a session and clears any persisted history for it.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.History.Clear()
	}
}
