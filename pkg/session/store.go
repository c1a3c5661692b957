package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/internal/observability"
)

// Store hands out cached per-user session handles backed by a storage
// directory. Dropping a handle discards only the cache entry; the
// transcript file stays on disk and reloads on the next GetOrCreate.
type Store struct {
	dir      string
	sessions map[string]*Session
	mu       sync.Mutex
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session storage directory: %w", err)
	}
	return &Store{
		dir:      dir,
		sessions: make(map[string]*Session),
	}, nil
}

// Dir returns the storage directory.
func (st *Store) Dir() string {
	return st.dir
}

// GetOrCreate returns the cached session for userID, loading the
// transcript from disk on first access.
func (st *Store) GetOrCreate(userID string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[userID]; ok {
		return s, nil
	}

	s, err := newSession(userID, transcriptPath(st.dir, userID))
	if err != nil {
		return nil, err
	}
	st.sessions[userID] = s
	observability.SetCachedSessions(len(st.sessions))
	log.Debug().Str("user_id", userID).Msg("Session handle created")
	return s, nil
}

// Drop removes the cached handle for userID. The transcript file is
// untouched.
func (st *Store) Drop(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[userID]; ok {
		delete(st.sessions, userID)
		observability.SetCachedSessions(len(st.sessions))
		log.Debug().Str("user_id", userID).Msg("Session handle dropped")
	}
}

// DropAll removes every cached handle. Transcript files are untouched.
func (st *Store) DropAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*Session)
	observability.SetCachedSessions(0)
}

// Count returns the number of cached session handles.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
