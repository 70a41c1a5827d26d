// ABOUTME: In-memory session registry tracking conversation ownership
// ABOUTME: Each session carries a lock so concurrent work on one session is serialized

package session

import (
	"log/slog"
	"sync"
)

// Session tracks which agent currently owns a conversation. The embedded
// mutex serializes routing work for the session; callers hold it for the
// full duration of a call-and-update cycle so interleaved requests cannot
// observe a half-updated owner.
type Session struct {
	mu sync.Mutex

	ID           string
	currentAgent string
}

// Lock acquires the session's work lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's work lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// CurrentAgent returns the agent that owns the session.
func (s *Session) CurrentAgent() string {
	return s.currentAgent
}

// SetCurrentAgent hands session ownership to another agent.
// Callers must hold the session lock.
func (s *Session) SetCurrentAgent(agent string) {
	s.currentAgent = agent
}

// Store holds all live sessions. Sessions are created lazily on first use
// with the configured entry agent as their initial owner, and are never
// evicted for the process lifetime.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	entryAgent string
	logger     *slog.Logger
}

// NewStore creates a session store. New sessions start owned by entryAgent.
func NewStore(entryAgent string) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		entryAgent: entryAgent,
		logger:     slog.Default().With("component", "session"),
	}
}

// Get returns the session for an ID, creating it if this is the first time
// the ID has been seen.
func (s *Store) Get(sessionID string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock; another goroutine may have created it.
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}

	sess = &Session{
		ID:           sessionID,
		currentAgent: s.entryAgent,
	}
	s.sessions[sessionID] = sess

	s.logger.Info("session created",
		"session_id", sessionID,
		"current_agent", s.entryAgent)

	return sess
}

// Lookup returns the session for an ID without creating it.
func (s *Store) Lookup(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
