// Package session holds the per-sessionId ConversationContext a
// UserRequest may carry into the orchestration core. It is an in-process
// session manager adapted from the same map-plus-mutex, TTL-sweep shape
// used across the framework's other in-memory stores, keyed by sessionId
// instead of a generic conversation id.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelcouncil/council/council"
)

// entry is one session's mutable conversation history.
type entry struct {
	mu          sync.RWMutex
	context     council.ConversationContext
	lastActive  time.Time
}

// Store is an in-memory SessionID -> ConversationContext registry. The
// orchestration core never writes to it directly; callers append turns
// before and after a processRequest call.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

func (s *Store) entryFor(sessionID string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e
	}
	e = &entry{lastActive: time.Now()}
	s.sessions[sessionID] = e
	return e
}

// Get returns the current ConversationContext for sessionID. A
// never-seen session returns a zero-value context.
func (s *Store) Get(sessionID string) council.ConversationContext {
	e := s.entryFor(sessionID)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.context
}

// Append adds one turn to sessionID's history and refreshes its
// total-token count. It does not summarize — callers that need
// summarization call Summarize separately once TotalTokens crosses their
// own threshold.
func (s *Store) Append(sessionID string, msg council.ConversationMessage, tokens int) {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.context.Messages = append(e.context.Messages, msg)
	e.context.TotalTokens += tokens
	e.lastActive = time.Now()
}

// Summarize replaces sessionID's message history with a single synthetic
// summary message and marks the context as summarized, freeing the
// accumulated turn list without losing the running token count's
// relevance to downstream budget checks.
func (s *Store) Summarize(sessionID string, summary string) {
	e := s.entryFor(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.context.Messages = []council.ConversationMessage{{
		Role:      "system",
		Content:   summary,
		Timestamp: time.Now(),
	}}
	e.context.Summarized = true
}

// Remove drops sessionID's history entirely.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Sweep removes every session whose last Append (or, if it has never been
// appended to, its creation) is older than maxAge; Get does not refresh a
// session's activity time. Intended to run on a ticker from the owning
// process.
func (s *Store) Sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		e.mu.RLock()
		expired := e.lastActive.Before(cutoff)
		e.mu.RUnlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}
