package storage

import (
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/docscan/internal/capture"
)

// SessionStore holds the live capture sessions served over HTTP
type SessionStore struct {
	sessions map[string]*capture.Controller
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*capture.Controller),
	}
}

func (s *SessionStore) Get(sessionID string) (*capture.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

// Add stores a session under its own id
func (s *SessionStore) Add(session *capture.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

// List returns every session, oldest first
func (s *SessionStore) List() []*capture.Controller {
	s.mu.RLock()
	result := make([]*capture.Controller, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt().Before(result[j].CreatedAt())
	})
	return result
}

// Delete removes a session from the store without touching its state. The caller
// owns the returned controller and is expected to Cancel it.
func (s *SessionStore) Delete(sessionID string) (*capture.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return session, exists
}
