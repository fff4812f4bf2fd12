package storage

import (
	"sync"
	"time"

	"github.com/merchtools/collectioner/internal/models"
)

// DefaultTTL matches the 24 hour session lifetime of the web interface.
const DefaultTTL = 24 * time.Hour

// RunStore keeps run sessions in memory, keyed by session token.
// Sessions expire after the configured TTL; expired entries are dropped
// lazily on access.
type RunStore struct {
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

type entry struct {
	session  *models.RunSession
	deadline time.Time
}

func New() *RunStore {
	return NewWithTTL(DefaultTTL)
}

func NewWithTTL(ttl time.Duration) *RunStore {
	return &RunStore{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *RunStore) Get(token string) (*models.RunSession, bool) {
	s.mu.RLock()
	e, exists := s.sessions[token]
	s.mu.RUnlock()
	if !exists {
		return nil, false
	}
	if s.now().After(e.deadline) {
		s.Delete(token)
		return nil, false
	}
	return e.session, true
}

func (s *RunStore) Set(token string, session *models.RunSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &entry{
		session:  session,
		deadline: s.now().Add(s.ttl),
	}
}

func (s *RunStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// GetAll returns a snapshot of all live sessions.
func (s *RunStore) GetAll() map[string]*models.RunSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*models.RunSession, len(s.sessions))
	now := s.now()
	for token, e := range s.sessions {
		if now.After(e.deadline) {
			continue
		}
		result[token] = e.session
	}
	return result
}
