package api

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in a process-local map. Suitable for a
// single instance; use the Redis store when running more than one.
type MemorySessionStore struct {
	mu          sync.RWMutex
	data        map[string]AuthSession
	idleTimeout time.Duration
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store.
// idleTimeout of 0 disables idle timeout checking.
func NewMemorySessionStore(idleTimeout time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		data:        make(map[string]AuthSession),
		idleTimeout: idleTimeout,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (AuthSession, bool) {
	s.mu.RLock()
	session, ok := s.data[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(session.ExpiresAt) {
		return AuthSession{}, false
	}

	if s.idleTimeout > 0 && time.Since(session.LastAccessedAt) > s.idleTimeout {
		s.mu.Lock()
		delete(s.data, token)
		s.mu.Unlock()
		return AuthSession{}, false
	}

	session.LastAccessedAt = time.Now()
	s.mu.Lock()
	s.data[token] = session
	s.mu.Unlock()
	return session, true
}

func (s *MemorySessionStore) Put(_ context.Context, token string, session AuthSession) {
	s.mu.Lock()
	s.data[token] = session
	s.mu.Unlock()
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) {
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
}
