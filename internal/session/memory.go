package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Used by tests and
// single-node deployments; production points the Manager at the pg store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Payload
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Payload),
		now:      time.Now,
	}
}

// SetClock overrides the expiry clock (useful for tests).
func (s *MemoryStore) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *MemoryStore) Put(_ context.Context, keyHash string, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[keyHash] = payload
	return nil
}

func (s *MemoryStore) Get(_ context.Context, keyHash string) (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.sessions[keyHash]
	if !ok {
		return Payload{}, ErrNotFound
	}
	if !payload.ExpiresAt.IsZero() && s.now().After(payload.ExpiresAt) {
		delete(s.sessions, keyHash)
		return Payload{}, ErrNotFound
	}
	return payload, nil
}

func (s *MemoryStore) Delete(_ context.Context, keyHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[keyHash]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, keyHash)
	return nil
}

// PurgeExpired drops expired payloads and reports how many were removed.
func (s *MemoryStore) PurgeExpired(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, payload := range s.sessions {
		if !payload.ExpiresAt.IsZero() && now.After(payload.ExpiresAt) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored payloads, expired included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
