package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/golem/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Record
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Record),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, sessionID string, rec *domain.Record) error {
	// Copy to ensure isolation, similar to serialization
	copied := rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.data[sessionID]; ok {
		// An empty session blob or zero activity time leaves the binding as is.
		if len(copied.Session) == 0 {
			copied.Session = prev.Session
		}
		if copied.ActiveAt.IsZero() {
			copied.ActiveAt = prev.ActiveAt
		}
	}
	s.data[sessionID] = copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[sessionID]
	if !ok || len(rec.Context) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so the caller can't mutate store state through the slices
	return rec.Clone(), nil
}

// Clear drops the state and context. The channel binding and activity time
// stay so the session can still be reached and swept.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.data[sessionID]; ok {
		rec.State = ""
		rec.Context = nil
	}
	return nil
}

// List returns sessions holding a context, in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id, rec := range s.data {
		if len(rec.Context) == 0 {
			continue
		}
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
