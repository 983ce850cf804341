package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps sessions in a bounded, expiring LRU. Sessions do not
// survive a restart and are not shared between instances.
type MemoryStore struct {
	cache *expirable.LRU[string, Session]
}

// NewMemoryStore holds at most size sessions for up to lifetime after their
// last save.
func NewMemoryStore(size int, lifetime time.Duration) *MemoryStore {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, Session](size, nil, lifetime),
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.cache.Add(s.ID, *s)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

// Len returns the number of cached sessions, expired ones included until evicted.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
