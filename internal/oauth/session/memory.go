package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implements Store on an in-process TTL cache.
// go-cache's janitor sweeps expired entries every minute, well inside the
// TTL-plus-grace purge bound, and its reads are expiry-checked atomically per
// key, so a sweep can never race a validation read into honoring a dead
// session.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemory creates the in-process fallback store.
func NewMemory() Store {
	return &memoryStore{c: gocache.New(TTL, time.Minute)}
}

func (m *memoryStore) Save(ctx context.Context, state string, s Session) error {
	m.c.Set(state, s, TTL)
	return nil
}

func (m *memoryStore) Get(ctx context.Context, state string) (*Session, bool) {
	v, ok := m.c.Get(state)
	if !ok {
		return nil, false
	}
	s, ok := v.(Session)
	if !ok || s.Expired(time.Now()) {
		return nil, false
	}
	return &s, true
}

func (m *memoryStore) Delete(ctx context.Context, state string) error {
	m.c.Delete(state)
	return nil
}
