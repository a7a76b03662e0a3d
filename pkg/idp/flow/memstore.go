package flow

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the default, single process ContinuationStore. Expiry
// is enforced lazily on Get against the injected clock.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clockwork.NewRealClock())
}

func NewMemoryStoreWithClock(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: map[string]memoryEntry{},
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, data []byte, ttl time.Duration) error {
	entry := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.data...), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Purge drops all expired entries, abandoned continuations are garbage
// once their ttl passed.
func (s *MemoryStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
