package cache

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore is the fallback when redis is not configured. Expired
// entries are dropped lazily on read and in bulk once writes accumulate.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

const sweepEvery = 256

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemorySessionStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(m.now()) {
		delete(m.entries, key)
		return nil, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemorySessionStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}

	m.writes++
	if m.writes >= sweepEvery {
		m.writes = 0
		m.sweepLocked()
	}
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemorySessionStore) Close() error {
	return nil
}

func (m *MemorySessionStore) sweepLocked() {
	now := m.now()
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && !entry.expiresAt.After(now) {
			delete(m.entries, key)
		}
	}
}
