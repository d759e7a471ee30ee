package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend keeps entries in process. Expired entries are dropped lazily
// on access and during Set once the map grows past maxEntries.
type MemoryBackend struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	clock      Clock
	maxEntries int
}

const defaultMemoryMaxEntries = 10_000

// NewMemoryBackend constructs an empty in-process backend.
func NewMemoryBackend(clock Clock) *MemoryBackend {
	return &MemoryBackend{
		entries:    make(map[string]memoryEntry),
		clock:      clock,
		maxEntries: defaultMemoryMaxEntries,
	}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.expired(entry) {
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && m.expired(current) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.clock.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	delete(m.entries, key)
	return !m.expired(entry), nil
}

func (m *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return ok && !m.expired(entry), nil
}

func (m *MemoryBackend) Clear(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Close() error { return nil }

// Len reports the number of stored entries, including expired ones not yet evicted.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryBackend) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !m.clock.now().Before(entry.expiresAt)
}

// evictLocked drops expired entries, then arbitrary ones until there is room.
func (m *MemoryBackend) evictLocked() {
	for key, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, key)
		}
	}
	for key := range m.entries {
		if len(m.entries) < m.maxEntries {
			return
		}
		delete(m.entries, key)
	}
}
