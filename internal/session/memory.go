package session

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	scope Scope
	actor int64
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Memory is the in-process Store.
type Memory struct {
	mu      sync.Mutex
	entries map[memoryKey]memoryEntry
	ttls    TTLs
	now     func() time.Time
}

// NewMemory constructs an in-memory Store.
func NewMemory(ttls TTLs) *Memory {
	return &Memory{
		entries: make(map[memoryKey]memoryEntry),
		ttls:    ttls,
		now:     time.Now,
	}
}

// Put stores value for the actor, replacing any previous entry.
func (m *Memory) Put(_ context.Context, scope Scope, actor int64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl := m.ttls.of(scope); ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.entries[memoryKey{scope, actor}] = entry
	return nil
}

// Get returns the live value for the actor.
func (m *Memory) Get(_ context.Context, scope Scope, actor int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lookup(memoryKey{scope, actor})
	return v, ok, nil
}

// Take returns the live value and removes it.
func (m *Memory) Take(_ context.Context, scope Scope, actor int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{scope, actor}
	v, ok := m.lookup(key)
	delete(m.entries, key)
	return v, ok, nil
}

// Delete removes the entry for the actor.
func (m *Memory) Delete(_ context.Context, scope Scope, actor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey{scope, actor})
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// lookup must be called with mu held; it drops expired entries.
func (m *Memory) lookup(key memoryKey) (string, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if entry.expired(m.now()) {
		delete(m.entries, key)
		return "", false
	}
	return entry.value, true
}
