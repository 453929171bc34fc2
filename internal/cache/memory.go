// Package cache provides the in-process caches used by the summarization
// pipeline: a TTL'd key-value backend with a size cap ([Memory]), a typed
// summary memoization layer ([SummaryCache]), and a separate LRU cache for
// authorization decisions ([PermissionCache]).
//
// Memory evicts by creation time (FIFO by insertion) while PermissionCache
// evicts by last access. The two are deliberately distinct types and must
// not be unified.
//
// All types are safe for concurrent use.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Backend is the key-value store interface the summary cache runs over.
// The in-memory implementation is [Memory]; a Redis-style backend can be
// swapped in without touching callers.
type Backend interface {
	// Get returns the value for key, or ok=false when the key is absent or
	// expired. Expired entries are removed on access.
	Get(key string) (value []byte, ok bool)

	// Set stores value under key with the given TTL. A TTL <= 0 means the
	// entry never expires.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes key and reports whether it was present. Idempotent.
	Delete(key string) bool

	// Clear removes all keys starting with prefix, or every key when prefix
	// is empty. Returns the number of entries removed.
	Clear(prefix string) int

	// HealthCheck probes the backend. The in-memory backend always succeeds;
	// remote backends should issue a round trip.
	HealthCheck(ctx context.Context) error
}

// memoryEntry is a stored value with its insertion bookkeeping.
type memoryEntry struct {
	key       string
	value     []byte
	createdAt time.Time
	expiresAt time.Time // zero means no expiry
	elem      *list.Element
}

// Memory is the in-process [Backend]. Entries carry a per-entry TTL and the
// store holds at most maxEntries values; inserting a new key at capacity
// evicts the entry with the oldest creation time. Updating an existing key
// never triggers eviction.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	insertions *list.List // front = oldest insertion
	maxEntries int
}

// NewMemory creates a [Memory] holding at most maxEntries values.
// A non-positive cap is a construction error: unbounded caches are not
// permitted.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be positive, got %d", maxEntries)
	}
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		insertions: list.New(),
		maxEntries: maxEntries,
	}, nil
}

// Get implements [Backend]. Expired entries are removed lazily here.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		m.remove(e)
		return nil, false
	}
	return e.value, true
}

// Set implements [Backend].
func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	if e, ok := m.entries[key]; ok {
		// Update in place; insertion order and creation time are preserved,
		// so updates never count against capacity.
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	if len(m.entries) >= m.maxEntries {
		if oldest := m.insertions.Front(); oldest != nil {
			m.remove(oldest.Value.(*memoryEntry))
		}
	}

	e := &memoryEntry{key: key, value: value, createdAt: now, expiresAt: expiresAt}
	e.elem = m.insertions.PushBack(e)
	m.entries[key] = e
}

// Delete implements [Backend].
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	m.remove(e)
	return true
}

// Clear implements [Backend].
func (m *Memory) Clear(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix == "" {
		n := len(m.entries)
		m.entries = make(map[string]*memoryEntry)
		m.insertions.Init()
		return n
	}

	removed := 0
	for key, e := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.remove(e)
			removed++
		}
	}
	return removed
}

// HealthCheck implements [Backend]. The in-memory store is always healthy.
func (m *Memory) HealthCheck(_ context.Context) error {
	return nil
}

// Len returns the current entry count, including not-yet-swept expired
// entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// remove deletes e from both indexes. Caller must hold m.mu.
func (m *Memory) remove(e *memoryEntry) {
	delete(m.entries, e.key)
	m.insertions.Remove(e.elem)
}

// expired reports whether the entry's TTL has elapsed at now.
func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

var _ Backend = (*Memory)(nil)
