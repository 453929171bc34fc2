package cache

import (
	"container/list"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Default sizing for the permission cache.
const (
	DefaultPermissionTTL     = time.Hour
	DefaultPermissionMaxSize = 10_000
)

// permissionEntry is a cached authorization decision.
type permissionEntry struct {
	key          string
	allowed      bool
	expiresAt    time.Time
	lastAccessed time.Time
	elem         *list.Element
}

// PermissionCache memoizes authorization decisions with TTL expiry and
// least-recently-used eviction. Unlike [Memory], which evicts by insertion
// order, every hit refreshes the entry's recency, so hot entries survive
// capacity pressure.
//
// Keys are caller-defined; the conventional form is
// "perm:<user_id>:<guild_id>:<action>" so that wildcard invalidation can
// target a user or a guild.
type PermissionCache struct {
	mu      sync.Mutex
	entries map[string]*permissionEntry
	lru     *list.List // front = most recently used
	maxSize int
	ttl     time.Duration

	hits   int64
	misses int64
}

// PermissionStats is a point-in-time snapshot of the cache's state.
type PermissionStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	TTL     float64 `json:"ttl_seconds"`
}

// NewPermissionCache creates a PermissionCache. maxSize must be positive;
// a ttl <= 0 falls back to [DefaultPermissionTTL].
func NewPermissionCache(maxSize int, ttl time.Duration) (*PermissionCache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache: permission cache max size must be positive, got %d", maxSize)
	}
	if ttl <= 0 {
		ttl = DefaultPermissionTTL
	}
	return &PermissionCache{
		entries: make(map[string]*permissionEntry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}, nil
}

// Get returns the cached decision for key. A hit advances the entry's
// last-access time, protecting it from LRU eviction. Expired entries are
// removed and counted as misses.
func (c *PermissionCache) Get(key string) (allowed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, present := c.entries[key]
	if !present {
		c.misses++
		return false, false
	}

	now := time.Now()
	if now.After(e.expiresAt) {
		c.remove(e)
		c.misses++
		return false, false
	}

	e.lastAccessed = now
	c.lru.MoveToFront(e.elem)
	c.hits++
	return e.allowed, true
}

// Set stores a decision under key, resetting its TTL. Inserting a new key at
// capacity evicts the least-recently-accessed entry.
func (c *PermissionCache) Set(key string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, present := c.entries[key]; present {
		e.allowed = allowed
		e.expiresAt = now.Add(c.ttl)
		e.lastAccessed = now
		c.lru.MoveToFront(e.elem)
		return
	}

	if len(c.entries) >= c.maxSize {
		if victim := c.lru.Back(); victim != nil {
			c.remove(victim.Value.(*permissionEntry))
		}
	}

	e := &permissionEntry{
		key:          key,
		allowed:      allowed,
		expiresAt:    now.Add(c.ttl),
		lastAccessed: now,
	}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
}

// Delete removes key and reports whether it was present.
func (c *PermissionCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, present := c.entries[key]
	if !present {
		return false
	}
	c.remove(e)
	return true
}

// InvalidatePattern removes every entry whose key matches pattern, where
// "*" matches any run of characters (e.g., "perm:*:guild-42:*"). Returns the
// number of entries removed. A malformed pattern removes nothing.
func (c *PermissionCache) InvalidatePattern(pattern string) int {
	re, err := compileWildcard(pattern)
	if err != nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if re.MatchString(key) {
			c.remove(e)
			removed++
		}
	}
	return removed
}

// CleanupExpired sweeps out every expired entry and returns the count.
// This complements the lazy expiry performed on access.
func (c *PermissionCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			c.remove(e)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache's counters.
func (c *PermissionCache) Stats() PermissionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return PermissionStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
		TTL:     c.ttl.Seconds(),
	}
}

// remove deletes e from both indexes. Caller must hold c.mu.
func (c *PermissionCache) remove(e *permissionEntry) {
	delete(c.entries, e.key)
	c.lru.Remove(e.elem)
}

// compileWildcard converts a "*"-wildcard pattern into an anchored regexp.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
