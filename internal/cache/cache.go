package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config controls capacity and the default entry lifetime.
//
// Capacity <= 0 means unbounded (no LRU eviction).
// DefaultTTL <= 0 means entries never expire unless set with an explicit TTL.
type Config struct {
	Capacity   int
	DefaultTTL time.Duration
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a concurrency-safe in-memory key/value store with per-entry TTL
// and LRU eviction. A map gives O(1) lookup and a doubly-linked list keeps
// recency order: front = most recently used, back = least recently used.
//
// Contents are never persisted; a restart starts cold.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	capacity   int
	defaultTTL time.Duration

	items map[K]*list.Element
	lru   *list.List

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
	expiresAt  time.Time
	hasExpiry  bool
}

// New constructs an empty cache.
func New[K comparable, V any](cfg Config) *Cache[K, V] {
	return &Cache[K, V]{
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
		items:      make(map[K]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

// Get returns the value for key when present and not expired. A present but
// expired entry is removed and counted as an eviction in addition to the miss.
// A hit refreshes the entry's recency position.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if e.hasExpiry && !e.expiresAt.After(c.now()) {
		c.removeLocked(el)
		c.evictions++
		c.misses++
		return zero, false
	}
	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set inserts or overwrites key with the cache's default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL inserts or overwrites key with an explicit TTL, overriding the
// default for this entry only. When the cache is at capacity and key is new,
// the least-recently-used entry is evicted first, regardless of its
// remaining TTL.
func (c *Cache[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := &entry[K, V]{
		key:        key,
		value:      value,
		insertedAt: now,
		hasExpiry:  ttl > 0,
	}
	if e.hasExpiry {
		e.expiresAt = now.Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		el.Value = e
		c.lru.MoveToFront(el)
		return
	}
	c.items[key] = c.lru.PushFront(e)

	for c.capacity > 0 && len(c.items) > c.capacity {
		back := c.lru.Back()
		if back == nil {
			return
		}
		c.removeLocked(back)
		c.evictions++
	}
}

// Invalidate removes key if present. Removing an absent key is not an error.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Clear drops every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.lru.Init()
}

// Keys returns all keys in MRU to LRU order, including entries that have
// expired but not yet been swept.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]K, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[K, V]).key)
	}
	return out
}

// Len returns the current entry count.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of size and hit/miss/eviction counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.lru.Remove(el)
}
