package rag

import (
	"sync"
	"time"
)

// cacheEntry is one node in the LRU's doubly linked list.
type cacheEntry struct {
	key       string
	value     RAGResult
	expiresAt time.Time
	prev      *cacheEntry
	next      *cacheEntry
}

// Cache is a hand-rolled LRU+TTL cache for RAGResult (spec.md §4.8/§8):
// hash map plus a doubly linked list for O(1) get/set/evict, lazy TTL
// expiry checked on access rather than a background sweeper. No direct
// teacher equivalent — internal/search has no result cache — built in the
// same hand-rolled-arena style the teacher uses for its HNSW/BM25 indexes
// rather than reaching for a third-party LRU here, since this cache also
// needs per-entry TTL, which golang-lru/v2 (already used in
// internal/providers for the embedding cache) does not support.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*cacheEntry
	head     *cacheEntry // most recently used
	tail     *cacheEntry // least recently used
	hits     int64
	misses   int64
}

// NewCache builds a cache holding at most capacity entries, each valid for ttl.
// A ttl of 0 disables expiry; a negative ttl makes every entry expire at once.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*cacheEntry, capacity),
	}
}

// Get returns the cached result for key, or ok=false on a miss or expired entry.
func (c *Cache) Get(key string) (RAGResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return RAGResult{}, false
	}
	if c.ttl != 0 && time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		c.misses++
		return RAGResult{}, false
	}
	c.hits++
	c.moveToFrontLocked(e)
	return e.value, true
}

// Set inserts or updates key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *Cache) Set(key string, value RAGResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.expiry()
		c.moveToFrontLocked(e)
		return
	}

	e := &cacheEntry{key: key, value: value, expiresAt: c.expiry()}
	c.entries[key] = e
	c.pushFrontLocked(e)

	if len(c.entries) > c.capacity {
		c.removeLocked(c.tail)
	}
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry, c.capacity)
	c.head, c.tail = nil, nil
}

// HitRate returns hits/(hits+misses), or 0 if the cache has never been queried.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *Cache) expiry() time.Time {
	if c.ttl == 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

func (c *Cache) pushFrontLocked(e *cacheEntry) {
	e.prev, e.next = nil, c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) moveToFrontLocked(e *cacheEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushFrontLocked(e)
}

func (c *Cache) unlinkLocked(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) removeLocked(e *cacheEntry) {
	c.unlinkLocked(e)
	delete(c.entries, e.key)
}
