// Package cache provides a bounded least-recently-used store for provider
// responses, keyed by a content hash of the request parameters.
package cache

import (
	"sync"

	"github.com/okian/hoopstat/pkg/metrics"
)

const defaultCapacity = 100

// Cache is the store the pipeline memoizes into.
type Cache interface {
	Get(key string) (any, bool)
	Put(key string, value any)
	Len() int
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Capacity  int    `json:"capacity"`
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// entry is a node in the recency list.
type entry struct {
	key        string
	value      any
	prev, next *entry
}

// LRU is a mutex-guarded LRU cache. Both Get and Put mark an entry as most
// recently used. The list runs from head (most recent) to tail (least recent)
// between two sentinel nodes.
type LRU struct {
	mu       sync.Mutex
	items    map[string]*entry
	head     entry
	tail     entry
	capacity int
	metrics  *metrics.Manager

	hits, misses, evictions uint64
}

var _ Cache = (*LRU)(nil)

// New creates an LRU holding at most 100 entries unless WithCapacity is given.
func New(opts ...Option) *LRU {
	c := &LRU{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(c)
	}
	c.items = make(map[string]*entry, c.capacity)
	c.head.next = &c.tail
	c.tail.prev = &c.head
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		c.metrics.RecordCacheMiss()
		return nil, false
	}
	c.moveToFront(e)
	c.hits++
	c.metrics.RecordCacheHit()
	return e.value, true
}

// Put stores value under key, overwriting in place if present, and evicts the
// least recently used entry when over capacity.
func (c *LRU) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.items[key] = e
	c.insertFront(e)

	if len(c.items) > c.capacity {
		c.evictOldest()
	}
	c.metrics.UpdateCacheEntries(len(c.items))
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns counters since construction.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Capacity:  c.capacity,
		Entries:   len(c.items),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Must be called with c.mu held.
func (c *LRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == &c.head {
		return
	}
	c.unlink(oldest)
	delete(c.items, oldest.key)
	c.evictions++
	c.metrics.RecordCacheEviction()
}

func (c *LRU) moveToFront(e *entry) {
	if c.head.next == e {
		return
	}
	c.unlink(e)
	c.insertFront(e)
}

func (c *LRU) insertFront(e *entry) {
	e.prev = &c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}
