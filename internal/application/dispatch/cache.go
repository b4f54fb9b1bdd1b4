package dispatch

import (
	"container/list"
	"sync"
)

// DefaultCacheSize bounds the first dedupe tier when config doesn't say.
const DefaultCacheSize = 4096

// KeyCache is the first dedupe tier: a bounded, process-local LRU of
// recently seen idempotency keys. It answers most duplicates without
// touching the durable registry.
type KeyCache struct {
	mu    sync.Mutex
	cap   int
	order *list.List
	items map[string]*list.Element
}

func NewKeyCache(capacity int) *KeyCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &KeyCache{
		cap:   capacity,
		order: list.New(),
		items: make(map[string]*list.Element, capacity),
	}
}

// Contains reports whether key was seen recently and refreshes its
// recency on a hit.
func (c *KeyCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if ok {
		c.order.MoveToFront(el)
	}
	return ok
}

// Add records key as most recently seen, evicting the oldest entry when
// the cache is full.
func (c *KeyCache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(key)
	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(string))
	}
}

func (c *KeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
