package ocr

import (
	"container/list"
	"sync"
)

// LineCache is an LRU cache of recognized lines keyed by image content id.
type LineCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	lines []Line
}

// NewLineCache creates a cache holding up to capacity images.
func NewLineCache(capacity int) *LineCache {
	return &LineCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached lines for key if present.
func (c *LineCache) Get(key string) ([]Line, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).lines, true
	}
	return nil, false
}

// Set stores lines for key, evicting the least recently used entry when full.
func (c *LineCache) Set(key string, lines []Line) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).lines = lines
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, lines: lines})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached images.
func (c *LineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
