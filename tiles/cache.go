package tiles

import (
	"container/list"
	"image"
)

// DefaultCacheTiles bounds the pixel cache when no capacity is given.
const DefaultCacheTiles = 200

// Cache is an LRU map from tile keys to rendered pixels. It is not
// safe for concurrent use; the scheduler owns it from one goroutine.
type Cache struct {
	capacity int
	order    *list.List // front is most recently used
	items    map[Key]*list.Element
}

type cacheEntry struct {
	key    Key
	pixels *image.RGBA
}

// NewCache returns a cache bounded to capacity tiles. A capacity of
// zero or less falls back to DefaultCacheTiles.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheTiles
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[Key]*list.Element),
	}
}

// Get returns the cached pixels for k and refreshes its recency.
func (c *Cache) Get(k Key) (*image.RGBA, bool) {
	el, ok := c.items[k]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).pixels, true
}

// Put stores pixels under k as the most recently used entry. The
// cache may exceed its capacity until the next EvictOver call; the
// bound is a soft target so visible tiles are never dropped.
func (c *Cache) Put(k Key, pixels *image.RGBA) {
	if el, ok := c.items[k]; ok {
		el.Value.(*cacheEntry).pixels = pixels
		c.order.MoveToFront(el)
		return
	}
	c.items[k] = c.order.PushFront(&cacheEntry{key: k, pixels: pixels})
}

// EvictOver removes least-recently-used entries until the cache fits
// its capacity, skipping keys in protected. It returns the number of
// evicted tiles. If only protected entries remain the cache is left
// over capacity.
func (c *Cache) EvictOver(protected map[Key]struct{}) int {
	evicted := 0
	el := c.order.Back()
	for el != nil && c.order.Len() > c.capacity {
		prev := el.Prev()
		entry := el.Value.(*cacheEntry)
		if _, keep := protected[entry.key]; !keep {
			c.order.Remove(el)
			delete(c.items, entry.key)
			evicted++
		}
		el = prev
	}
	return evicted
}

// Len reports the number of cached tiles.
func (c *Cache) Len() int { return c.order.Len() }

// Clear drops every cached tile.
func (c *Cache) Clear() {
	c.order.Init()
	c.items = make(map[Key]*list.Element)
}
