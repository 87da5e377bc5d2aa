package fetch

import (
	"container/list"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultCacheEntries = 256

// cacheEntry holds one cached response body. A nil value is a valid cached
// payload (an empty 2xx response).
type cacheEntry struct {
	key       string
	value     json.RawMessage
	expiresAt time.Time
}

// Cache is a TTL response cache with a bounded entry count. Expired entries
// are evicted lazily on read; when full, the least recently used entry is
// dropped.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	cap     int
	now     func() time.Time
}

// NewCache creates a [Cache] bounded to capacity entries (defaults when <= 0).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCacheEntries
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		cap:     capacity,
		now:     time.Now,
	}
}

// Get returns the cached value for key. The second return is false on a miss
// or when the entry expired; an expired entry is removed on the spot.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := el.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.value, true
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Cache) Set(key string, value json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(ttl)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.cap {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value, expiresAt: expires})
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CacheKey derives the cache key for a request from its method, URL, and
// encoded query parameters.
func CacheKey(method, rawURL string, params url.Values) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(rawURL)
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}
