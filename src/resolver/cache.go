package resolver

import "sync"

// Cache memoizes track resolutions for the lifetime of the process.
//
// Entries are never invalidated, a media ID resolved for a given key is
// assumed to stay valid for the whole session. Racing writers are fine since
// resolution is idempotent, last write wins.
type Cache struct {
	lock    sync.RWMutex
	entries map[string]string
}

func NewCache() *Cache {
	return &Cache{entries: map[string]string{}}
}

func (c *Cache) Get(key string) (string, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	id, ok := c.entries[key]
	return id, ok
}

func (c *Cache) Put(key, mediaID string) {
	if key == "" || mediaID == "" {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.entries[key] = mediaID
}

func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}
