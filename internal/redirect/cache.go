package redirect

import (
	"context"
	"sync"
	"time"
)

// URLCache holds resolved destinations keyed by normalized code.
// Get reports a miss as ok=false with a nil error.
type URLCache interface {
	Get(ctx context.Context, code string) (url string, ok bool, err error)
	Set(ctx context.Context, code, url string) error
	Delete(ctx context.Context, code string) error
}

type memoryEntry struct {
	url       string
	expiresAt time.Time
}

func (e memoryEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryCache is a process-local URLCache with a fixed TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache; ttl <= 0 means DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, code string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[code]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.isExpired(c.now()) {
		c.mu.Lock()
		// re-check under the write lock; a Set may have refreshed it
		if cur, ok := c.entries[code]; ok && cur.isExpired(c.now()) {
			delete(c.entries, code)
		}
		c.mu.Unlock()
		return "", false, nil
	}
	return e.url, true, nil
}

func (c *MemoryCache) Set(_ context.Context, code, url string) error {
	c.mu.Lock()
	c.entries[code] = memoryEntry{url: url, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	delete(c.entries, code)
	c.mu.Unlock()
	return nil
}
