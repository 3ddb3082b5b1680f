package ai

import (
	"fmt"
	"sync"
	"time"
)

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

// defaultCacheEntries bounds the narration cache; prompts embed the message
// and history, so keys rarely repeat.
const defaultCacheEntries = 256

// responseCache remembers narrations for a short while so a repeated prompt
// does not hit the model twice. Expired entries are dropped on every write and
// the map never holds more than max entries.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value string
	exp   time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl, max: defaultCacheEntries, entries: map[string]cacheEntry{}, now: time.Now}
}

func (c *responseCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		if c.now().Before(e.exp) {
			return e.value, true
		}
		delete(c.entries, key)
	}
	return "", false
}

func (c *responseCache) set(key, value string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.exp) {
			delete(c.entries, k)
		}
	}
	if _, ok := c.entries[key]; !ok && c.max > 0 && len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.entries[key] = cacheEntry{value: value, exp: now.Add(c.ttl)}
}

func (c *responseCache) evictOldest() {
	var (
		oldest string
		exp    time.Time
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.exp.Before(exp) {
			oldest, exp, found = k, e.exp, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}

func (c *responseCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
