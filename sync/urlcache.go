package sync

import (
	"sync"
	"time"
)

type (
	// URLCache memoizes resolved download URLs per remote file id. Entries
	// expire after the TTL; an expired entry is never served. The cache is
	// scoped to one account: file ids are only unique per account, so jobs
	// on different accounts must not share an instance.
	URLCache struct {
		resolver Resolver
		ttl      time.Duration

		mu      sync.Mutex
		entries map[string]urlEntry

		now func() time.Time
	}

	urlEntry struct {
		url        string
		resolvedAt time.Time
	}
)

// NewURLCache creates a cache in front of resolver with the given TTL
func NewURLCache(resolver Resolver, ttl time.Duration) *URLCache {
	return &URLCache{
		resolver: resolver,
		ttl:      ttl,
		entries:  make(map[string]urlEntry),
		now:      time.Now,
	}
}

// Resolve returns the cached URL while it is fresh, otherwise asks the
// resolver and stores the result with the current timestamp.
func (c *URLCache) Resolve(fileID string) (url string, err error) {
	c.mu.Lock()
	entry, ok := c.entries[fileID]
	if ok && c.now().Sub(entry.resolvedAt) < c.ttl {
		c.mu.Unlock()
		return entry.url, nil
	}
	c.mu.Unlock()

	url, err = c.resolver.ResolveDownloadURL(fileID)
	if err != nil {
		return
	}

	c.mu.Lock()
	c.entries[fileID] = urlEntry{url: url, resolvedAt: c.now()}
	c.mu.Unlock()

	return url, nil
}

// Purge drops expired entries. Called periodically as housekeeping;
// correctness does not depend on it since Resolve checks freshness itself.
func (c *URLCache) Purge() (dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, entry := range c.entries {
		if c.now().Sub(entry.resolvedAt) >= c.ttl {
			delete(c.entries, id)
			dropped++
		}
	}

	return
}

// Len returns the number of cached entries, fresh or not
func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
