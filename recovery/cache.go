package recovery

import (
	"sync"
	"time"
)

// resultCache memoizes recovery outcomes per owner for a short TTL. Scanning
// every storage location and re-deriving keys is expensive; callers tend to
// hammer recovery during screen transitions. Both successes and failures are
// cached so a missing wallet does not trigger a scan per call either.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	cred      *Credential
	err       error
	expiresAt time.Time
}

func newResultCache(ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(ownerID string) (*Credential, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ownerID]
	if !ok {
		return nil, nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, ownerID)
		return nil, nil, false
	}
	return entry.cred, entry.err, true
}

func (c *resultCache) put(ownerID string, cred *Credential, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ownerID] = cacheEntry{
		cred:      cred,
		err:       err,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *resultCache) invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ownerID)
}
