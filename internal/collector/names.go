package collector

import (
	"context"
	"sync"
	"time"
)

// LookupFunc fetches a display name for a user id.
type LookupFunc func(ctx context.Context, id string) (string, error)

// NameCache maps user ids to display names. Entries never expire when
// the TTL is zero. Two concurrent misses for the same id may both call
// the lookup; the later result wins.
type NameCache struct {
	lookup LookupFunc
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]nameEntry
}

type nameEntry struct {
	name    string
	fetched time.Time
}

// NewNameCache creates a cache over lookup. now may be nil.
func NewNameCache(lookup LookupFunc, ttl time.Duration, now func() time.Time) *NameCache {
	if now == nil {
		now = time.Now
	}
	return &NameCache{
		lookup:  lookup,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]nameEntry),
	}
}

// Resolve returns the cached name for id, fetching it on a miss. On
// lookup failure the error is returned and nothing is stored, so the
// next call tries again.
func (c *NameCache) Resolve(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if ok && (c.ttl <= 0 || c.now().Sub(e.fetched) < c.ttl) {
		return e.name, nil
	}

	name, err := c.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = id
	}

	c.mu.Lock()
	c.entries[id] = nameEntry{name: name, fetched: c.now()}
	c.mu.Unlock()
	return name, nil
}

// Len returns the number of cached entries.
func (c *NameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
