package controlplane

import (
	"sync"
	"time"
)

// snapshotCache holds the most recently loaded provider. An expired snapshot
// is kept as the last-known-good fallback.
type snapshotCache struct {
	mu        sync.RWMutex
	snap      *StaticProvider
	expiresAt time.Time
	nowFn     func() time.Time
}

// Get returns the cached snapshot and whether it is still fresh. The snapshot
// is nil until the first Set.
func (c *snapshotCache) Get() (snap *StaticProvider, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil {
		return nil, false
	}
	return c.snap, c.now().Before(c.expiresAt)
}

func (c *snapshotCache) Set(snap *StaticProvider, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = snap
	c.expiresAt = c.now().Add(ttl)
}

// Expire forces the next Get to report the snapshot as stale.
func (c *snapshotCache) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiresAt = time.Time{}
}

func (c *snapshotCache) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}
