// Package tracing provides hooks that observe the loads and evictions of
// caches.
package tracing

import (
	"sync"

	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/sim/hooking"
)

// AccessCount holds the counters of one cache.
type AccessCount struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Accesses returns the number of loads.
func (c AccessCount) Accesses() uint64 {
	return c.Hits + c.Misses
}

// HitRate returns the fraction of loads that hit. It is 0 if there is no load.
func (c AccessCount) HitRate() float64 {
	if c.Accesses() == 0 {
		return 0
	}

	return float64(c.Hits) / float64(c.Accesses())
}

// AccessCounter counts the hits, misses, and evictions of the caches that it
// is attached to.
type AccessCounter struct {
	lock   sync.Mutex
	total  AccessCount
	counts map[string]*AccessCount
	names  []string
}

// NewAccessCounter creates a new AccessCounter.
func NewAccessCounter() *AccessCounter {
	return &AccessCounter{
		counts: make(map[string]*AccessCount),
	}
}

// Func counts the event of the hook position.
func (c *AccessCounter) Func(ctx hooking.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	perCache := c.countOf(hooking.DomainName(ctx))

	switch ctx.Pos {
	case cache.HookPosLoadHit:
		c.total.Hits++
		perCache.Hits++
	case cache.HookPosLoadMiss:
		c.total.Misses++
		perCache.Misses++
	case cache.HookPosEvict:
		c.total.Evictions++
		perCache.Evictions++
	}
}

func (c *AccessCounter) countOf(name string) *AccessCount {
	count, ok := c.counts[name]
	if !ok {
		count = &AccessCount{}
		c.counts[name] = count
		c.names = append(c.names, name)
	}

	return count
}

// Total returns the counters summed over all the caches.
func (c *AccessCounter) Total() AccessCount {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.total
}

// Count returns the counters of the cache with the given name.
func (c *AccessCounter) Count(name string) AccessCount {
	c.lock.Lock()
	defer c.lock.Unlock()

	count, ok := c.counts[name]
	if !ok {
		return AccessCount{}
	}

	return *count
}

// CacheNames returns the names of the caches that reported, in the order they
// first reported.
func (c *AccessCounter) CacheNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.names...)
}

// Reset clears all the counters.
func (c *AccessCounter) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.total = AccessCount{}
	c.counts = make(map[string]*AccessCount)
	c.names = nil
}
