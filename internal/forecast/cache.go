package forecast

import (
	"context"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type cacheEntry struct {
	obs      Observation
	cachedAt time.Time
	ttl      time.Duration
}

// Cache memoizes the latest normalized observation per (provider, grid cell).
// Entries expire after their provider's TTL; Put always overwrites. Writers
// race under last-writer-wins semantics, which is fine because staleness, not
// strict consistency, is the tradeoff here.
type Cache struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates an empty cache using the given time source.
func NewCache(clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// CellKey coarsens a coordinate to the provider's native grid resolution so
// nearby queries land in the same cell only when the model cell is unchanged.
func CellKey(provider string, lat, lon, resolution float64) string {
	if resolution <= 0 {
		resolution = 0.1
	}
	clat := math.Round(lat/resolution) * resolution
	clon := math.Round(lon/resolution) * resolution
	return provider + ":" +
		strconv.FormatFloat(clat, 'f', 2, 64) + "," +
		strconv.FormatFloat(clon, 'f', 2, 64)
}

// Get returns the cached observation for key, or a miss once the entry has
// outlived its TTL.
func (c *Cache) Get(key string) (Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Since(entry.cachedAt) >= entry.ttl {
		return Observation{}, false
	}
	return entry.obs, true
}

// Put stores obs under key, unconditionally replacing any previous entry.
func (c *Cache) Put(key string, obs Observation, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{obs: obs, cachedAt: c.clock.Now(), ttl: ttl}
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if c.clock.Since(entry.cachedAt) >= entry.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Janitor sweeps expired entries on a fixed interval until ctx is cancelled,
// keeping the cache bounded. Run it in its own goroutine.
func (c *Cache) Janitor(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := c.Sweep(); n > 0 {
				log.Printf("cache: swept %d expired entries (%d remain)", n, c.Len())
			}
		}
	}
}
