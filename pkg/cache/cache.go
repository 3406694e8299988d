// Package cache keeps recently generated tile grids so identical requests
// are served without refetching map data.
package cache

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/monitoring"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

const (
	// DefaultSize is the number of grids kept when no size is given.
	DefaultSize = 64

	// DefaultTTL is how long a grid is served before it is refetched.
	DefaultTTL = 30 * time.Minute
)

type entry struct {
	cfg  config.Config
	grid *grid.TileGrid
}

// GridCache is a size and age bounded LRU of generated grids, keyed by
// config.Config.Key. Grids are immutable and are shared between callers.
type GridCache struct {
	lru    *expirable.LRU[string, entry]
	size   int
	ttl    time.Duration
	logger *slog.Logger
}

// Stats describes the cache configuration and occupancy.
type Stats struct {
	Entries  int           `json:"entries"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
}

// New creates a cache holding at most size grids for at most ttl.
// Non-positive values select the defaults.
func New(size int, ttl time.Duration, logger *slog.Logger) *GridCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &GridCache{size: size, ttl: ttl, logger: logger.With("component", "grid_cache")}
	c.lru = expirable.NewLRU[string, entry](size, func(key string, _ entry) {
		c.logger.Debug("grid evicted", "key", key)
	}, ttl)
	return c
}

// Get returns the grid generated for cfg. An entry stored for a config
// that does not match cfg is discarded and reported as a miss.
func (c *GridCache) Get(cfg config.Config) (*grid.TileGrid, bool) {
	if c == nil {
		return nil, false
	}
	key := cfg.Key()
	e, ok := c.lru.Get(key)
	if ok && !e.cfg.Matches(cfg) {
		c.logger.Warn("discarding mismatched cache entry", "key", key, "stored", e.cfg)
		c.lru.Remove(key)
		ok = false
	}
	if !ok || e.grid == nil {
		monitoring.RecordCacheMiss(tracing.CacheTypeGrid)
		return nil, false
	}
	monitoring.RecordCacheHit(tracing.CacheTypeGrid)
	return e.grid, true
}

// Put stores g under cfg's key.
func (c *GridCache) Put(cfg config.Config, g *grid.TileGrid) {
	if c == nil || g == nil {
		return
	}
	key := cfg.Key()
	c.lru.Add(key, entry{cfg: cfg, grid: g})
	monitoring.UpdateCacheSize(tracing.CacheTypeGrid, c.lru.Len())
	c.logger.Debug("grid cached", "key", key, "size", c.lru.Len())
}

// Remove drops the grid stored for cfg.
func (c *GridCache) Remove(cfg config.Config) {
	if c == nil {
		return
	}
	c.lru.Remove(cfg.Key())
	monitoring.UpdateCacheSize(tracing.CacheTypeGrid, c.lru.Len())
}

// Purge empties the cache.
func (c *GridCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
	monitoring.UpdateCacheSize(tracing.CacheTypeGrid, 0)
}

// Len returns the number of cached grids, expired ones included until
// they are reaped.
func (c *GridCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Keys returns the cached keys from oldest to newest.
func (c *GridCache) Keys() []string {
	if c == nil {
		return nil
	}
	return c.lru.Keys()
}

// Stats returns the current occupancy and limits.
func (c *GridCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Entries: c.lru.Len(), Capacity: c.size, TTL: c.ttl}
}
