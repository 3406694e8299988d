package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NERVsystems/osmgrid/pkg/config"
	"github.com/NERVsystems/osmgrid/pkg/grid"
	"github.com/NERVsystems/osmgrid/pkg/monitoring"
	"github.com/NERVsystems/osmgrid/pkg/tracing"
)

func testConfig(res int) config.Config {
	return config.Config{Region: config.BBoxRegion(52.5, 13.4, 52.55, 13.45), GridResolution: res, Features: config.Urban()}
}

func testGrid(t *testing.T, cfg config.Config) *grid.TileGrid {
	t.Helper()
	g, err := grid.Generate(nil, cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return g
}

func TestGridCachePutGet(t *testing.T) {
	c := New(4, time.Minute, nil)
	cfg := testConfig(8)
	g := testGrid(t, cfg)

	if _, ok := c.Get(cfg); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(cfg, g)
	got, ok := c.Get(cfg)
	if !ok || got != g {
		t.Fatalf("Get = %v, %v; want stored grid", got, ok)
	}

	// a different resolution or feature set is a different key
	if _, ok := c.Get(testConfig(16)); ok {
		t.Error("resolution not part of the key")
	}
	other := cfg
	other.Features = config.Natural()
	if _, ok := c.Get(other); ok {
		t.Error("feature set not part of the key")
	}
}

func TestGridCacheEviction(t *testing.T) {
	c := New(2, time.Minute, nil)
	for res := 1; res <= 3; res++ {
		cfg := testConfig(res)
		c.Put(cfg, testGrid(t, cfg))
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if st := c.Stats(); st.Entries != 2 || st.Capacity != 2 || st.TTL != time.Minute {
		t.Errorf("Stats = %+v", st)
	}
	if _, ok := c.Get(testConfig(1)); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get(testConfig(3)); !ok {
		t.Error("newest entry missing")
	}
}

func TestGridCacheExpiration(t *testing.T) {
	c := New(4, 50*time.Millisecond, nil)
	cfg := testConfig(4)
	c.Put(cfg, testGrid(t, cfg))

	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get(cfg); ok {
		t.Error("expected entry to expire")
	}
}

func TestGridCacheKeepsNearbyRegionsApart(t *testing.T) {
	c := New(4, time.Minute, nil)
	a := config.Config{Region: config.BBoxRegion(0, 0, 1, 1), GridResolution: 10, Features: config.Urban()}
	b := config.Config{Region: config.BBoxRegion(0, 0, 1, 1.0000001), GridResolution: 10, Features: config.Urban()}
	if a.Key() == b.Key() {
		t.Fatalf("distinct regions share key %q", a.Key())
	}

	c.Put(a, testGrid(t, a))
	if g, ok := c.Get(b); ok {
		t.Fatalf("got grid for %v when asking for %v", g.Region(), b.Region)
	}
	gb := testGrid(t, b)
	c.Put(b, gb)
	if g, ok := c.Get(b); !ok || g != gb || g.Region().MaxLon != 1.0000001 {
		t.Errorf("Get(b) = %v, %v", g, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestGridCacheRejectsMismatchedEntry(t *testing.T) {
	c := New(4, time.Minute, nil)
	cfg := testConfig(4)
	other := testConfig(8)
	c.lru.Add(cfg.Key(), entry{cfg: other, grid: testGrid(t, other)})

	if _, ok := c.Get(cfg); ok {
		t.Fatal("mismatched entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("mismatched entry not removed, Len = %d", c.Len())
	}
}

func TestGridCacheMetrics(t *testing.T) {
	monitoring.CacheHits.Reset()
	monitoring.CacheMisses.Reset()

	c := New(4, time.Minute, nil)
	cfg := testConfig(4)
	c.Get(cfg)
	c.Put(cfg, testGrid(t, cfg))
	c.Get(cfg)
	c.Get(cfg)

	if got := testutil.ToFloat64(monitoring.CacheHits.WithLabelValues(tracing.CacheTypeGrid)); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(monitoring.CacheMisses.WithLabelValues(tracing.CacheTypeGrid)); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(monitoring.CacheSize.WithLabelValues(tracing.CacheTypeGrid)); got != 1 {
		t.Errorf("size = %v, want 1", got)
	}

	c.Purge()
	if c.Len() != 0 || len(c.Keys()) != 0 {
		t.Errorf("Purge left %d entries", c.Len())
	}
}

func TestNilGridCache(t *testing.T) {
	var c *GridCache
	cfg := testConfig(4)
	c.Put(cfg, nil)
	if _, ok := c.Get(cfg); ok {
		t.Error("nil cache returned a grid")
	}
	if c.Len() != 0 || c.Stats() != (Stats{}) {
		t.Error("nil cache has entries")
	}
}

func TestGridCacheDefaults(t *testing.T) {
	st := New(0, 0, nil).Stats()
	if st.Capacity != DefaultSize || st.TTL != DefaultTTL {
		t.Errorf("Stats = %+v, want defaults", st)
	}
}
