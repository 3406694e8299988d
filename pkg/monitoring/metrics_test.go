package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMCPRequest(t *testing.T) {
	MCPRequestsTotal.Reset()

	RecordMCPRequest("generate_tile_grid", 100*time.Millisecond, true)
	RecordMCPRequest("generate_tile_grid", 200*time.Millisecond, false)

	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("generate_tile_grid", "success")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("generate_tile_grid", "error")); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
}

func TestPipelineMetrics(t *testing.T) {
	PipelineRequestsTotal.Reset()
	SkippedElements.Reset()

	RecordPipelineOutcome("ready")
	RecordPipelineOutcome("ready")
	RecordPipelineOutcome("cancelled")
	if got := testutil.ToFloat64(PipelineRequestsTotal.WithLabelValues("ready")); got != 2 {
		t.Errorf("ready = %v, want 2", got)
	}
	if got := testutil.ToFloat64(PipelineRequestsTotal.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("cancelled = %v, want 1", got)
	}

	cells := testutil.ToFloat64(CellsClassified)
	RecordGrid(12, 40, map[string]int{"degenerate": 2, "outside": 3})
	if got := testutil.ToFloat64(CellsClassified) - cells; got != 40 {
		t.Errorf("cells delta = %v, want 40", got)
	}
	if got := testutil.ToFloat64(SkippedElements.WithLabelValues("outside")); got != 3 {
		t.Errorf("skipped outside = %v, want 3", got)
	}

	ObserveStage("fetching", 250*time.Millisecond)
	if n := testutil.CollectAndCount(StageDuration); n == 0 {
		t.Error("stage histogram has no series")
	}
}

func TestRecordProviderFetch(t *testing.T) {
	ProviderFetchesTotal.Reset()

	RecordProviderFetch("mock", "success", 10*time.Millisecond)
	RecordProviderFetch("overpass", "rate_limited", time.Second)

	if got := testutil.ToFloat64(ProviderFetchesTotal.WithLabelValues("mock", "success")); got != 1 {
		t.Errorf("mock success = %v", got)
	}
	if got := testutil.ToFloat64(ProviderFetchesTotal.WithLabelValues("overpass", "rate_limited")); got != 1 {
		t.Errorf("overpass rate_limited = %v", got)
	}
}

func TestCacheMetrics(t *testing.T) {
	CacheHits.Reset()
	CacheMisses.Reset()
	CacheSize.Reset()

	RecordCacheHit("grid")
	RecordCacheMiss("grid")
	UpdateCacheSize("grid", 42)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("grid")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("grid")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("grid")); got != 42 {
		t.Errorf("Expected cache size 42, got %v", got)
	}
}

func TestOSMHooks(t *testing.T) {
	ExternalServiceRequestsTotal.Reset()
	RateLimitExceeded.Reset()
	ErrorsTotal.Reset()

	hooks := OSMHooks()
	hooks.OnResponse("overpass", "fetch_features", 300*time.Millisecond, true)
	hooks.OnResponse("nominatim", "resolve_place", 100*time.Millisecond, false)
	hooks.OnRateLimit("overpass", 2*time.Second)
	hooks.OnError("nominatim", "request_error")

	if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("overpass", "fetch_features", "success")); got != 1 {
		t.Errorf("overpass success = %v", got)
	}
	if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("nominatim", "resolve_place", "error")); got != 1 {
		t.Errorf("nominatim error = %v", got)
	}
	if got := testutil.ToFloat64(RateLimitExceeded.WithLabelValues("overpass")); got != 1 {
		t.Errorf("rate limit = %v", got)
	}
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("nominatim", "request_error")); got != 1 {
		t.Errorf("errors = %v", got)
	}
}

func BenchmarkRecordMCPRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordMCPRequest("benchmark_tool", 100*time.Millisecond, true)
	}
}
