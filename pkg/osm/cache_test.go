package osm

import (
	"context"
	"testing"
	"time"
)

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[string, int](50 * time.Millisecond)
	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected cached value, got %v %v", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry not removed on read, size %d", c.Size())
	}
}

func TestTTLCacheJanitor(t *testing.T) {
	c := NewTTLCache[string, int](10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartJanitor(ctx, 5*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Size() != 0 {
		t.Errorf("janitor did not clean up, size %d", c.Size())
	}
}
