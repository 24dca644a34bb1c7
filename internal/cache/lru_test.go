package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("overwrite: got %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // b is now oldest
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", "3") // refresh b

	clk.t = clk.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired = %d, want 0 (a already dropped by Get)", n)
	}

	clk.t = clk.t.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0", c.Size())
	}
}

func TestJanitor(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", "1")
	j := NewJanitor(time.Millisecond)
	j.Register(c)

	if n := j.Sweep(); n != 0 {
		t.Errorf("Sweep before expiry = %d", n)
	}
	clk.t = clk.t.Add(2 * time.Second)
	if n := j.Sweep(); n != 1 {
		t.Errorf("Sweep after expiry = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
