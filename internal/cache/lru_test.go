package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "a" was just used, so inserting "c" evicts "b".
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive eviction")
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}
}

func TestLRUCacheUpdateExisting(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("Get(a) = %d, want 2", v)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("a", "1")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should miss")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("a", "1")
	c.Set("b", "2")
	time.Sleep(20 * time.Millisecond)
	c.Set("c", "3")

	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("CleanExpired = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	c.Delete("never-existed")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted entry should miss")
	}
}

func TestManagerCleanup(t *testing.T) {
	c := NewLRUCache[string](10, 5*time.Millisecond)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)

	c.Set("a", "1")
	time.Sleep(40 * time.Millisecond)
	m.Stop()

	if c.Size() != 0 {
		t.Fatalf("Size after cleanup = %d, want 0", c.Size())
	}
}
