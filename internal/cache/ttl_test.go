package cache

import (
	"sync"
	"testing"
	"time"
)

func TestTTLExpiresWithInjectedClock(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := NewTTL[string, bool](time.Minute, clock)

	c.Set("U123", true)
	if v, ok := c.Get("U123"); !ok || !v {
		t.Fatalf("expected fresh entry to hit, got (%v,%v)", v, ok)
	}

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("U123"); !ok {
		t.Fatalf("entry expired before its TTL")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("U123"); ok {
		t.Fatalf("entry survived past its TTL")
	}
}

func TestTTLSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	c := NewTTL[string, int](time.Minute, func() time.Time { return now })

	c.Set("old", 1)
	now = now.Add(30 * time.Second)
	c.Set("fresh", 2)
	now = now.Add(45 * time.Second)

	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry must survive sweep")
	}
}

func TestTTLConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewTTL[int, int](time.Minute, nil)

	const (
		writers    = 8
		readers    = 8
		iterations = 2000
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c.Set(offset*iterations+i, i)
			}
		}(w)
	}
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_, _ = c.Get(offset*iterations + i)
			}
		}(r)
	}
	wg.Wait()

	c.Set(42, 42)
	if v, ok := c.Get(42); !ok || v != 42 {
		t.Fatalf("expected written entry to be readable, got (%v,%v)", v, ok)
	}
}
