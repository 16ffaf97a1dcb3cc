package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*MemoryLimiter, *time.Time) {
	l := NewMemoryLimiter(limit, window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiterBudgetAndDenial(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := l.Check(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 5-i {
			t.Fatalf("request %d remaining = %d, want %d", i, res.Remaining, 5-i)
		}
	}

	res, _ := l.Check(ctx, "10.0.0.1")
	if res.Allowed {
		t.Fatal("sixth request in the window must be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("denied remaining = %d, want 0", res.Remaining)
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	l.Check(ctx, "client")
	l.Check(ctx, "client")
	if res, _ := l.Check(ctx, "client"); res.Allowed {
		t.Fatal("over-budget request must be denied")
	}

	*now = now.Add(time.Minute)
	res, _ := l.Check(ctx, "client")
	if !res.Allowed {
		t.Fatal("first request of the fresh window must be allowed")
	}
	if res.Remaining != 1 {
		t.Fatalf("fresh window remaining = %d, want 1 (count reset to 1)", res.Remaining)
	}
	if want := now.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Fatalf("resetAt = %v, want %v", res.ResetAt, want)
	}
}

func TestMemoryLimiterIdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	if res, _ := l.Check(ctx, "a"); !res.Allowed {
		t.Fatal("first request for a must pass")
	}
	if res, _ := l.Check(ctx, "a"); res.Allowed {
		t.Fatal("second request for a must be denied")
	}
	if res, _ := l.Check(ctx, "b"); !res.Allowed {
		t.Fatal("b must not be affected by a's quota")
	}
}

func TestMemoryLimiterConcurrentSameIdentifier(t *testing.T) {
	l, _ := newTestLimiter(100, time.Minute)
	ctx := context.Background()

	const calls = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := l.Check(ctx, "shared")
			mu.Lock()
			if res.Allowed {
				allowed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Atomic counting must admit exactly the budget, no undercounting.
	if allowed != 100 {
		t.Fatalf("allowed %d of %d concurrent requests, want exactly 100", allowed, calls)
	}
}

func TestMemoryLimiterEvictsStaleRecords(t *testing.T) {
	l, now := newTestLimiter(10, time.Minute)
	l.highWater = 4
	ctx := context.Background()

	stale := "stale-client"
	for _, id := range []string{stale, "b", "c", "d", "e"} {
		l.Check(ctx, id)
	}
	if got := int(l.tracked.Load()); got != 5 {
		t.Fatalf("tracked = %d, want 5", got)
	}

	// Pick a fresh identifier landing on the stale record's shard so the
	// sweep triggered by its check must visit that record.
	neighbor := ""
	for i := 0; ; i++ {
		candidate := "probe-" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
		if candidate != stale && shardFor(candidate) == shardFor(stale) {
			neighbor = candidate
			break
		}
	}

	// Push the existing records past the 2x-window cutoff, then check the
	// neighbor; tracked (6) exceeds the high-water mark, forcing a sweep.
	*now = now.Add(3 * time.Minute)
	l.Check(ctx, neighbor)

	sh := &l.shards[shardFor(stale)]
	sh.mu.Lock()
	_, stillThere := sh.records[stale]
	sh.mu.Unlock()
	if stillThere {
		t.Fatal("record two windows past its end must be evicted by the sweep")
	}
}
