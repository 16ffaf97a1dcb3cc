package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

// defaultHighWater is the tracked-identifier count above which a check
// sweeps its shard for stale records.
const defaultHighWater = 10000

type record struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// MemoryLimiter is a fixed-window limiter over a sharded in-process map.
// Checks against distinct identifiers land on independent shards, so they
// do not contend on a single lock; increments for one identifier are
// serialized by its shard mutex. It never returns an error.
type MemoryLimiter struct {
	limit     int
	window    time.Duration
	highWater int
	now       func() time.Time
	tracked   atomic.Int64
	shards    [shardCount]shard
}

// NewMemoryLimiter constructs a limiter with the given budget and window.
// Non-positive arguments fall back to the defaults.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &MemoryLimiter{
		limit:     limit,
		window:    window,
		highWater: defaultHighWater,
		now:       time.Now,
	}
	for i := range l.shards {
		l.shards[i].records = make(map[string]*record)
	}
	return l
}

// Check counts the request against the identifier's current window.
func (l *MemoryLimiter) Check(_ context.Context, identifier string) (Result, error) {
	now := l.now()
	sh := &l.shards[shardFor(identifier)]

	sh.mu.Lock()
	rec, ok := sh.records[identifier]
	if !ok {
		rec = &record{windowStart: now}
		sh.records[identifier] = rec
		l.tracked.Add(1)
	} else if now.Sub(rec.windowStart) >= l.window {
		rec.windowStart = now
		rec.count = 0
	}
	rec.count++
	count := rec.count
	resetAt := rec.windowStart.Add(l.window)

	// Amortized cleanup: once the store is large, sweep this shard for
	// records whose window ended more than two windows ago.
	if int(l.tracked.Load()) > l.highWater {
		cutoff := now.Add(-2 * l.window)
		for key, r := range sh.records {
			if r.windowStart.Before(cutoff) {
				delete(sh.records, key)
				l.tracked.Add(-1)
			}
		}
	}
	sh.mu.Unlock()

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func shardFor(identifier string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return h.Sum32() % shardCount
}
