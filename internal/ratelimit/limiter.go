// Package ratelimit bounds how many admin requests a single client
// identifier may issue per fixed time window. The in-memory limiter is the
// default; the Redis limiter serves horizontally scaled deployments behind
// the same interface.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, never
// below 1 for a denied request.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter admits or rejects a request for the given client identifier.
type Limiter interface {
	Check(ctx context.Context, identifier string) (Result, error)
}

const (
	// DefaultLimit is the per-window request budget for admin routes.
	DefaultLimit = 60
	// DefaultWindow is the fixed window duration.
	DefaultWindow = time.Minute
)
