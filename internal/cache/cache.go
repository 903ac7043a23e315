// Package cache provides optional cross-trial memoization for the
// conversion lookups a large scenario×trial×year sweep repeats across many
// engines: the unit conversion ratio tables are pure functions of (value,
// destination unit, ambient state, intensities), so two engines that reach
// the same conversion with the same ambient numbers can share the answer
// without recomputing it.
//
// Caching is strictly an optimization — every Cache implementation may be
// absent (nil) or miss on every lookup without changing a simulation's
// result, since the underlying computation is always available as a
// fallback.
package cache

import (
	"context"
	"time"
)

// Cache is a minimal key/value store with TTL, small enough that both the
// Redis-backed implementation and an in-memory test double satisfy it
// trivially.
type Cache interface {
	// Get returns the cached value and true on a hit, or ("", false, nil)
	// on a clean miss. A non-nil error indicates the cache itself failed
	// (e.g. connection lost) — callers should treat that the same as a
	// miss and fall through to recomputing, never surface it as a
	// simulation error.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Close() error
}
