package cache

import (
	"context"
	"time"
)

// FetchFunc produces a fresh value for a key. It is invoked by the store on a
// miss or on an expired entry, and is expected to hit the upstream source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Store is a TTL-keyed store mapping a request fingerprint to the last
// successfully fetched value.
//
// GetOrFetch returns the live value when the entry is within its TTL. On an
// expired or absent entry it invokes fetch; on fetch failure it falls back to
// the expired entry when one exists, reporting stale=true instead of an
// error. Entries are replaced on refresh, never mutated, and are only removed
// by capacity eviction (oldest fetch time first).
//
// Concurrent calls for the same key share a single in-flight fetch.
type Store[T any] interface {
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[T]) (value T, stale bool, err error)
	// Peek returns whatever entry is present for key without fetching.
	// stale reports whether the entry has outlived its TTL.
	Peek(key string) (value T, stale bool, ok bool)
	Len() int
	Close() error
}
