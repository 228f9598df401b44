package cache

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
	ttl       time.Duration
}

func (e entry[T]) expired(now time.Time) bool {
	return now.Sub(e.fetchedAt) > e.ttl
}

// call tracks one in-flight fetch shared by concurrent callers of a key.
type call[T any] struct {
	done  chan struct{}
	value T
	stale bool
	err   error
}

// MemoryStore implements Store with an in-process map. Capacity is bounded by
// evicting the entry with the oldest fetch time, which bounds data staleness
// rather than access recency.
type MemoryStore[T any] struct {
	mu         sync.Mutex
	entries    map[string]entry[T]
	flight     map[string]*call[T]
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore[T any](opts ...MemoryOption) *MemoryStore[T] {
	cfg := &MemoryConfig{
		MaxEntries: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &MemoryStore[T]{
		entries:    make(map[string]entry[T]),
		flight:     make(map[string]*call[T]),
		maxEntries: cfg.MaxEntries,
		now:        cfg.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *MemoryStore[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[T]) (T, bool, error) {
	s.mu.Lock()

	if e, ok := s.entries[key]; ok && !e.expired(s.now()) {
		s.mu.Unlock()
		return e.value, false, nil
	}

	// Join an in-flight fetch for the same key instead of racing it.
	if c, ok := s.flight[key]; ok {
		s.mu.Unlock()
		return s.wait(ctx, key, c)
	}

	c := &call[T]{done: make(chan struct{})}
	s.flight[key] = c
	s.mu.Unlock()

	value, err := fetch(ctx)

	s.mu.Lock()
	if err == nil {
		s.entries[key] = entry[T]{value: value, fetchedAt: s.now(), ttl: ttl}
		s.evict()
		c.value = value
	} else if e, ok := s.entries[key]; ok {
		// Degrade to the expired entry rather than failing.
		c.value = e.value
		c.stale = true
	} else {
		c.err = err
	}
	delete(s.flight, key)
	s.mu.Unlock()

	close(c.done)
	return c.value, c.stale, c.err
}

// wait blocks until the in-flight call completes or ctx expires. On ctx
// expiry the best available stale entry is returned instead of hanging.
func (s *MemoryStore[T]) wait(ctx context.Context, key string, c *call[T]) (T, bool, error) {
	select {
	case <-c.done:
		return c.value, c.stale, c.err
	case <-ctx.Done():
		if v, _, ok := s.Peek(key); ok {
			return v, true, nil
		}
		var zero T
		return zero, false, ctx.Err()
	}
}

func (s *MemoryStore[T]) Peek(key string) (T, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, false, false
	}
	return e.value, e.expired(s.now()), true
}

func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore[T]) Close() error { return nil }

// evict removes oldest-fetchedAt entries until the store is within capacity.
// Caller must hold s.mu.
func (s *MemoryStore[T]) evict() {
	for len(s.entries) > s.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for k, e := range s.entries {
			if first || e.fetchedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.fetchedAt
				first = false
			}
		}
		delete(s.entries, oldestKey)
	}
}
