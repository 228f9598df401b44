package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// envelope wraps a cached value with its fetch time so staleness can be
// judged against any TTL, not the one the entry was written under.
type envelope[T any] struct {
	Value     T         `json:"v"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RedisStore implements Store on Redis, sharing warm entries across
// instances. Entries outlive their TTL (up to MaxStaleAge) so degraded reads
// keep working when upstream is down; Redis expiry takes the place of count
// eviction. Stampede prevention is process-local: two processes may still
// fetch the same key concurrently.
type RedisStore[T any] struct {
	client *redis.Client
	prefix string
	maxAge time.Duration

	mu     sync.Mutex
	flight map[string]*call[T]
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore[T any](opts ...RedisOption) (*RedisStore[T], error) {
	cfg := &RedisConfig{
		Addr:         "localhost:6379",
		Prefix:       "twsepulse",
		PoolSize:     10,
		MinIdleConns: 5,
		PoolTimeout:  30 * time.Second,
		MaxStaleAge:  24 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore[T]{
		client: client,
		prefix: cfg.Prefix,
		maxAge: cfg.MaxStaleAge,
		flight: make(map[string]*call[T]),
	}, nil
}

func (s *RedisStore[T]) wrapKey(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[T]) (T, bool, error) {
	var zero T

	env, found, rerr := s.read(ctx, key)
	if rerr != nil {
		// An unreachable backend must not take the data path down with
		// it; treat the entry as absent and go straight to upstream.
		found = false
	}
	if found && time.Since(env.FetchedAt) <= ttl {
		return env.Value, false, nil
	}

	s.mu.Lock()
	if c, ok := s.flight[key]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.value, c.stale, c.err
		case <-ctx.Done():
			if found {
				return env.Value, true, nil
			}
			return zero, false, ctx.Err()
		}
	}
	c := &call[T]{done: make(chan struct{})}
	s.flight[key] = c
	s.mu.Unlock()

	value, ferr := fetch(ctx)
	if ferr == nil {
		if rerr == nil {
			// A failed write only costs the next caller a refetch; the
			// fetched value is still good.
			_ = s.write(ctx, key, value)
		}
		c.value = value
	} else if found {
		c.value = env.Value
		c.stale = true
	} else {
		c.err = ferr
	}

	s.mu.Lock()
	delete(s.flight, key)
	s.mu.Unlock()
	close(c.done)

	return c.value, c.stale, c.err
}

func (s *RedisStore[T]) Peek(key string) (T, bool, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env, found, err := s.read(ctx, key)
	if err != nil || !found {
		return zero, false, false
	}
	// Without the caller's TTL the entry age alone cannot classify
	// freshness; report stale so callers treat peeked values as degraded.
	return env.Value, true, true
}

func (s *RedisStore[T]) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *RedisStore[T]) Close() error {
	return s.client.Close()
}

func (s *RedisStore[T]) read(ctx context.Context, key string) (envelope[T], bool, error) {
	var env envelope[T]

	data, err := s.client.Get(ctx, s.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return env, false, nil
		}
		return env, false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		// A corrupt entry is treated as absent and overwritten on refresh.
		return env, false, nil
	}
	return env, true, nil
}

func (s *RedisStore[T]) write(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(envelope[T]{Value: value, FetchedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return s.client.Set(ctx, s.wrapKey(key), data, s.maxAge).Err()
}
