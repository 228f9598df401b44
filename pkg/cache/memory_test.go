package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestGetOrFetchLiveEntrySkipsFetch(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore[string](WithClock(fixedClock(&now)))

	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "v1", nil
	}

	v, stale, err := s.GetOrFetch(context.Background(), "k", 60*time.Second, fetch)
	if err != nil || stale || v != "v1" {
		t.Fatalf("first call: v=%q stale=%v err=%v", v, stale, err)
	}

	// 30s later the entry is live; fetch must not run.
	now = now.Add(30 * time.Second)
	v, stale, err = s.GetOrFetch(context.Background(), "k", 60*time.Second, fetch)
	if err != nil || stale || v != "v1" {
		t.Fatalf("cached call: v=%q stale=%v err=%v", v, stale, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls)
	}
}

func TestGetOrFetchStaleFallback(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore[string](WithClock(fixedClock(&now)))

	ok := func(ctx context.Context) (string, error) { return "t0", nil }
	down := func(ctx context.Context) (string, error) { return "", errors.New("upstream down") }

	if _, _, err := s.GetOrFetch(context.Background(), "k", 60*time.Second, ok); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	// 61s later the entry expired and upstream is down: the t=0 value is
	// served flagged stale, not an error.
	now = now.Add(61 * time.Second)
	v, stale, err := s.GetOrFetch(context.Background(), "k", 60*time.Second, down)
	if err != nil {
		t.Fatalf("expected stale fallback, got error %v", err)
	}
	if !stale || v != "t0" {
		t.Fatalf("expected stale t0 value, got v=%q stale=%v", v, stale)
	}
}

func TestGetOrFetchNoEntryPropagatesError(t *testing.T) {
	s := NewMemoryStore[string]()
	fetchErr := errors.New("boom")

	_, _, err := s.GetOrFetch(context.Background(), "missing", time.Minute, func(ctx context.Context) (string, error) {
		return "", fetchErr
	})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestGetOrFetchRefreshReplacesEntry(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore[int](WithClock(fixedClock(&now)))

	n := 0
	fetch := func(ctx context.Context) (int, error) {
		n++
		return n, nil
	}

	if v, _, _ := s.GetOrFetch(context.Background(), "k", time.Minute, fetch); v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	now = now.Add(2 * time.Minute)
	v, stale, err := s.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	if err != nil || stale {
		t.Fatalf("refresh: stale=%v err=%v", stale, err)
	}
	if v != 2 {
		t.Fatalf("expected refreshed value 2, got %d", v)
	}
}

func TestConcurrentCallersSingleFetch(t *testing.T) {
	s := NewMemoryStore[string]()

	var fetches int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&fetches, 1)
		close(started)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _, errs[0] = s.GetOrFetch(context.Background(), "k", time.Minute, fetch)
	}()

	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _, errs[1] = s.GetOrFetch(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
			atomic.AddInt32(&fetches, 1)
			return "duplicate", nil
		})
	}()

	// Give the second caller time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("expected exactly 1 underlying fetch, got %d", n)
	}
	for i := range results {
		if errs[i] != nil || results[i] != "shared" {
			t.Fatalf("caller %d: v=%q err=%v", i, results[i], errs[i])
		}
	}
}

func TestEvictOldestFetchedAtFirst(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore[string](WithMaxEntries(2), WithClock(fixedClock(&now)))

	for i, key := range []string{"a", "b", "c"} {
		now = now.Add(time.Duration(i) * time.Second)
		val := key
		if _, _, err := s.GetOrFetch(context.Background(), key, time.Hour, func(ctx context.Context) (string, error) {
			return val, nil
		}); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", s.Len())
	}
	if _, _, ok := s.Peek("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, _, ok := s.Peek(key); !ok {
			t.Fatalf("entry %s should have survived eviction", key)
		}
	}
}

func TestPeekReportsStaleness(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore[string](WithClock(fixedClock(&now)))

	if _, _, err := s.GetOrFetch(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
		return "v", nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, stale, ok := s.Peek("k"); !ok || stale {
		t.Fatalf("expected live entry, stale=%v ok=%v", stale, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, stale, ok := s.Peek("k"); !ok || !stale {
		t.Fatalf("expected stale entry, stale=%v ok=%v", stale, ok)
	}
}

func TestManyKeysIndependent(t *testing.T) {
	s := NewMemoryStore[int]()
	for i := 0; i < 10; i++ {
		i := i
		v, _, err := s.GetOrFetch(context.Background(), fmt.Sprintf("k%d", i), time.Minute, func(ctx context.Context) (int, error) {
			return i, nil
		})
		if err != nil || v != i {
			t.Fatalf("key %d: v=%d err=%v", i, v, err)
		}
	}
	if s.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", s.Len())
	}
}
