package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	xhttp "TwsePulse/pkg/http"
)

func newTestFetcher(maxRetries int) (*Fetcher, *[]time.Duration) {
	var sleeps []time.Duration
	f := New(
		WithMinInterval(0),
		WithMaxRetries(maxRetries),
		WithBaseDelay(100*time.Millisecond),
		WithMaxBackoff(1*time.Second),
	)
	f.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return f, &sleeps
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	f, sleeps := newTestFetcher(3)
	calls := 0
	got, err := f.Do(context.Background(), "quote:2330", func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "ok" || calls != 1 {
		t.Fatalf("got %q calls %d", got, calls)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("expected no backoff, got %v", *sleeps)
	}
}

func TestDoPermanentAbortsAfterOneAttempt(t *testing.T) {
	f, _ := newTestFetcher(3)
	calls := 0
	_, err := f.Do(context.Background(), "quote:2330", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, &xhttp.StatusError{StatusCode: 404, Body: "not found"}
	})
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("permanent failure must not read as unavailable")
	}
}

func TestDoTransientExponentialBackoff(t *testing.T) {
	f, sleeps := newTestFetcher(3)
	calls := 0
	_, err := f.Do(context.Background(), "quote:2330", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, &xhttp.StatusError{StatusCode: 503}
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps %v", *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestDoRateLimitedLinearBackoff(t *testing.T) {
	f, sleeps := newTestFetcher(3)
	_, err := f.Do(context.Background(), "quote:2330", func(ctx context.Context) ([]byte, error) {
		return nil, &xhttp.StatusError{StatusCode: 429}
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}
}

func TestDoBackoffCapped(t *testing.T) {
	f, sleeps := newTestFetcher(6)
	_, _ = f.Do(context.Background(), "quote:2330", func(ctx context.Context) ([]byte, error) {
		return nil, &xhttp.StatusError{StatusCode: 500}
	})
	for _, d := range *sleeps {
		if d > time.Second {
			t.Fatalf("backoff %v exceeds cap", d)
		}
	}
}

func TestDoDeadlineCountsAsTransient(t *testing.T) {
	f, _ := newTestFetcher(2)
	calls := 0
	_, err := f.Do(context.Background(), "quote:2330", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	if calls != 2 {
		t.Fatalf("deadline expiry should retry, got %d attempts", calls)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&xhttp.StatusError{StatusCode: 429}, RateLimited},
		{&xhttp.StatusError{StatusCode: 500}, Transient},
		{&xhttp.StatusError{StatusCode: 400}, Permanent},
		{&xhttp.StatusError{StatusCode: 404}, Permanent},
		{context.DeadlineExceeded, Transient},
		{errors.New("connection reset"), Transient},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestGovernorSpacing(t *testing.T) {
	g := NewGovernor(50 * time.Millisecond)
	base := time.Date(2024, 10, 10, 9, 0, 0, 0, time.UTC)
	now := base
	g.now = func() time.Time { return now }

	// first call issues immediately
	start := time.Now()
	if err := g.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Fatalf("first call should not block")
	}

	// second call at the same instant must wait the full interval
	start = time.Now()
	if err := g.Wait(context.Background(), "k"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected ~50ms spacing, waited %v", elapsed)
	}
}

func TestGovernorIndependentKeys(t *testing.T) {
	g := NewGovernor(time.Hour)
	if err := g.Wait(context.Background(), "a"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait(context.Background(), "b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("different key must not be throttled")
	}
}

func TestGovernorContextCancel(t *testing.T) {
	g := NewGovernor(time.Hour)
	_ = g.Wait(context.Background(), "k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
