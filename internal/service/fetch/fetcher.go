package fetch

import (
	"context"
	"fmt"
	"time"

	drepo "TwsePulse/internal/domain/repository"
	applogger "TwsePulse/pkg/logger"
)

// DoFunc performs one upstream request attempt.
type DoFunc func(ctx context.Context) ([]byte, error)

// Option configures Fetcher.
type Option func(*Fetcher)

// Fetcher wraps upstream calls with per-key spacing and kind-aware retry.
type Fetcher struct {
	governor   *Governor
	maxRetries int
	baseDelay  time.Duration
	maxBackoff time.Duration
	metrics    drepo.Metrics
	logger     *applogger.Logger

	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		governor:   NewGovernor(200 * time.Millisecond),
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		maxBackoff: 8 * time.Second,
		sleep:      sleepTimer,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithMinInterval sets the per-key minimum request spacing.
func WithMinInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.governor = NewGovernor(d)
	}
}

// WithMaxRetries sets the attempt budget.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithMaxBackoff caps exponential backoff.
func WithMaxBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.maxBackoff = d
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m drepo.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// Do runs fn under the governor and retry policy for requestKey. Rate
// limited failures back off linearly (attempt x base), transient failures
// exponentially (2^attempt x base, capped), permanent failures abort after
// a single attempt. Attempt deadline expiry counts as transient.
func (f *Fetcher) Do(ctx context.Context, requestKey string, fn DoFunc) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if err := f.governor.Wait(ctx, requestKey); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		start := time.Now()
		payload, err := fn(ctx)
		if err == nil {
			f.record(requestKey, "success", time.Since(start))
			return payload, nil
		}
		lastErr = err

		kind := Classify(err)
		f.record(requestKey, kind.String(), time.Since(start))
		if f.logger != nil {
			f.logger.Warn("upstream attempt failed",
				applogger.String("key", requestKey),
				applogger.Int("attempt", attempt),
				applogger.String("kind", kind.String()),
				applogger.Error(err),
			)
		}

		if kind == Permanent {
			return nil, &Error{Kind: Permanent, Err: fmt.Errorf("%w: %v", ErrRejected, err)}
		}
		if attempt == f.maxRetries {
			break
		}

		if err := f.sleep(ctx, f.backoff(kind, attempt)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return nil, &Error{Kind: Classify(lastErr), Err: fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, f.maxRetries, lastErr)}
}

func (f *Fetcher) backoff(kind Kind, attempt int) time.Duration {
	if kind == RateLimited {
		return time.Duration(attempt) * f.baseDelay
	}
	d := f.baseDelay * (1 << attempt)
	if d > f.maxBackoff {
		d = f.maxBackoff
	}
	return d
}

func (f *Fetcher) record(key, outcome string, dur time.Duration) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordUpstreamAttempt(key, outcome)
	f.metrics.RecordLatency("upstream", dur.Seconds())
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
