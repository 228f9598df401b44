package fetch

import (
	"context"
	"sync"
	"time"
)

// Governor enforces per-key minimum spacing between upstream requests.
// Issuance times are reserved under the lock, so concurrent callers for one
// key queue up at minInterval spacing rather than stampeding.
type Governor struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastIssued  map[string]time.Time
	now         func() time.Time
}

// NewGovernor creates a governor with the given per-key minimum interval.
func NewGovernor(minInterval time.Duration) *Governor {
	return &Governor{
		minInterval: minInterval,
		lastIssued:  make(map[string]time.Time),
		now:         time.Now,
	}
}

// Wait blocks until key may issue another request, or ctx is done. The
// issuance slot is reserved before waiting, success or failure of the
// subsequent request does not matter.
func (g *Governor) Wait(ctx context.Context, key string) error {
	g.mu.Lock()
	now := g.now()
	issueAt := now
	if last, ok := g.lastIssued[key]; ok {
		if next := last.Add(g.minInterval); next.After(now) {
			issueAt = next
		}
	}
	g.lastIssued[key] = issueAt
	g.mu.Unlock()

	delay := issueAt.Sub(now)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
