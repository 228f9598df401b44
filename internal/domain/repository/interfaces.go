package repository

import (
	"context"

	"TwsePulse/internal/domain/models"
)

// MarketSource is the upstream exchange API boundary.
type MarketSource interface {
	// Quote fetches a live snapshot for one symbol on a channel ("tse",
	// "otc", "futures").
	Quote(ctx context.Context, channel, symbol string) (*models.Quote, error)
	// History fetches daily bars covering roughly the trailing `days`
	// calendar days, oldest first.
	History(ctx context.Context, symbol string, days int) ([]models.Bar, error)
	// Holdings fetches the constituent list of one ETF.
	Holdings(ctx context.Context, fund string) (*models.FundHoldings, error)
}

// SnapshotSink archives normalized snapshots. Writes are best-effort audit;
// callers log failures and move on.
type SnapshotSink interface {
	Init(ctx context.Context) error
	Archive(ctx context.Context, s *models.Snapshot) error
	Health(ctx context.Context) error
	Close() error
}

// Notifier delivers formatted reports to the notification channel.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
	Close() error
}

// Metrics abstracts the operational counters the use cases record.
type Metrics interface {
	RecordUpstreamAttempt(key, outcome string)
	RecordCacheResult(kind, result string)
	RecordStaleServe(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(operation string, seconds float64)
}
