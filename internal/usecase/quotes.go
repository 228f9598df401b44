package usecase

import (
	"context"
	"time"

	"TwsePulse/internal/domain/models"
	drepo "TwsePulse/internal/domain/repository"
	"TwsePulse/pkg/cache"
	applogger "TwsePulse/pkg/logger"
)

// FuturesSymbol is the front-month index futures channel code.
const FuturesSymbol = "TX00"

// QuoteService serves normalized quote snapshots through the cache. A
// successful upstream fetch is archived to the snapshot sink best-effort.
type QuoteService struct {
	source  drepo.MarketSource
	store   cache.Store[*models.Quote]
	sink    drepo.SnapshotSink
	metrics drepo.Metrics
	logger  *applogger.Logger
	ttl     time.Duration
}

// QuoteOption configures QuoteService.
type QuoteOption func(*QuoteService)

// WithSnapshotSink sets the audit sink.
func WithSnapshotSink(sink drepo.SnapshotSink) QuoteOption {
	return func(s *QuoteService) { s.sink = sink }
}

// WithQuoteMetrics sets the metrics recorder.
func WithQuoteMetrics(m drepo.Metrics) QuoteOption {
	return func(s *QuoteService) { s.metrics = m }
}

// WithQuoteLogger sets the logger.
func WithQuoteLogger(l *applogger.Logger) QuoteOption {
	return func(s *QuoteService) { s.logger = l }
}

// NewQuoteService creates a QuoteService.
func NewQuoteService(source drepo.MarketSource, store cache.Store[*models.Quote], ttl time.Duration, opts ...QuoteOption) *QuoteService {
	s := &QuoteService{
		source: source,
		store:  store,
		ttl:    ttl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the quote for a raw symbol, serving live cache entries and
// degrading to stale ones when the upstream is down. stale reports
// degraded data.
func (s *QuoteService) Get(ctx context.Context, rawSymbol string) (*models.Quote, bool, error) {
	symbol, appErr := NormalizeSymbol(rawSymbol)
	if appErr != nil {
		return nil, false, appErr
	}
	return s.lookup(ctx, "tse", symbol)
}

// Futures returns the index futures snapshot. It shares the quote pipeline
// under a fixed channel key and skips symbol normalization.
func (s *QuoteService) Futures(ctx context.Context) (*models.Quote, bool, error) {
	return s.lookup(ctx, "tse", FuturesSymbol)
}

func (s *QuoteService) lookup(ctx context.Context, channel, symbol string) (*models.Quote, bool, error) {
	key := "quote:" + channel + ":" + symbol

	q, stale, err := s.store.GetOrFetch(ctx, key, s.ttl, func(ctx context.Context) (*models.Quote, error) {
		quote, err := s.source.Quote(ctx, channel, symbol)
		if err != nil {
			return nil, err
		}
		s.archive(ctx, channel, quote)
		if s.metrics != nil {
			s.metrics.RecordLastPrice(symbol, quote.Price)
		}
		return quote, nil
	})
	if err != nil {
		s.recordCache("quote", "error")
		return nil, false, mapUpstreamError(err)
	}

	if stale {
		s.recordCache("quote", "stale")
		if s.metrics != nil {
			s.metrics.RecordStaleServe("quote")
		}
	} else {
		s.recordCache("quote", "hit")
	}
	return q, stale, nil
}

// archive pushes the snapshot to the audit sink. Failures are logged and
// swallowed; audit never blocks a quote response.
func (s *QuoteService) archive(ctx context.Context, channel string, q *models.Quote) {
	if s.sink == nil {
		return
	}
	snap := &models.Snapshot{
		Quote:      *q,
		Channel:    channel,
		FetchedAt:  time.Now(),
		ServedFrom: "upstream",
	}
	if err := s.sink.Archive(ctx, snap); err != nil && s.logger != nil {
		s.logger.Warn("snapshot archive failed",
			applogger.String("symbol", q.Symbol),
			applogger.Error(err),
		)
	}
}

func (s *QuoteService) recordCache(kind, result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheResult(kind, result)
	}
}
