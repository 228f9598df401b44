package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"TwsePulse/internal/domain/models"
	drepo "TwsePulse/internal/domain/repository"
	"TwsePulse/internal/service/overlap"
	"TwsePulse/internal/service/report"
	"TwsePulse/pkg/cache"
	applogger "TwsePulse/pkg/logger"
)

const holdingsWorkers = 4

// OverlapService computes ETF overlap and yield analytics over the
// configured fund list. Holdings are fetched through the cache with a
// bounded worker fan-out; funds that fail to resolve are skipped, never
// fatal.
type OverlapService struct {
	source    drepo.MarketSource
	store     cache.Store[*models.FundHoldings]
	engine    *overlap.Engine
	quotes    *QuoteService
	formatter *report.Formatter
	notifier  drepo.Notifier
	logger    *applogger.Logger
	funds     []string
	ttl       time.Duration
}

// OverlapOption configures OverlapService.
type OverlapOption func(*OverlapService)

// WithNotifier sets the broadcast notifier.
func WithNotifier(n drepo.Notifier) OverlapOption {
	return func(s *OverlapService) { s.notifier = n }
}

// WithQuotes wires the quote pipeline for the yield ranking.
func WithQuotes(q *QuoteService) OverlapOption {
	return func(s *OverlapService) { s.quotes = q }
}

// WithOverlapLogger sets the logger.
func WithOverlapLogger(l *applogger.Logger) OverlapOption {
	return func(s *OverlapService) { s.logger = l }
}

// NewOverlapService creates an OverlapService.
func NewOverlapService(
	source drepo.MarketSource,
	store cache.Store[*models.FundHoldings],
	engine *overlap.Engine,
	formatter *report.Formatter,
	funds []string,
	ttl time.Duration,
	opts ...OverlapOption,
) *OverlapService {
	s := &OverlapService{
		source:    source,
		store:     store,
		engine:    engine,
		formatter: formatter,
		funds:     funds,
		ttl:       ttl,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute fetches holdings for every configured fund and runs the overlap
// engine. Funds whose holdings cannot be resolved are dropped from the
// computation.
func (s *OverlapService) Compute(ctx context.Context) (models.OverlapResult, error) {
	holdings := s.fetchHoldings(ctx)
	return s.engine.Compute(holdings), nil
}

// Ranking builds the dividend-yield ranking over the configured funds,
// sorted descending. Degraded funds are skipped.
func (s *OverlapService) Ranking(ctx context.Context) ([]models.ETFYield, error) {
	entries := make([]models.ETFYield, 0, len(s.funds))
	for _, fund := range s.funds {
		h, err := s.holdings(ctx, fund)
		if err != nil {
			s.warn("ranking: holdings failed", fund, err)
			continue
		}

		entry := models.ETFYield{Symbol: fund, Name: h.Name, Yield: h.Yield}
		if s.quotes != nil {
			if q, _, err := s.quotes.Get(ctx, fund); err == nil {
				entry.Price = q.Price
				if entry.Name == "" {
					entry.Name = q.Name
				}
			} else {
				s.warn("ranking: quote failed", fund, err)
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Yield > entries[j].Yield })
	return entries, nil
}

// Broadcast computes the overlap, formats the report, and publishes it to
// the notification channel.
func (s *OverlapService) Broadcast(ctx context.Context) error {
	res, err := s.Compute(ctx)
	if err != nil {
		return err
	}
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Notify(ctx, "etf-overlap", s.formatter.Overlap(res))
}

func (s *OverlapService) fetchHoldings(ctx context.Context) []models.FundHoldings {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []models.FundHoldings
	)
	sem := make(chan struct{}, holdingsWorkers)

	for _, fund := range s.funds {
		wg.Add(1)
		sem <- struct{}{}
		go func(fund string) {
			defer wg.Done()
			defer func() { <-sem }()

			h, err := s.holdings(ctx, fund)
			if err != nil {
				s.warn("holdings fetch failed", fund, err)
				return
			}
			mu.Lock()
			results = append(results, *h)
			mu.Unlock()
		}(fund)
	}
	wg.Wait()

	// deterministic order regardless of goroutine completion
	sort.Slice(results, func(i, j int) bool { return results[i].Fund < results[j].Fund })
	return results
}

func (s *OverlapService) holdings(ctx context.Context, fund string) (*models.FundHoldings, error) {
	h, _, err := s.store.GetOrFetch(ctx, "holdings:"+fund, s.ttl, func(ctx context.Context) (*models.FundHoldings, error) {
		return s.source.Holdings(ctx, fund)
	})
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return h, nil
}

func (s *OverlapService) warn(msg, fund string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, applogger.String("fund", fund), applogger.Error(err))
	}
}
