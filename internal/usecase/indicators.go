package usecase

import (
	"context"
	"fmt"
	"time"

	"TwsePulse/internal/domain/models"
	drepo "TwsePulse/internal/domain/repository"
	"TwsePulse/internal/service/indicator"
	"TwsePulse/pkg/cache"
)

// IndicatorResult pairs the bar series with its computed indicator set.
type IndicatorResult struct {
	Symbol string
	Bars   []models.Bar
	Set    models.IndicatorSet
	Stale  bool
}

// IndicatorService fetches history through the cache and runs the
// indicator engine over it.
type IndicatorService struct {
	source  drepo.MarketSource
	store   cache.Store[[]models.Bar]
	engine  *indicator.Engine
	metrics drepo.Metrics
	ttl     time.Duration
}

// NewIndicatorService creates an IndicatorService.
func NewIndicatorService(source drepo.MarketSource, store cache.Store[[]models.Bar], engine *indicator.Engine, ttl time.Duration, metrics drepo.Metrics) *IndicatorService {
	return &IndicatorService{
		source:  source,
		store:   store,
		engine:  engine,
		metrics: metrics,
		ttl:     ttl,
	}
}

// Compute returns indicators for the trailing `days` of rawSymbol's
// history. Too little history to fill any window is a typed
// InsufficientData failure, distinct from upstream ones.
func (s *IndicatorService) Compute(ctx context.Context, rawSymbol string, days int) (*IndicatorResult, error) {
	symbol, appErr := NormalizeSymbol(rawSymbol)
	if appErr != nil {
		return nil, appErr
	}

	key := fmt.Sprintf("history:%s:%d", symbol, days)
	bars, stale, err := s.store.GetOrFetch(ctx, key, s.ttl, func(ctx context.Context) ([]models.Bar, error) {
		return s.source.History(ctx, symbol, days)
	})
	if err != nil {
		s.recordCache("history", "error")
		return nil, mapUpstreamError(err)
	}
	s.recordCache("history", cacheResult(stale))

	if len(bars) < 2 {
		return nil, errInsufficientData(symbol, len(bars))
	}

	return &IndicatorResult{
		Symbol: symbol,
		Bars:   bars,
		Set:    s.engine.Compute(bars),
		Stale:  stale,
	}, nil
}

// Points renders the result as wire DTOs, mapping NaN to null.
func (r *IndicatorResult) Points() []models.IndicatorPoint {
	points := make([]models.IndicatorPoint, len(r.Bars))
	for i, b := range r.Bars {
		points[i] = models.IndicatorPoint{
			Date:       b.Date.Format("2006-01-02"),
			Close:      b.Close,
			MA5:        models.NullableFloat(r.Set.MA5[i]),
			MA10:       models.NullableFloat(r.Set.MA10[i]),
			MA20:       models.NullableFloat(r.Set.MA20[i]),
			K:          models.NullableFloat(r.Set.K[i]),
			D:          models.NullableFloat(r.Set.D[i]),
			RSI:        models.NullableFloat(r.Set.RSI[i]),
			MACD:       models.NullableFloat(r.Set.MACD[i]),
			MACDSignal: models.NullableFloat(r.Set.MACDSignal[i]),
			MACDHist:   models.NullableFloat(r.Set.MACDHist[i]),
			BollUpper:  models.NullableFloat(r.Set.BollUpper[i]),
			BollMid:    models.NullableFloat(r.Set.BollMid[i]),
			BollLower:  models.NullableFloat(r.Set.BollLower[i]),
		}
	}
	return points
}

func (s *IndicatorService) recordCache(kind, result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheResult(kind, result)
	}
}

func cacheResult(stale bool) string {
	if stale {
		return "stale"
	}
	return "hit"
}
