package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"TwsePulse/internal/domain/models"
	"TwsePulse/internal/service/fetch"
	"TwsePulse/internal/service/overlap"
	"TwsePulse/internal/service/report"
	"TwsePulse/pkg/cache"
)

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

func holdingsOf(fund string, symbols ...string) *models.FundHoldings {
	return &models.FundHoldings{Fund: fund, Name: "fund " + fund, Symbols: symbols}
}

func newOverlapService(src *fakeSource, funds []string, opts ...OverlapOption) *OverlapService {
	return NewOverlapService(
		src,
		cache.NewMemoryStore[*models.FundHoldings](),
		overlap.New(),
		report.New(0.3),
		funds,
		time.Minute,
		opts...,
	)
}

func TestComputeOverlapSkipsFailedFunds(t *testing.T) {
	src := &fakeSource{holdingsFn: func(fund string) (*models.FundHoldings, error) {
		if fund == "0056" {
			return nil, fmt.Errorf("%w: down", fetch.ErrUnavailable)
		}
		return holdingsOf(fund, "2330", "2317"), nil
	}}
	svc := newOverlapService(src, []string{"0050", "0056", "00878"})

	res, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// 0050 and 00878 survive; their identical holdings overlap fully
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs %d, want 1", len(res.Pairs))
	}
	p := res.Pairs[0]
	if p.FundA != "0050" || p.FundB != "00878" || p.Ratio != 1.0 {
		t.Fatalf("unexpected pair %+v", p)
	}
}

func TestComputeOverlapAllFundsDown(t *testing.T) {
	src := &fakeSource{holdingsFn: func(fund string) (*models.FundHoldings, error) {
		return nil, fmt.Errorf("%w: down", fetch.ErrUnavailable)
	}}
	svc := newOverlapService(src, []string{"0050", "0056"})

	res, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Pairs) != 0 {
		t.Fatalf("expected empty result")
	}
}

func TestRankingSortedByYieldDescending(t *testing.T) {
	yields := map[string]float64{"0050": 3.2, "0056": 6.1, "00878": 5.0}
	src := &fakeSource{
		holdingsFn: func(fund string) (*models.FundHoldings, error) {
			h := holdingsOf(fund, "2330")
			h.Yield = yields[fund]
			return h, nil
		},
		quoteFn: func(channel, symbol string) (*models.Quote, error) {
			return testQuote(symbol, 100), nil
		},
	}
	svc := newOverlapService(src, []string{"0050", "0056", "00878"},
		WithQuotes(NewQuoteService(src, cache.NewMemoryStore[*models.Quote](), time.Minute)))

	entries, err := svc.Ranking(context.Background())
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries %d", len(entries))
	}
	want := []string{"0056", "00878", "0050"}
	for i, w := range want {
		if entries[i].Symbol != w {
			t.Fatalf("order %v, want %v", entries, want)
		}
	}
	if entries[0].Price != 100 {
		t.Fatalf("price %v", entries[0].Price)
	}
}

func TestRankingSkipsDegradedFunds(t *testing.T) {
	src := &fakeSource{holdingsFn: func(fund string) (*models.FundHoldings, error) {
		if fund == "0056" {
			return nil, fmt.Errorf("%w: down", fetch.ErrUnavailable)
		}
		h := holdingsOf(fund, "2330")
		h.Yield = 3
		return h, nil
	}}
	svc := newOverlapService(src, []string{"0050", "0056"})

	entries, err := svc.Ranking(context.Background())
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(entries) != 1 || entries[0].Symbol != "0050" {
		t.Fatalf("entries %v", entries)
	}
}

func TestBroadcastPublishesFormattedReport(t *testing.T) {
	notifier := &fakeNotifier{}
	src := &fakeSource{holdingsFn: func(fund string) (*models.FundHoldings, error) {
		return holdingsOf(fund, "2330", "2317", "2454"), nil
	}}
	svc := newOverlapService(src, []string{"0050", "0056"}, WithNotifier(notifier))

	if err := svc.Broadcast(context.Background()); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(notifier.bodies) != 1 || notifier.subjects[0] != "etf-overlap" {
		t.Fatalf("notifications %v", notifier.subjects)
	}
	if !strings.Contains(notifier.bodies[0], "0050") || !strings.Contains(notifier.bodies[0], "100.00%") {
		t.Fatalf("report body:\n%s", notifier.bodies[0])
	}
}

func TestHoldingsCached(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	src := &fakeSource{holdingsFn: func(fund string) (*models.FundHoldings, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return holdingsOf(fund, "2330"), nil
	}}
	svc := newOverlapService(src, []string{"0050", "0056"})

	for i := 0; i < 3; i++ {
		if _, err := svc.Compute(context.Background()); err != nil {
			t.Fatalf("compute: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("holdings fetched %d times, want 2", calls)
	}
}
