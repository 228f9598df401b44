package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TwsePulse/internal/domain/models"
	"TwsePulse/internal/service/indicator"
	"TwsePulse/internal/service/overlap"
	"TwsePulse/internal/service/report"
	"TwsePulse/internal/usecase"
	"TwsePulse/pkg/cache"
	applogger "TwsePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type fakeSource struct {
	holdings map[string]*models.FundHoldings
}

func (f *fakeSource) Quote(ctx context.Context, channel, symbol string) (*models.Quote, error) {
	return &models.Quote{
		Symbol:    symbol,
		Name:      "台積電",
		Price:     600,
		PrevClose: 590,
		Change:    10,
		Volume:    12345,
		AsOf:      time.Date(2024, 5, 20, 13, 30, 0, 0, time.UTC),
	}, nil
}

func (f *fakeSource) History(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	bars := make([]models.Bar, 30)
	for i := range bars {
		price := 100.0 + float64(i)
		bars[i] = models.Bar{
			Date:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:  price,
			High:  price + 1,
			Low:   price - 1,
			Close: price,
		}
	}
	return bars, nil
}

func (f *fakeSource) Holdings(ctx context.Context, fund string) (*models.FundHoldings, error) {
	h, ok := f.holdings[fund]
	if !ok {
		return &models.FundHoldings{Fund: fund}, nil
	}
	return h, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, src *fakeSource, funds []string) *echo.Echo {
	t.Helper()

	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	quoteStore := cache.NewMemoryStore[*models.Quote](cache.WithMaxEntries(16))
	historyStore := cache.NewMemoryStore[[]models.Bar](cache.WithMaxEntries(16))
	holdingsStore := cache.NewMemoryStore[*models.FundHoldings](cache.WithMaxEntries(16))

	quotes := usecase.NewQuoteService(src, quoteStore, time.Minute)
	indicators := usecase.NewIndicatorService(src, historyStore, indicator.New(), time.Minute, nil)
	overlapSvc := usecase.NewOverlapService(src, holdingsStore, overlap.New(), report.New(0.3), funds, time.Minute,
		usecase.WithQuotes(quotes),
	)

	e := echo.New()
	NewMarketHandler(l, quotes, indicators, overlapSvc, report.New(0.3)).RegisterRoutes(e)
	return e
}

func doGET(e *echo.Echo, target string) (*envelope, string) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return &env, rec.Body.String()
}

func TestQuoteEndpoint(t *testing.T) {
	e := newTestServer(t, &fakeSource{}, nil)

	env, body := doGET(e, "/api/quotes/2330")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}

	var q models.QuoteResponse
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if q.Symbol != "2330" || q.Price != 600 || q.Change != 10 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if q.Stale {
		t.Fatal("fresh quote flagged stale")
	}
}

func TestQuoteEndpointInvalidSymbol(t *testing.T) {
	e := newTestServer(t, &fakeSource{}, nil)

	env, body := doGET(e, "/api/quotes/12x4")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}
	if !strings.Contains(body, "ERR_INVALID_SYMBOL") {
		t.Fatalf("missing error code in body: %s", body)
	}
}

func TestFuturesEndpoint(t *testing.T) {
	e := newTestServer(t, &fakeSource{}, nil)

	env, body := doGET(e, "/api/futures")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}

	var q models.QuoteResponse
	if err := json.Unmarshal(env.Data, &q); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if q.Symbol != usecase.FuturesSymbol {
		t.Fatalf("symbol = %q, want %q", q.Symbol, usecase.FuturesSymbol)
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	e := newTestServer(t, &fakeSource{}, nil)

	env, body := doGET(e, "/api/quotes/2330/indicators?days=30")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}

	var payload struct {
		Symbol string                  `json:"symbol"`
		Points []models.IndicatorPoint `json:"points"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Symbol != "2330" {
		t.Fatalf("symbol = %q", payload.Symbol)
	}
	if len(payload.Points) != 30 {
		t.Fatalf("points = %d, want 30", len(payload.Points))
	}
	if payload.Points[0].MA5 != nil {
		t.Fatal("ma5 defined before window fills")
	}
	if payload.Points[29].MA5 == nil {
		t.Fatal("ma5 undefined after window fills")
	}
}

func TestIndicatorsEndpointRejectsBadDays(t *testing.T) {
	e := newTestServer(t, &fakeSource{}, nil)

	env, body := doGET(e, "/api/quotes/2330/indicators?days=0")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}
}

func TestOverlapEndpointThresholdFilter(t *testing.T) {
	src := &fakeSource{holdings: map[string]*models.FundHoldings{
		"0050":  {Fund: "0050", Symbols: []string{"2330", "2317"}},
		"00878": {Fund: "00878", Symbols: []string{"2330", "2317"}},
		"0056":  {Fund: "0056", Symbols: []string{"9999"}},
	}}
	e := newTestServer(t, src, []string{"0050", "0056", "00878"})

	env, body := doGET(e, "/api/etf/overlap?threshold=0.5")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}

	var payload struct {
		Pairs []models.OverlapPairResponse `json:"pairs"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(payload.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1 above threshold: %s", len(payload.Pairs), body)
	}
	p := payload.Pairs[0]
	if p.FundA != "0050" || p.FundB != "00878" || p.Ratio != 1.0 {
		t.Fatalf("unexpected pair: %+v", p)
	}
}

func TestQuoteReportEndpoint(t *testing.T) {
	e := newTestServer(t, &fakeSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/quotes/2330/report", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"台積電", "2330", "當前價格"} {
		if !strings.Contains(body, want) {
			t.Fatalf("report missing %q: %s", want, body)
		}
	}
}

func TestRankingReportEndpoint(t *testing.T) {
	src := &fakeSource{holdings: map[string]*models.FundHoldings{
		"0056": {Fund: "0056", Name: "元大高股息", Symbols: []string{"2317"}, Yield: 6.8},
	}}
	e := newTestServer(t, src, []string{"0056"})

	req := httptest.NewRequest(http.MethodGet, "/api/etf/ranking/report", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "0056") || !strings.Contains(body, "6.80%") {
		t.Fatalf("ranking report missing entries: %s", body)
	}
}

func TestRankingEndpoint(t *testing.T) {
	src := &fakeSource{holdings: map[string]*models.FundHoldings{
		"0050": {Fund: "0050", Name: "元大台灣50", Symbols: []string{"2330"}, Yield: 3.1},
		"0056": {Fund: "0056", Name: "元大高股息", Symbols: []string{"2317"}, Yield: 6.8},
	}}
	e := newTestServer(t, src, []string{"0050", "0056"})

	env, body := doGET(e, "/api/etf/ranking")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, body %s", env.Status, body)
	}

	var entries []models.ETFYield
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Symbol != "0056" || entries[1].Symbol != "0050" {
		t.Fatalf("not sorted by yield: %s", body)
	}
	if entries[0].Price != 600 {
		t.Fatalf("price not filled from quote: %+v", entries[0])
	}
}
