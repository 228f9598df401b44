package twse

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TwsePulse/internal/service/fetch"
	xhttp "TwsePulse/pkg/http"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := fetch.New(fetch.WithMinInterval(0), fetch.WithMaxRetries(1))
	c := New(Config{
		QuoteURL:    srv.URL + "/getStockInfo.jsp",
		HistoryURL:  srv.URL + "/STOCK_DAY",
		HoldingsURL: srv.URL + "/holdings",
		UserAgent:   "test",
	}, xhttp.NewClient(), f, nil)
	return c, srv
}

func TestQuoteNormalization(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ex_ch"); got != "tse_2330.tw" {
			t.Errorf("ex_ch = %q", got)
		}
		w.Write([]byte(`{"msgArray":[{"c":"2330","n":"台積電","z":"600.0000","y":"590.0000","o":"595.0000","h":"602.0000","l":"594.0000","v":"21435","tlong":"1714966200000"}]}`))
	})

	q, err := c.Quote(context.Background(), "tse", "2330")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Price != 600 || q.PrevClose != 590 {
		t.Fatalf("price %v prevClose %v", q.Price, q.PrevClose)
	}
	if q.Change != 10 {
		t.Fatalf("change = %v, want 10", q.Change)
	}
	if math.Abs(q.ChangePercent-1.6949152542) > 1e-6 {
		t.Fatalf("changePercent = %v", q.ChangePercent)
	}
	if q.Name != "台積電" || q.High != 602 || q.Low != 594 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestQuoteMissingPriceIsDataInvalid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"msgArray":[{"c":"2330","n":"台積電","z":"-","y":"590.0000"}]}`))
	})

	_, err := c.Quote(context.Background(), "tse", "2330")
	if !errors.Is(err, ErrDataInvalid) {
		t.Fatalf("expected ErrDataInvalid, got %v", err)
	}
}

func TestQuoteMissingNameIsDataInvalid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"msgArray":[{"c":"2330","z":"600.0000","y":"590.0000"}]}`))
	})

	_, err := c.Quote(context.Background(), "tse", "2330")
	if !errors.Is(err, ErrDataInvalid) {
		t.Fatalf("expected ErrDataInvalid, got %v", err)
	}
}

func TestQuoteZeroPrevCloseZeroPercent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"msgArray":[{"c":"9999","n":"新上市","z":"50.0","y":"0.0"}]}`))
	})

	q, err := c.Quote(context.Background(), "tse", "9999")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.ChangePercent != 0 {
		t.Fatalf("changePercent = %v, want 0", q.ChangePercent)
	}
}

func TestFuturesChannelKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ex_ch"); got != "tse_TX00.tw" {
			t.Errorf("ex_ch = %q", got)
		}
		w.Write([]byte(`{"msgArray":[{"c":"TX00","n":"台指期","z":"21000","y":"20900"}]}`))
	})

	q, err := c.Quote(context.Background(), "tse", "TX00")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Change != 100 {
		t.Fatalf("change = %v", q.Change)
	}
}

func TestHistoryParsesMonthlyRows(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") != "20240501" {
			w.Write([]byte(`{"stat":"no data"}`))
			return
		}
		w.Write([]byte(`{"stat":"OK","data":[
			["113/05/02","32,431,199","26,478,251,336","816.00","823.00","812.00","820.00","+9.00","28,246"],
			["113/05/03","25,371,618","20,751,347,962","822.00","823.00","814.00","814.00","-6.00","24,337"],
			["113/05/06","--","--","--","--","--","--","0.00","0"]
		]}`))
	})

	c.now = func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }

	bars, err := c.History(context.Background(), "2330", 30)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// the no-trade row is dropped
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Before(bars[i-1].Date) {
			t.Fatalf("bars not sorted oldest-first")
		}
	}
	first := bars[0]
	if first.Open != 816 || first.Close != 820 || first.High != 823 || first.Low != 812 {
		t.Fatalf("unexpected bar %+v", first)
	}
}

func TestHistoryNonOKStatIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stat":"很抱歉，沒有符合條件的資料!"}`))
	})

	bars, err := c.History(context.Background(), "2330", 30)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(bars) != 0 {
		t.Fatalf("expected no bars, got %d", len(bars))
	}
}

func TestHoldingsParse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fund"); got != "0050" {
			t.Errorf("fund = %q", got)
		}
		w.Write([]byte(`{"fund":"0050","name":"元大台灣50","yieldRate":"3.5","holdings":[
			{"symbol":"2330","name":"台積電","weight":"47.2"},
			{"symbol":"2317","name":"鴻海","weight":"4.6"}
		]}`))
	})

	h, err := c.Holdings(context.Background(), "0050")
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(h.Symbols) != 2 || h.Symbols[0] != "2330" {
		t.Fatalf("symbols %v", h.Symbols)
	}
	if h.Weights["2330"] != 47.2 || h.Yield != 3.5 {
		t.Fatalf("weights %v yield %v", h.Weights, h.Yield)
	}
}

func TestHoldingsEmptyIsValid(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fund":"00999","name":"新基金","holdings":[]}`))
	})

	h, err := c.Holdings(context.Background(), "00999")
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(h.Symbols) != 0 {
		t.Fatalf("expected empty symbols")
	}
}
