package twse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"TwsePulse/internal/domain/models"
	"TwsePulse/internal/service/fetch"
	xhttp "TwsePulse/pkg/http"
	applogger "TwsePulse/pkg/logger"
	"TwsePulse/pkg/util"
)

// ErrDataInvalid marks a payload the exchange answered with but that cannot
// be normalized (missing price/name, malformed rows). Never retried.
var ErrDataInvalid = errors.New("upstream data invalid")

// Config holds the exchange endpoints.
type Config struct {
	QuoteURL    string // getStockInfo style snapshot endpoint
	HistoryURL  string // STOCK_DAY style monthly bar endpoint
	HoldingsURL string // ETF constituent endpoint
	UserAgent   string
}

// Client fetches and normalizes exchange payloads. All network traffic goes
// through the resilient fetcher.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	fetcher *fetch.Fetcher
	logger  *applogger.Logger
	now     func() time.Time
}

// New creates an exchange client.
func New(cfg Config, hc *xhttp.Client, f *fetch.Fetcher, l *applogger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    hc,
		fetcher: f,
		logger:  l,
		now:     time.Now,
	}
}

// quoteEnvelope is the getStockInfo response shape.
type quoteEnvelope struct {
	MsgArray []quoteRow `json:"msgArray"`
}

type quoteRow struct {
	Code      string `json:"c"`
	Name      string `json:"n"`
	Price     string `json:"z"`
	PrevClose string `json:"y"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	TLong     string `json:"tlong"` // trade time, epoch ms
}

// Quote fetches a live snapshot for symbol on channel.
func (c *Client) Quote(ctx context.Context, channel, symbol string) (*models.Quote, error) {
	exCh := fmt.Sprintf("%s_%s.tw", channel, symbol)

	raw, err := c.fetcher.Do(ctx, "quote:"+exCh, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, c.cfg.QuoteURL, map[string][]string{
			"ex_ch": {exCh},
			"json":  {"1"},
			"delay": {"0"},
		})
	})
	if err != nil {
		return nil, err
	}

	var env quoteEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrDataInvalid, err)
	}
	if len(env.MsgArray) == 0 {
		return nil, fmt.Errorf("%w: empty msgArray for %s", ErrDataInvalid, symbol)
	}

	return c.normalizeQuote(symbol, env.MsgArray[0])
}

func (c *Client) normalizeQuote(symbol string, row quoteRow) (*models.Quote, error) {
	price, ok := util.ParseCommaFloat(row.Price)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no trade price", ErrDataInvalid, symbol)
	}
	if row.Name == "" {
		return nil, fmt.Errorf("%w: %s has no name", ErrDataInvalid, symbol)
	}

	prevClose, _ := util.ParseCommaFloat(row.PrevClose)
	change := price - prevClose
	changePercent := 0.0
	if prevClose != 0 {
		changePercent = change / prevClose * 100
	}

	open, _ := util.ParseCommaFloat(row.Open)
	high, _ := util.ParseCommaFloat(row.High)
	low, _ := util.ParseCommaFloat(row.Low)
	volume, _ := util.ParseCommaFloat(row.Volume)

	asOf := c.now()
	if ms, err := strconv.ParseInt(row.TLong, 10, 64); err == nil && ms > 0 {
		asOf = time.UnixMilli(ms).In(util.Taipei())
	}

	return &models.Quote{
		Symbol:        symbol,
		Name:          row.Name,
		Price:         price,
		PrevClose:     prevClose,
		Change:        change,
		ChangePercent: changePercent,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        volume,
		AsOf:          asOf,
	}, nil
}

// historyEnvelope is the STOCK_DAY response shape. Rows are
// [date, shares, value, open, high, low, close, change, transactions]
// with ROC-era dates and comma-grouped numbers.
type historyEnvelope struct {
	Stat string     `json:"stat"`
	Data [][]string `json:"data"`
}

// History fetches daily bars covering roughly the trailing days, oldest
// first. The exchange serves one month per request.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	now := c.now().In(util.Taipei())
	cutoff := now.AddDate(0, 0, -days)

	months := days/28 + 2
	var bars []models.Bar
	for i := 0; i < months; i++ {
		month := now.AddDate(0, -i, 0)
		monthBars, err := c.historyMonth(ctx, symbol, month)
		if err != nil {
			return nil, err
		}
		bars = append(bars, monthBars...)
	}

	filtered := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(cutoff) {
			filtered = append(filtered, b)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Date.Before(filtered[j].Date) })
	return filtered, nil
}

func (c *Client) historyMonth(ctx context.Context, symbol string, month time.Time) ([]models.Bar, error) {
	monthParam := util.FormatROCMonth(month)

	raw, err := c.fetcher.Do(ctx, "history:"+symbol, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, c.cfg.HistoryURL, map[string][]string{
			"response": {"json"},
			"date":     {monthParam},
			"stockNo":  {symbol},
		})
	})
	if err != nil {
		return nil, err
	}

	var env historyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode history: %v", ErrDataInvalid, err)
	}
	if env.Stat != "OK" {
		// months before listing answer with a non-OK stat; treat as empty
		return nil, nil
	}

	bars := make([]models.Bar, 0, len(env.Data))
	for _, row := range env.Data {
		if len(row) < 7 {
			continue
		}
		date, ok := util.ParseROCDate(row[0])
		if !ok {
			continue
		}
		closePx, ok := util.ParseCommaFloat(row[6])
		if !ok {
			// no-trade day, exchange fills "--"
			continue
		}
		open, _ := util.ParseCommaFloat(row[3])
		high, _ := util.ParseCommaFloat(row[4])
		low, _ := util.ParseCommaFloat(row[5])
		volume, _ := util.ParseCommaFloat(row[1])

		bars = append(bars, models.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
	}
	return bars, nil
}

// holdingsEnvelope is the ETF constituent endpoint response shape.
type holdingsEnvelope struct {
	Fund      string `json:"fund"`
	Name      string `json:"name"`
	YieldRate string `json:"yieldRate"`
	Holdings  []struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
		Weight string `json:"weight"`
	} `json:"holdings"`
}

// Holdings fetches the constituent list of one ETF. An empty list is a
// valid answer, not an error.
func (c *Client) Holdings(ctx context.Context, fund string) (*models.FundHoldings, error) {
	raw, err := c.fetcher.Do(ctx, "holdings:"+fund, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, c.cfg.HoldingsURL, map[string][]string{
			"fund": {fund},
		})
	})
	if err != nil {
		return nil, err
	}

	var env holdingsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode holdings: %v", ErrDataInvalid, err)
	}

	h := &models.FundHoldings{
		Fund:        fund,
		Name:        env.Name,
		Symbols:     make([]string, 0, len(env.Holdings)),
		Weights:     make(map[string]float64, len(env.Holdings)),
		RetrievedAt: c.now(),
	}
	if y, ok := util.ParseCommaFloat(env.YieldRate); ok {
		h.Yield = y
	}
	for _, row := range env.Holdings {
		if row.Symbol == "" {
			continue
		}
		h.Symbols = append(h.Symbols, row.Symbol)
		if w, ok := util.ParseCommaFloat(row.Weight); ok {
			h.Weights[row.Symbol] = w
		}
	}
	return h, nil
}

func (c *Client) get(ctx context.Context, url string, query map[string][]string) ([]byte, error) {
	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    url,
		Headers: map[string]string{
			"User-Agent": c.cfg.UserAgent,
			"Accept":     "application/json",
		},
		QueryParams: query,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
