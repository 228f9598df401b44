package models

import "math"

// Requests for market HTTP endpoints. Defined in domain for consistency and reuse.

type QuoteRequest struct {
	Symbol string `param:"symbol" query:"symbol" json:"symbol" validate:"required"`
}

type IndicatorRequest struct {
	Symbol string `param:"symbol" query:"symbol" json:"symbol" validate:"required"`
	Days   int    `query:"days" json:"days" default:"80" validate:"gte=1,lte=400"`
}

type OverlapRequest struct {
	Threshold float64 `query:"threshold" json:"threshold" default:"0" validate:"gte=0,lte=1"`
}

// QuoteResponse is the wire form of a Quote.
type QuoteResponse struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	PrevClose     float64 `json:"prevClose"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	AsOf          string  `json:"asOf"`
	Stale         bool    `json:"stale,omitempty"`
}

// IndicatorPoint is one bar of indicator output. Values undefined before a
// window fills are null.
type IndicatorPoint struct {
	Date       string   `json:"date"`
	Close      float64  `json:"close"`
	MA5        *float64 `json:"ma5"`
	MA10       *float64 `json:"ma10"`
	MA20       *float64 `json:"ma20"`
	K          *float64 `json:"k"`
	D          *float64 `json:"d"`
	RSI        *float64 `json:"rsi"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macdSignal"`
	MACDHist   *float64 `json:"macdHist"`
	BollUpper  *float64 `json:"bollUpper"`
	BollMid    *float64 `json:"bollMid"`
	BollLower  *float64 `json:"bollLower"`
}

// OverlapPairResponse is the wire form of one overlap pair.
type OverlapPairResponse struct {
	FundA  string   `json:"fundA"`
	FundB  string   `json:"fundB"`
	Ratio  float64  `json:"ratio"`
	Shared []string `json:"shared"`
}

// NullableFloat maps NaN to nil for JSON encoding.
func NullableFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
