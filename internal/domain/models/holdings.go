package models

import "time"

// FundHoldings is the constituent list of one ETF. Weight is retained for
// display; overlap comparison is by symbol only.
type FundHoldings struct {
	Fund        string
	Name        string
	Symbols     []string
	Weights     map[string]float64
	Yield       float64 // dividend yield, percent; 0 when unknown
	RetrievedAt time.Time
}

// OverlapPair is one unordered fund pair with a non-empty intersection.
type OverlapPair struct {
	FundA  string
	FundB  string
	Shared []string
	Ratio  float64 // |shared| / min(|A|, |B|)
}

// OverlapResult is the full pairwise overlap computation output.
type OverlapResult struct {
	Pairs      []OverlapPair
	ComputedAt time.Time
}

// ETFYield is one entry of the dividend-yield ranking.
type ETFYield struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Yield  float64 `json:"yield"` // percent
}
