package models

import "time"

// Quote is a normalized point-in-time market snapshot for one symbol.
// Instances are immutable; a refresh produces a new value.
type Quote struct {
	Symbol        string
	Name          string
	Price         float64
	PrevClose     float64
	Change        float64
	ChangePercent float64
	Open          float64
	High          float64
	Low           float64
	Volume        float64
	AsOf          time.Time
}

// Bar is one daily OHLCV record, oldest-first in a series.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot is the archive record pushed to the audit sink after a
// successful upstream fetch.
type Snapshot struct {
	Quote      Quote
	Channel    string // "tse", "otc", "futures"
	FetchedAt  time.Time
	ServedFrom string // "upstream" on archive; cache serves are not archived
}
