package models

// IndicatorSet holds per-bar indicator values aligned index-for-index with
// the input series. Undefined values (before a window fills) are NaN; the
// HTTP layer maps them to null.
type IndicatorSet struct {
	MA5        []float64
	MA10       []float64
	MA20       []float64
	K          []float64
	D          []float64
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	BollMid    []float64
	BollUpper  []float64
	BollLower  []float64
}

// Len returns the number of bars the set covers.
func (s IndicatorSet) Len() int {
	return len(s.MA5)
}
