package indicator

import (
	"math"

	"TwsePulse/internal/domain/models"
)

const (
	kdWindow    = 9
	rsiPeriod   = 14
	macdFast    = 12
	macdSlow    = 26
	macdSignal  = 9
	bollWindow  = 20
	bollStdMult = 2.0
)

// Engine computes technical indicators over an ordered daily bar series.
// Pure computation: no clock, no defaults pulled from anywhere. Values a
// window cannot yet define are NaN, aligned index-for-index with input.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// Compute derives the full indicator set for bars (oldest first).
func (e *Engine) Compute(bars []models.Bar) models.IndicatorSet {
	n := len(bars)
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	set := models.IndicatorSet{
		MA5:  movingAverage(closes, 5),
		MA10: movingAverage(closes, 10),
		MA20: movingAverage(closes, 20),
		RSI:  rsi(closes, rsiPeriod),
	}
	set.K, set.D = stochastic(bars, kdWindow)
	set.MACD, set.MACDSignal, set.MACDHist = macd(closes)
	set.BollMid, set.BollUpper, set.BollLower = bollinger(closes, bollWindow, bollStdMult)
	return set
}

// movingAverage is the mean of the trailing w closes, NaN before the
// window fills.
func movingAverage(closes []float64, w int) []float64 {
	out := nanSlice(len(closes))
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= w {
			sum -= closes[i-w]
		}
		if i >= w-1 {
			out[i] = sum / float64(w)
		}
	}
	return out
}

// stochastic computes the K/D oscillator. RSV looks back over a w-bar
// high/low range, degenerating to 50 when the range is zero. K and D are
// smoothed 2/3 previous + 1/3 new, seeded at 50.
func stochastic(bars []models.Bar, w int) (k, d []float64) {
	n := len(bars)
	k = nanSlice(n)
	d = nanSlice(n)

	prevK, prevD := 50.0, 50.0
	for i := w - 1; i < n; i++ {
		lo, hi := bars[i].Low, bars[i].High
		for j := i - w + 1; j < i; j++ {
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
			if bars[j].High > hi {
				hi = bars[j].High
			}
		}

		rsv := 50.0
		if hi != lo {
			rsv = (bars[i].Close - lo) / (hi - lo) * 100
		}

		prevK = prevK*2/3 + rsv/3
		prevD = prevD*2/3 + prevK/3
		k[i] = prevK
		d[i] = prevD
	}
	return k, d
}

// rsi is the simple rolling-mean flavor: trailing p-bar mean of gains over
// mean of losses. A zero average loss reads as RSI 100.
func rsi(closes []float64, p int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < 2 {
		return out
	}

	gains := make([]float64, n) // index i holds the move into bar i
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := p; i < n; i++ {
		var gainSum, lossSum float64
		for j := i - p + 1; j <= i; j++ {
			gainSum += gains[j]
			lossSum += losses[j]
		}
		avgGain := gainSum / float64(p)
		avgLoss := lossSum / float64(p)

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// macd is EMA(fast)−EMA(slow) with an EMA(signal) line, EMAs seeded at the
// first close. Defined from index 0.
func macd(closes []float64) (line, signal, hist []float64) {
	n := len(closes)
	line = nanSlice(n)
	signal = nanSlice(n)
	hist = nanSlice(n)
	if n == 0 {
		return line, signal, hist
	}

	fast := ema(closes, macdFast)
	slow := ema(closes, macdSlow)
	for i := 0; i < n; i++ {
		line[i] = fast[i] - slow[i]
	}
	sig := ema(line, macdSignal)
	for i := 0; i < n; i++ {
		signal[i] = sig[i]
		hist[i] = line[i] - sig[i]
	}
	return line, signal, hist
}

func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// bollinger computes middle/upper/lower bands with population standard
// deviation over the window.
func bollinger(closes []float64, w int, mult float64) (mid, upper, lower []float64) {
	n := len(closes)
	mid = movingAverage(closes, w)
	upper = nanSlice(n)
	lower = nanSlice(n)

	for i := w - 1; i < n; i++ {
		mean := mid[i]
		var variance float64
		for j := i - w + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(w))
		upper[i] = mean + mult*std
		lower[i] = mean - mult*std
	}
	return mid, upper, lower
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
