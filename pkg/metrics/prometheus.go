package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	upstreamAttempts *prometheus.CounterVec
	cacheResults     *prometheus.CounterVec
	staleServes      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		upstreamAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twsepulse_upstream_attempts_total",
				Help: "Upstream fetch attempts by request key and outcome",
			},
			[]string{"key", "outcome"},
		),
		cacheResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twsepulse_cache_requests_total",
				Help: "Cache lookups by data kind and result (hit, miss)",
			},
			[]string{"kind", "result"},
		),
		staleServes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twsepulse_stale_serves_total",
				Help: "Responses served from an expired cache entry because upstream failed",
			},
			[]string{"kind"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "twsepulse_last_price",
				Help: "Last normalized price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "twsepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordUpstreamAttempt records one upstream fetch attempt and its outcome.
func (r *Recorder) RecordUpstreamAttempt(key, outcome string) {
	r.upstreamAttempts.WithLabelValues(key, outcome).Inc()
}

// RecordCacheResult records a cache lookup result.
func (r *Recorder) RecordCacheResult(kind, result string) {
	r.cacheResults.WithLabelValues(kind, result).Inc()
}

// RecordStaleServe records a degraded response served from stale data.
func (r *Recorder) RecordStaleServe(kind string) {
	r.staleServes.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
