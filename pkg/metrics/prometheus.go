package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	intentsEmitted *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	relax          prometheus.Gauge
	shortlistSize  prometheus.Gauge
	activeSetups   prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		intentsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_intents_emitted_total",
				Help: "Execution intents emitted, by setup type and symbol",
			},
			[]string{"setup_type", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sniper_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sniper_last_price",
				Help: "Last recorded mid price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sniper_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		relax: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_gate_relax",
			Help: "Current adaptive gate relaxation",
		}),
		shortlistSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_shortlist_size",
			Help: "Shortlist size of the last cycle",
		}),
		activeSetups: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sniper_active_setups",
			Help: "Symbols with a live setup",
		}),
	}
}

// RecordIntent records an emitted execution intent.
func (r *Recorder) RecordIntent(setupType, symbol string) {
	r.intentsEmitted.WithLabelValues(setupType, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last mid price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordRelax records the gate's current relaxation.
func (r *Recorder) RecordRelax(v float64) {
	r.relax.Set(v)
}

// RecordShortlist records the shortlist size for the cycle.
func (r *Recorder) RecordShortlist(n int) {
	r.shortlistSize.Set(float64(n))
}

// RecordActiveSetups records how many symbols hold a live setup.
func (r *Recorder) RecordActiveSetups(n int) {
	r.activeSetups.Set(float64(n))
}
