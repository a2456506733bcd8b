package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticks     *prometheus.CounterVec
	events    *prometheus.CounterVec
	proposals *prometheus.CounterVec
	levels    *prometheus.GaugeVec
	errors    *prometheus.CounterVec
	lastPrice *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqsweep_ticks_total",
				Help: "Price updates evaluated by the engine",
			},
			[]string{"symbol"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqsweep_decision_events_total",
				Help: "Decision events emitted by kind",
			},
			[]string{"kind"},
		),
		proposals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqsweep_proposals_total",
				Help: "Trade proposals delivered to execution",
			},
			[]string{"symbol", "direction"},
		),
		levels: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "liqsweep_levels",
				Help: "Tracked liquidity levels by state",
			},
			[]string{"state"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqsweep_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "liqsweep_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liqsweep_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(symbol string) { r.ticks.WithLabelValues(symbol).Inc() }

func (r *Recorder) RecordEvent(kind string) { r.events.WithLabelValues(kind).Inc() }

func (r *Recorder) RecordProposal(symbol, direction string) {
	r.proposals.WithLabelValues(symbol, direction).Inc()
}

// RecordLevels overwrites the per-state gauge; states absent from counts read 0.
func (r *Recorder) RecordLevels(counts map[string]int) {
	r.levels.Reset()
	for state, n := range counts {
		r.levels.WithLabelValues(state).Set(float64(n))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) { r.errors.WithLabelValues(kind).Inc() }

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
