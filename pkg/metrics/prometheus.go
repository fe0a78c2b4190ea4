package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	acquisitions *prometheus.CounterVec
	itemFailures *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on reg. A nil reg
// means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		acquisitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpull_acquisitions_total",
				Help: "Acquisition attempts by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		itemFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpull_item_failures_total",
				Help: "Per-asset fetch failures by kind",
			},
			[]string{"kind"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinpull_last_price",
				Help: "Last acquired price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

// RecordAcquisition counts one finished or rejected attempt.
func (r *Recorder) RecordAcquisition(mode, outcome string) {
	r.acquisitions.WithLabelValues(mode, outcome).Inc()
}

// RecordItemFailure counts one skipped asset.
func (r *Recorder) RecordItemFailure(kind string) {
	r.itemFailures.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
