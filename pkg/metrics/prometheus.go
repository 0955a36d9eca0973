package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	calculations *prometheus.CounterVec
	healthScore  *prometheus.HistogramVec
	creditLimit  *prometheus.HistogramVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder's collectors with reg (the default registry when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		calculations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_calculations_total",
				Help: "Credit calculations by mode; preview=true were not persisted",
			},
			[]string{"mode", "preview"},
		),
		healthScore: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_health_score",
				Help:    "Distribution of composite credit health scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"mode"},
		),
		creditLimit: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_limit_amount",
				Help:    "Distribution of recommended credit limits",
				Buckets: []float64{1000, 2500, 5000, 10000, 25000, 50000, 100000, 250000, 1000000},
			},
			[]string{"mode"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCalculation(mode string, preview bool) {
	r.calculations.WithLabelValues(mode, strconv.FormatBool(preview)).Inc()
}

func (r *Recorder) RecordHealthScore(mode string, score float64) {
	r.healthScore.WithLabelValues(mode).Observe(score)
}

func (r *Recorder) RecordCreditLimit(mode string, limit float64) {
	r.creditLimit.WithLabelValues(mode).Observe(limit)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCalculation(string, bool)    {}
func (Nop) RecordHealthScore(string, float64) {}
func (Nop) RecordCreditLimit(string, float64) {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
