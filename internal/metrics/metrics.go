package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/suggestion-worker/internal/domain"
	"github.com/notifyhub/suggestion-worker/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	SuggestionsProcessed prometheus.Counter
	SuggestionsFailed    *prometheus.CounterVec
	FulfillmentLatency   prometheus.Histogram
	Cycles               *prometheus.CounterVec
	LastCycleTimestamp   prometheus.Gauge
	SideCallFailures     *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SuggestionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "suggestions_processed_total",
			Help: "Suggestion requests delivered and removed from the queue.",
		}),

		SuggestionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestions_failed_total",
			Help: "Suggestion requests left on the queue after a failure, by error kind.",
		}, []string{"kind"}),

		FulfillmentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suggestion_fulfillment_seconds",
			Help:    "Time from receive to notifier acceptance for processed requests.",
			Buckets: prometheus.DefBuckets,
		}),

		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestion_cycles_total",
			Help: "Polling cycles run, by outcome.",
		}, []string{"outcome"}),

		LastCycleTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "suggestion_last_cycle_timestamp_seconds",
			Help: "Unix time the last polling cycle finished.",
		}),

		SideCallFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestion_side_call_failures_total",
			Help: "Best-effort calls that failed and were ignored, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.SuggestionsProcessed,
		m.SuggestionsFailed,
		m.FulfillmentLatency,
		m.Cycles,
		m.LastCycleTimestamp,
		m.SideCallFailures,
	)

	return m
}

// WorkerHooks returns the metric callbacks expected by worker.New.
// Centralises the prometheus observation calls so the worker stays metrics-agnostic.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnProcessed: func(latency time.Duration) {
			m.SuggestionsProcessed.Inc()
			m.FulfillmentLatency.Observe(latency.Seconds())
		},
		OnFailed: func(kind domain.Kind) {
			m.SuggestionsFailed.WithLabelValues(string(kind)).Inc()
		},
		OnCycle: func(res domain.CycleResult, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "receive_error"
			}
			m.Cycles.WithLabelValues(outcome).Inc()
			if !res.FinishedAt.IsZero() {
				m.LastCycleTimestamp.Set(float64(res.FinishedAt.Unix()))
			}
		},
		OnSideCallFailure: func(op string) {
			m.SideCallFailures.WithLabelValues(op).Inc()
		},
	}
}
