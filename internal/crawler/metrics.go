package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Page outcomes, used as metric labels and error-record classifications
const (
	OutcomeFull             = "full"
	OutcomeFetchFailed      = "fetch_failed"
	OutcomeNotHTML          = "not_html"
	OutcomeProcessingError  = "processing_error"
	OutcomeRobotsDisallowed = "robots_disallowed"
)

// Metrics holds the crawler's Prometheus collectors
type Metrics struct {
	Pages           *prometheus.CounterVec
	FetchAttempts   *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	FrontierPending prometheus.Gauge
}

// NewMetrics creates the crawler collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitescope_pages_total",
			Help: "Pages recorded, by outcome.",
		}, []string{"outcome"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitescope_fetch_attempts_total",
			Help: "HTTP fetch attempts, by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitescope_fetch_duration_seconds",
			Help:    "Duration of a single fetch attempt including the body.",
			Buckets: prometheus.DefBuckets,
		}),
		FrontierPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitescope_frontier_pending",
			Help: "URLs queued but not yet fetched.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Pages, m.FetchAttempts, m.FetchDuration, m.FrontierPending)
	}
	return m
}

func (m *Metrics) observeAttempt(resp *HTTPResponse, err error) {
	switch {
	case err != nil:
		m.FetchAttempts.WithLabelValues("error").Inc()
	case isRetryableStatus(resp.StatusCode):
		m.FetchAttempts.WithLabelValues("retryable_status").Inc()
	default:
		m.FetchAttempts.WithLabelValues("ok").Inc()
	}
}
