// Package observability groups the Prometheus instruments for the client.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the client.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	PollAttempts   prometheus.Counter
	AuthAttempts   *prometheus.CounterVec
	SubmitDuration prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions by terminal outcome.",
		}, []string{"outcome"}),
		PollAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "Status endpoint poll attempts.",
		}),
		AuthAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Auth webhook calls by mode and result.",
		}, []string{"mode", "result"}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Wall time from submit to terminal outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

func (m *Metrics) CountSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CountAuth(mode, result string) {
	m.AuthAttempts.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) ObserveSubmitDuration(d time.Duration) {
	m.SubmitDuration.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
