package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors the tutor service reports. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	requests         *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	snippetsWritten  prometheus.Counter
	extractSeconds   *prometheus.HistogramVec
	completeSeconds  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "requests_total",
			Help:      "Chat and analyze requests by operation, task and outcome.",
		}, []string{"operation", "task", "outcome"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "upstream_failures_total",
			Help:      "Completion calls that returned an error.",
		}, []string{"operation"}),
		snippetsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "snippets_written_total",
			Help:      "Context snippets appended to the store.",
		}),
		extractSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "extract_duration_seconds",
			Help:      "Time spent extracting text from uploads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		completeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "completion_duration_seconds",
			Help:      "Latency of completion calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
	}
	m.Registry.MustRegister(
		m.requests,
		m.upstreamFailures,
		m.snippetsWritten,
		m.extractSeconds,
		m.completeSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(operation, task, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, task, outcome).Inc()
}

func (m *Metrics) ObserveUpstreamFailure(operation string) {
	if m == nil {
		return
	}
	m.upstreamFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveSnippetWritten() {
	if m == nil {
		return
	}
	m.snippetsWritten.Inc()
}

func (m *Metrics) ObserveExtract(kind string, started time.Time) {
	if m == nil {
		return
	}
	m.extractSeconds.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveCompletion(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.completeSeconds.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
