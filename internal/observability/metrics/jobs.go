package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/code-explainer-uploader/internal/core/domain"
)

// JobMetrics records archive builds and remote job outcomes.
type JobMetrics struct {
	registry *prometheus.Registry

	archivesTotal   *prometheus.CounterVec
	archiveBytes    prometheus.Histogram
	archiveDuration prometheus.Histogram
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsInFlight    prometheus.Gauge
	uploadBytes     *prometheus.CounterVec
	staleResponses  *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewJobMetrics(service string) *JobMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	archivesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "explainer",
			Subsystem:   "archive",
			Name:        "builds_total",
			Help:        "Total archive builds by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	archiveBytes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "explainer",
			Subsystem:   "archive",
			Name:        "size_bytes",
			Help:        "Size of built archives in bytes.",
			Buckets:     prometheus.ExponentialBuckets(1024, 4, 10),
			ConstLabels: constLabels,
		},
	)
	archiveDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "explainer",
			Subsystem:   "archive",
			Name:        "build_duration_seconds",
			Help:        "Archive build duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)
	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "explainer",
			Subsystem:   "job",
			Name:        "runs_total",
			Help:        "Total settled jobs by kind and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"kind", "outcome"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "explainer",
			Subsystem:   "job",
			Name:        "duration_seconds",
			Help:        "Job duration from submit to settle in seconds.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180, 240, 300},
			ConstLabels: constLabels,
		},
		[]string{"kind", "outcome"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "explainer",
			Subsystem:   "job",
			Name:        "in_flight",
			Help:        "Number of jobs currently in flight.",
			ConstLabels: constLabels,
		},
	)
	uploadBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "explainer",
			Subsystem:   "job",
			Name:        "upload_bytes_total",
			Help:        "Archive bytes submitted by job kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	staleResponses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "explainer",
			Subsystem:   "job",
			Name:        "stale_responses_total",
			Help:        "Successful responses discarded because their request had already timed out.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "explainer",
			Subsystem:   "transport",
			Name:        "breaker_state",
			Help:        "Circuit breaker state per route: 0 closed, 1 half-open, 2 open.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	registry.MustRegister(archivesTotal, archiveBytes, archiveDuration, jobsTotal, jobDuration, jobsInFlight, uploadBytes, staleResponses, breakerState)

	return &JobMetrics{
		registry:        registry,
		archivesTotal:   archivesTotal,
		archiveBytes:    archiveBytes,
		archiveDuration: archiveDuration,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		jobsInFlight:    jobsInFlight,
		uploadBytes:     uploadBytes,
		staleResponses:  staleResponses,
		breakerState:    breakerState,
	}
}

func (m *JobMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *JobMetrics) ObserveArchive(sizeBytes int64, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.archivesTotal.WithLabelValues(status).Inc()
	m.archiveDuration.Observe(duration.Seconds())
	if err == nil {
		m.archiveBytes.Observe(float64(sizeBytes))
	}
}

func (m *JobMetrics) StartJob(domain.JobKind) {
	m.jobsInFlight.Inc()
}

func (m *JobMetrics) FinishJob(kind domain.JobKind, outcome domain.JobOutcome, uploadBytes int64, duration time.Duration) {
	m.jobsInFlight.Dec()

	label := "success"
	if outcome.Failure != nil {
		label = string(outcome.Failure.Kind)
	}
	m.jobsTotal.WithLabelValues(string(kind), label).Inc()
	m.jobDuration.WithLabelValues(string(kind), label).Observe(duration.Seconds())
	if uploadBytes > 0 {
		m.uploadBytes.WithLabelValues(string(kind)).Add(float64(uploadBytes))
	}
}

func (m *JobMetrics) StaleResponse(kind domain.JobKind) {
	m.staleResponses.WithLabelValues(string(kind)).Inc()
}

// BreakerStateChanged matches resilience.Config.OnStateChange.
func (m *JobMetrics) BreakerStateChanged(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
