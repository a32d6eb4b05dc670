// Package telemetry exposes Prometheus metrics for the pipeline, the status
// stream, and the HTTP surface.
//
// A nil *Metrics is valid and records nothing, so subsystems can be built
// without a registry in tests.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/scribe/internal/status"
	"github.com/JaimeStill/scribe/pkg/middleware"
)

const namespace = "scribe"

// Metrics owns a private registry and every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	deletions      prometheus.Counter
	skipped        prometheus.Counter
	retries        prometheus.Counter
	queueDepth     prometheus.Gauge
	inFlight       prometheus.Gauge
	stageDuration  *prometheus.HistogramVec
	sessions       prometheus.Gauge
	dropped        prometheus.Counter
	rateLimited    prometheus.Counter
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry along with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "uploads_total",
			Help: "Uploaded files by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_transitions_total",
			Help: "Committed status events by state.",
		}, []string{"state"}),
		deletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "documents_deleted_total",
			Help: "Documents removed from the status store.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "skipped_total",
			Help: "Dequeued documents that were not pending or already claimed.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "analysis_retries_total",
			Help: "Analysis attempts retried after a failure.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "queue_depth",
			Help: "Documents waiting in the work queue.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "inflight",
			Help: "Documents currently being processed.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pipeline", Name: "stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage", "outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "sessions",
			Help: "Open status stream sessions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "dropped_total",
			Help: "Messages discarded from full session backlogs.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads,
		m.transitions,
		m.deletions,
		m.skipped,
		m.retries,
		m.queueDepth,
		m.inFlight,
		m.stageDuration,
		m.sessions,
		m.dropped,
		m.rateLimited,
		m.requests,
		m.requestLatency,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Published counts committed transitions. Metrics is a status.Observer.
func (m *Metrics) Published(e status.Event) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(e.State)).Inc()
}

func (m *Metrics) Removed(uuid.UUID, string) {
	if m == nil {
		return
	}
	m.deletions.Inc()
}

func (m *Metrics) Upload(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "uploaded"
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Skipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) InFlight(delta int) {
	if m == nil {
		return
	}
	m.inFlight.Add(float64(delta))
}

// Stage observes the duration of a named pipeline stage since start.
func (m *Metrics) Stage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Sessions(delta int) {
	if m == nil {
		return
	}
	m.sessions.Add(float64(delta))
}

func (m *Metrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Middleware records request counts and latency. Routes are labeled by the
// matched ServeMux pattern to keep label cardinality bounded.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := middleware.WrapWriter(w)
			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.Status())).Inc()
			m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
