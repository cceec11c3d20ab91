package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "sessions",
			Name:      "accepted_total",
			Help:      "Total accepted client sessions.",
		},
	)
	sessionsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "sessions",
			Name:      "rejected_total",
			Help:      "Sessions rejected by the admission bound.",
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "termctl",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Currently running client sessions.",
		},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "termctl",
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Session lifetime in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
	)
	bytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "wire",
			Name:      "bytes_read_total",
			Help:      "Input bytes consumed across all sessions.",
		},
	)
	linesSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "wire",
			Name:      "lines_submitted_total",
			Help:      "Non-empty lines submitted across all sessions.",
		},
	)
	sweptHandles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "registry",
			Name:      "swept_handles_total",
			Help:      "Handles force-released by registry sweeps.",
		},
		[]string{"kind"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "termctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "termctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			sessionsTotal,
			sessionsRejected,
			sessionsActive,
			sessionDuration,
			bytesRead,
			linesSubmitted,
			sweptHandles,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordSessionOpened() {
	RegisterMetrics()
	sessionsTotal.Inc()
	sessionsActive.Inc()
}

func RecordSessionClosed(bytes, lines int64, duration time.Duration) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionDuration.Observe(duration.Seconds())
	bytesRead.Add(float64(bytes))
	linesSubmitted.Add(float64(lines))
}

func RecordSessionRejected() {
	RegisterMetrics()
	sessionsRejected.Inc()
}

func RecordSweep(sockets, buffers int) {
	RegisterMetrics()
	sweptHandles.WithLabelValues("socket").Add(float64(sockets))
	sweptHandles.WithLabelValues("buffer").Add(float64(buffers))
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
