package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the HTTP layer.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	uploadedBytes   prometheus.Counter
	downloadedBytes prometheus.Counter
	shareDownloads  prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamdrop",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method, and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teamdrop",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teamdrop",
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamdrop",
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes accepted through file uploads.",
		}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamdrop",
			Name:      "downloaded_bytes_total",
			Help:      "Total bytes served through file downloads.",
		}),
		shareDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamdrop",
			Name:      "share_downloads_total",
			Help:      "Downloads served through public share links.",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		m.uploadedBytes,
		m.downloadedBytes,
		m.shareDownloads,
	)

	return m
}

// Handler returns the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments every request with count, latency, and
// in-flight gauges. The route label uses the chi pattern, not the raw
// path, to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveUpload records accepted upload bytes.
func (m *Metrics) ObserveUpload(size int64) {
	m.uploadedBytes.Add(float64(size))
}

// ObserveDownload records served download bytes.
func (m *Metrics) ObserveDownload(size int64) {
	m.downloadedBytes.Add(float64(size))
}

// ObserveShareDownload counts one share download.
func (m *Metrics) ObserveShareDownload() {
	m.shareDownloads.Inc()
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
