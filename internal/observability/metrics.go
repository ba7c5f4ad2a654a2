// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jusdown"

// Metrics holds all application metrics.
type Metrics struct {
	// Pipeline metrics
	DownloadsTotal    *prometheus.CounterVec
	DownloadsInFlight prometheus.Gauge
	DownloadDuration  prometheus.Histogram
	ArtifactBytes     prometheus.Counter

	// Workspace metrics
	WorkspacesActive  prometheus.Gauge
	WorkspacesSwept   prometheus.Counter
	WorkspaceFailures *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec
	ProxiesAvailable   prometheus.Gauge

	// Downloader metrics
	DownloaderRequestsTotal *prometheus.CounterVec
	DownloaderErrors        *prometheus.CounterVec

	// Billing metrics
	WebhookEventsTotal *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "downloads_total",
			Help:      "Total number of download requests by outcome and HTTP status",
		}, []string{"outcome", "status"}),
		DownloadsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "in_flight",
			Help:      "Number of download requests currently being processed",
		}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Histogram of end-to-end download duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ArtifactBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "artifact_bytes_total",
			Help:      "Total bytes of artifacts handed to callers",
		}),

		WorkspacesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "active",
			Help:      "Number of workspaces currently acquired",
		}),
		WorkspacesSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "swept_total",
			Help:      "Total number of stale workspace entries removed by the sweeper",
		}),
		WorkspaceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "failures_total",
			Help:      "Total number of workspace acquire or release failures",
		}, []string{"op"}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of backend invocations made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		DownloaderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "requests_total",
			Help:      "Total number of backend invocations",
		}, []string{"downloader", "status"}),
		DownloaderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "errors_total",
			Help:      "Total number of backend errors by kind",
		}, []string{"downloader", "kind"}),

		WebhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Total number of billing webhook events by event name and result",
		}, []string{"event", "result"}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DownloadTimer marks a download as in flight and returns a function that
// records its outcome and duration.
func (m *Metrics) DownloadTimer() func(outcome string, status int) {
	start := time.Now()

	m.DownloadsInFlight.Inc()

	return func(outcome string, status int) {
		m.DownloadsInFlight.Dec()
		m.DownloadsTotal.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
		m.DownloadDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordArtifact records the size of an artifact handed to a caller.
func (m *Metrics) RecordArtifact(size int64) {
	m.ArtifactBytes.Add(float64(size))
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWorkspaceAcquired increments the active workspace gauge.
func (m *Metrics) RecordWorkspaceAcquired() {
	m.WorkspacesActive.Inc()
}

// RecordWorkspaceReleased decrements the active workspace gauge.
func (m *Metrics) RecordWorkspaceReleased() {
	m.WorkspacesActive.Dec()
}

// RecordWorkspaceFailure records a failed workspace operation.
func (m *Metrics) RecordWorkspaceFailure(op string) {
	m.WorkspaceFailures.WithLabelValues(op).Inc()
}

// RecordSwept records entries removed by the stale sweeper.
func (m *Metrics) RecordSwept(count int) {
	m.WorkspacesSwept.Add(float64(count))
}

// RecordDownloaderRequest records a backend invocation.
func (m *Metrics) RecordDownloaderRequest(downloader, status string) {
	m.DownloaderRequestsTotal.WithLabelValues(downloader, status).Inc()
}

// RecordDownloaderError records a backend error.
func (m *Metrics) RecordDownloaderError(downloader, kind string) {
	m.DownloaderErrors.WithLabelValues(downloader, kind).Inc()
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}

// RecordWebhookEvent records a processed billing webhook event.
func (m *Metrics) RecordWebhookEvent(event, result string) {
	m.WebhookEventsTotal.WithLabelValues(event, result).Inc()
}
