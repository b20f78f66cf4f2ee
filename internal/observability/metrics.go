package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and sweep flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	dispatchedTotal          *prometheus.CounterVec
	retriesTotal             *prometheus.CounterVec
	permanentlyFailedTotal   *prometheus.CounterVec
	sendDuration             *prometheus.HistogramVec
	sweepInflight            prometheus.Gauge
	sweepEligibleRows        prometheus.Histogram
	notificationSendFailures *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notification_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_engine",
				Name:      "dispatched_total",
				Help:      "Total first-attempt deliveries by channel and resulting log status.",
			},
			[]string{"channel", "status"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_engine",
				Name:      "retries_total",
				Help:      "Total retry attempts by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		),
		permanentlyFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_engine",
				Name:      "permanently_failed_total",
				Help:      "Total deliveries that exhausted their retry budget.",
			},
			[]string{"channel"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notification_engine",
				Name:      "send_duration_seconds",
				Help:      "Adapter send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		sweepInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notification_engine",
				Name:      "sweep_inflight",
				Help:      "Current number of in-flight retry operations.",
			},
		),
		sweepEligibleRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "notification_engine",
				Name:      "sweep_eligible_rows",
				Help:      "Number of rows selected per sweep.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		notificationSendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_engine",
				Name:      "send_failures_total",
				Help:      "Adapter send failures by channel and classification.",
			},
			[]string{"channel", "kind"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchedTotal,
		m.retriesTotal,
		m.permanentlyFailedTotal,
		m.sendDuration,
		m.sweepInflight,
		m.sweepEligibleRows,
		m.notificationSendFailures,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatched(channel, status string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
}

func (m *Metrics) IncRetry(channel, outcome string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncPermanentlyFailed(channel string) {
	if m == nil {
		return
	}
	m.permanentlyFailedTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncSendFailure(channel, kind string) {
	if m == nil {
		return
	}
	m.notificationSendFailures.WithLabelValues(normalizeLabel(channel), normalizeLabel(kind)).Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeLabel(channel)).Observe(seconds)
}

func (m *Metrics) IncSweepInFlight() {
	if m == nil {
		return
	}
	m.sweepInflight.Inc()
}

func (m *Metrics) DecSweepInFlight() {
	if m == nil {
		return
	}
	m.sweepInflight.Dec()
}

func (m *Metrics) ObserveSweepEligible(count int) {
	if m == nil {
		return
	}
	m.sweepEligibleRows.Observe(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
