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

// Metrics stores Prometheus collectors used by the webhook and worker flows.
// All record methods are nil-safe so callers can run without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	webhookEventsTotal    *prometheus.CounterVec
	cardsExtractedTotal   prometheus.Counter
	cardsSavedTotal       prometheus.Counter
	cardSaveFailuresTotal prometheus.Counter
	quotaRejectedTotal    prometheus.Counter
	batchStartedTotal     prometheus.Counter
	batchCompletedTotal   prometheus.Counter
	sessionsCleanedTotal  prometheus.Counter
	archiveJobsTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "namecard_bot",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		webhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "webhook_events_total",
				Help:      "Total number of webhook events received, grouped by event type.",
			},
			[]string{"type"},
		),
		cardsExtractedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "cards_extracted_total",
				Help:      "Total number of business cards extracted from images.",
			},
		),
		cardsSavedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "cards_saved_total",
				Help:      "Total number of cards persisted to the card store.",
			},
		),
		cardSaveFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "card_save_failures_total",
				Help:      "Total number of card persistence failures.",
			},
		),
		quotaRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "quota_rejected_total",
				Help:      "Total number of images rejected by the daily quota.",
			},
		),
		batchStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "batch_started_total",
				Help:      "Total number of batch sessions started.",
			},
		),
		batchCompletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "batch_completed_total",
				Help:      "Total number of batch sessions completed.",
			},
		),
		sessionsCleanedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "sessions_cleaned_total",
				Help:      "Total number of inactive sessions removed by the cleanup scanner.",
			},
		),
		archiveJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "namecard_bot",
				Name:      "archive_jobs_total",
				Help:      "Total number of image archive jobs, grouped by outcome.",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.webhookEventsTotal,
		m.cardsExtractedTotal,
		m.cardsSavedTotal,
		m.cardSaveFailuresTotal,
		m.quotaRejectedTotal,
		m.batchStartedTotal,
		m.batchCompletedTotal,
		m.sessionsCleanedTotal,
		m.archiveJobsTotal,
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

func (m *Metrics) IncWebhookEvent(eventType string) {
	if m == nil {
		return
	}
	label := strings.ToLower(strings.TrimSpace(eventType))
	if label == "" {
		label = "unknown"
	}
	m.webhookEventsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) AddCardsExtracted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.cardsExtractedTotal.Add(float64(count))
}

func (m *Metrics) IncCardSaved() {
	if m == nil {
		return
	}
	m.cardsSavedTotal.Inc()
}

func (m *Metrics) IncCardSaveFailed() {
	if m == nil {
		return
	}
	m.cardSaveFailuresTotal.Inc()
}

func (m *Metrics) IncQuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejectedTotal.Inc()
}

func (m *Metrics) IncBatchStarted() {
	if m == nil {
		return
	}
	m.batchStartedTotal.Inc()
}

func (m *Metrics) IncBatchCompleted() {
	if m == nil {
		return
	}
	m.batchCompletedTotal.Inc()
}

func (m *Metrics) AddSessionsCleaned(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionsCleanedTotal.Add(float64(count))
}

func (m *Metrics) IncArchiveJob(outcome string) {
	if m == nil {
		return
	}
	label := strings.ToLower(strings.TrimSpace(outcome))
	if label == "" {
		label = "unknown"
	}
	m.archiveJobsTotal.WithLabelValues(label).Inc()
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
