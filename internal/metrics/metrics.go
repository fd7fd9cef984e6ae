package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Backend metrics
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	BackendUp              prometheus.Gauge

	// Session metrics
	SessionsActive        prometheus.Gauge
	SessionsResolvedTotal *prometheus.CounterVec
	SessionsForcedTotal   prometheus.Counter

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec

	// Queue metrics
	QueueDepth        prometheus.Gauge
	QueueWaitDuration prometheus.Histogram
	QueueTasksTotal   *prometheus.CounterVec

	// Telegram metrics
	TelegramMessagesSentTotal     prometheus.Counter
	TelegramMessagesReceivedTotal prometheus.Counter
	TelegramDuplicatesTotal       prometheus.Counter
	TelegramErrorsTotal           prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Total number of backend requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		BackendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Duration of backend requests in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method"},
		),
		BackendUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_up",
				Help:      "Whether the last backend health probe succeeded",
			},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of participants mapped to a session",
			},
		),
		SessionsResolvedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_resolved_total",
				Help:      "Total number of session resolutions by source",
			},
			[]string{"source"},
		),
		SessionsForcedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_forced_total",
				Help:      "Total number of sessions created on participant request",
			},
		),

		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of turns and commands by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of turns in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Queued plus running turns across all participants",
			},
		),
		QueueWaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "queue_wait_duration_seconds",
				Help:      "Time a turn waited behind earlier turns of the same participant",
				Buckets:   prometheus.DefBuckets,
			},
		),
		QueueTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_tasks_total",
				Help:      "Total number of queued tasks by status",
			},
			[]string{"status"},
		),

		TelegramMessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_messages_sent_total",
				Help:      "Total number of Telegram messages sent or edited",
			},
		),
		TelegramMessagesReceivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_messages_received_total",
				Help:      "Total number of Telegram messages received",
			},
		),
		TelegramDuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_duplicates_total",
				Help:      "Total number of duplicate Telegram updates dropped",
			},
		),
		TelegramErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_errors_total",
				Help:      "Total number of Telegram errors",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.registry.MustRegister(
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendUp,
		m.SessionsActive,
		m.SessionsResolvedTotal,
		m.SessionsForcedTotal,
		m.TurnsTotal,
		m.TurnDuration,
		m.QueueDepth,
		m.QueueWaitDuration,
		m.QueueTasksTotal,
		m.TelegramMessagesSentTotal,
		m.TelegramMessagesReceivedTotal,
		m.TelegramDuplicatesTotal,
		m.TelegramErrorsTotal,
	)
}

// ObserveBackendRequest records one backend round trip
func (m *Metrics) ObserveBackendRequest(method, outcome string, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(method, outcome).Inc()
	m.BackendRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetBackendUp records the latest health probe result
func (m *Metrics) SetBackendUp(up bool) {
	if up {
		m.BackendUp.Set(1)
		return
	}
	m.BackendUp.Set(0)
}

// ObserveSessionResolved counts a session resolution by source
func (m *Metrics) ObserveSessionResolved(source string) {
	m.SessionsResolvedTotal.WithLabelValues(source).Inc()
}

// ObserveSessionForced counts a participant-requested session
func (m *Metrics) ObserveSessionForced() {
	m.SessionsForcedTotal.Inc()
}

// SetActiveSessions sets the number of mapped participants
func (m *Metrics) SetActiveSessions(n int) {
	m.SessionsActive.Set(float64(n))
}

// ObserveTurn records a finished turn or command
func (m *Metrics) ObserveTurn(kind, outcome string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(kind, outcome).Inc()
	m.TurnDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetQueueDepth sets the number of queued plus running turns
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// ObserveQueueWait records how long a turn waited for its lane
func (m *Metrics) ObserveQueueWait(wait time.Duration) {
	m.QueueWaitDuration.Observe(wait.Seconds())
}

// ObserveQueueTask counts a finished queued task
func (m *Metrics) ObserveQueueTask(_ time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.QueueTasksTotal.WithLabelValues(status).Inc()
}

// ObserveTelegramReceived counts an inbound Telegram message
func (m *Metrics) ObserveTelegramReceived() {
	m.TelegramMessagesReceivedTotal.Inc()
}

// ObserveTelegramSent counts a sent or edited Telegram message
func (m *Metrics) ObserveTelegramSent() {
	m.TelegramMessagesSentTotal.Inc()
}

// ObserveTelegramError counts a failed Telegram call or update
func (m *Metrics) ObserveTelegramError() {
	m.TelegramErrorsTotal.Inc()
}

// ObserveTelegramDuplicate counts a dropped duplicate update
func (m *Metrics) ObserveTelegramDuplicate() {
	m.TelegramDuplicatesTotal.Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
