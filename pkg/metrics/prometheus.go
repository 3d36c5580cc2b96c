// Package metrics provides Prometheus metrics for the tally contest service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the tally service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Contest lifecycle
	contestsStarted  prometheus.Counter
	contestsFinished prometheus.Counter
	contestsAborted  prometheus.Counter
	roundsCompleted  prometheus.Counter
	roundDuration    prometheus.Histogram
	roundForfeits    prometheus.Counter

	// Guess flow
	guessesAccepted prometheus.Counter
	guessesRejected *prometheus.CounterVec
	perfectGuesses  prometheus.Counter
	disconnects     prometheus.Counter

	// Participants
	activeParticipants prometheus.Gauge
	lobbySize          prometheus.Gauge
	queueWaitSeconds   prometheus.Histogram

	// Worker pool
	poolQueueSize     prometheus.Gauge
	poolQueueCapacity prometheus.Gauge
	poolWorkers       prometheus.Gauge
	taskLatency       prometheus.Histogram
	taskErrors        prometheus.Counter
	poolRejections    prometheus.Counter

	// Standings
	standingsRecords      prometheus.Gauge
	standingsUpdates      prometheus.Counter
	standingsQueryLatency prometheus.Histogram

	// Notifier
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec

	// HTTP / websocket
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	wsConnections       prometheus.Gauge

	// Errors
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "contest",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.contestsStarted = m.counter("contests_started_total", "Total number of contests started")
	m.contestsFinished = m.counter("contests_finished_total", "Total number of contests that played all rounds")
	m.contestsAborted = m.counter("contests_aborted_total", "Total number of contests torn down by a structural failure")
	m.roundsCompleted = m.counter("rounds_completed_total", "Total number of rounds that passed the barrier")
	m.roundDuration = m.histogram("round_duration_milliseconds", "Time from round start to barrier release in milliseconds",
		[]float64{10, 50, 100, 500, 1000, 5000, 15000, 30000, 60000, 120000})
	m.roundForfeits = m.counter("round_forfeits_total", "Participants released by the round deadline without a guess")

	m.guessesAccepted = m.counter("guesses_accepted_total", "Total number of guesses recorded in a ledger")
	m.guessesRejected = m.counterVec("guesses_rejected_total", "Guesses rejected at submission by reason", "reason")
	m.perfectGuesses = m.counter("perfect_guesses_total", "Guesses that matched the secret value")
	m.disconnects = m.counter("disconnects_total", "Participants that left an active contest")

	m.activeParticipants = m.gauge("active_participants", "Participants currently active in a contest")
	m.lobbySize = m.gauge("lobby_size", "Participants waiting in the matchmaking queue")
	m.queueWaitSeconds = m.histogram("queue_wait_seconds", "Time participants spent queued before their contest started",
		[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300})

	m.poolQueueSize = m.gauge("pool_queue_size", "Tasks waiting for a pool worker")
	m.poolQueueCapacity = m.gauge("pool_queue_capacity", "Maximum number of queued pool tasks")
	m.poolWorkers = m.gauge("pool_workers", "Number of pool workers")
	m.taskLatency = m.histogram("task_latency_milliseconds", "Per-participant round task latency in milliseconds", m.histogramBuckets)
	m.taskErrors = m.counter("task_errors_total", "Round tasks that returned an error or panicked")
	m.poolRejections = m.counter("pool_rejections_total", "Tasks refused because the pool was full or closed")

	m.standingsRecords = m.gauge("standings_records", "Participants tracked in the standings")
	m.standingsUpdates = m.counter("standings_updates_total", "Score changes written to the standings")
	m.standingsQueryLatency = m.histogram("standings_query_latency_milliseconds", "Standings read latency in milliseconds", m.histogramBuckets)

	m.notificationsSent = m.counterVec("notifications_sent_total", "Outbound notifications by sink and message type", "sink", "type")
	m.notificationsFailed = m.counterVec("notifications_failed_total", "Outbound notifications that failed by sink", "sink")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.wsConnections = m.gauge("ws_connections", "Open websocket connections")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
}

// Contest lifecycle.

// RecordContestStarted increments the contests started counter.
func RecordContestStarted() { globalManager.contestsStarted.Inc() }

// RecordContestFinished increments the contests finished counter.
func RecordContestFinished() { globalManager.contestsFinished.Inc() }

// RecordContestAborted increments the contests aborted counter.
func RecordContestAborted() { globalManager.contestsAborted.Inc() }

// RecordRoundCompleted counts a round and observes how long its barrier took.
func RecordRoundCompleted(d time.Duration) {
	globalManager.roundsCompleted.Inc()
	globalManager.roundDuration.Observe(float64(d.Milliseconds()))
}

// RecordRoundForfeit counts a participant released by the round deadline.
func RecordRoundForfeit() { globalManager.roundForfeits.Inc() }

// Guess flow.

// RecordGuessAccepted increments the accepted guesses counter.
func RecordGuessAccepted() { globalManager.guessesAccepted.Inc() }

// RecordGuessRejected increments the rejected guesses counter for reason.
func RecordGuessRejected(reason string) { globalManager.guessesRejected.WithLabelValues(reason).Inc() }

// RecordPerfectGuess increments the perfect guess counter.
func RecordPerfectGuess() { globalManager.perfectGuesses.Inc() }

// RecordDisconnect increments the disconnect counter.
func RecordDisconnect() { globalManager.disconnects.Inc() }

// Participants.

// AddActiveParticipants adjusts the active participant gauge by delta.
func AddActiveParticipants(delta int) { globalManager.activeParticipants.Add(float64(delta)) }

// UpdateLobbySize sets the number of queued participants.
func UpdateLobbySize(size int) { globalManager.lobbySize.Set(float64(size)) }

// RecordQueueWait observes the time a participant spent queued.
func RecordQueueWait(d time.Duration) { globalManager.queueWaitSeconds.Observe(d.Seconds()) }

// Worker pool.

// UpdatePoolQueueSize sets the number of tasks waiting for a worker.
func UpdatePoolQueueSize(size int) { globalManager.poolQueueSize.Set(float64(size)) }

// UpdatePoolQueueCapacity sets the pool queue capacity.
func UpdatePoolQueueCapacity(capacity int) { globalManager.poolQueueCapacity.Set(float64(capacity)) }

// UpdatePoolWorkers sets the number of pool workers.
func UpdatePoolWorkers(count int) { globalManager.poolWorkers.Set(float64(count)) }

// RecordTaskLatency observes a round task latency.
func RecordTaskLatency(d time.Duration) { globalManager.taskLatency.Observe(float64(d.Milliseconds())) }

// RecordTaskError increments the task error counter.
func RecordTaskError() { globalManager.taskErrors.Inc() }

// RecordPoolRejection increments the pool rejection counter.
func RecordPoolRejection() { globalManager.poolRejections.Inc() }

// Standings.

// UpdateStandingsRecords sets the number of participants in the standings.
func UpdateStandingsRecords(count int) { globalManager.standingsRecords.Set(float64(count)) }

// RecordStandingsUpdate increments the standings update counter.
func RecordStandingsUpdate() { globalManager.standingsUpdates.Inc() }

// RecordStandingsQueryLatency observes a standings read latency.
func RecordStandingsQueryLatency(d time.Duration) {
	globalManager.standingsQueryLatency.Observe(float64(d.Milliseconds()))
}

// Notifier.

// RecordNotificationSent counts a delivered notification.
func RecordNotificationSent(sink, msgType string) {
	globalManager.notificationsSent.WithLabelValues(sink, msgType).Inc()
}

// RecordNotificationFailed counts a failed notification.
func RecordNotificationFailed(sink string) { globalManager.notificationsFailed.WithLabelValues(sink).Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// AddWSConnections adjusts the open websocket gauge by delta.
func AddWSConnections(delta int) { globalManager.wsConnections.Add(float64(delta)) }

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
