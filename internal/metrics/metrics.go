// Package metrics exposes Prometheus collectors for the game sync service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamesync"

// Result submission sources
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	countdownsStarted    prometheus.Counter
	countdownsCleared    prometheus.Counter
	resultsUpserted      *prometheus.CounterVec
	leaderboardDuration  *prometheus.HistogramVec
	storageErrors        *prometheus.CounterVec
	staleGamesClosed     prometheus.Counter
	websocketConnections prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		countdownsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_started_total",
			Help:      "Countdowns started or restarted.",
		}),
		countdownsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "countdowns_cleared_total",
			Help:      "Countdowns cleared.",
		}),
		resultsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_upserted_total",
			Help:      "Result rows written to the score ledger.",
		}, []string{"source"}),
		leaderboardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaderboard_compute_seconds",
			Help:      "Time spent computing leaderboards.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Storage failures by operation.",
		}, []string{"op"}),
		staleGamesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_games_closed_total",
			Help:      "Games closed by the stale game worker.",
		}),
		websocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.countdownsStarted,
		m.countdownsCleared,
		m.resultsUpserted,
		m.leaderboardDuration,
		m.storageErrors,
		m.staleGamesClosed,
		m.websocketConnections,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) CountdownStarted() {
	if m == nil {
		return
	}
	m.countdownsStarted.Inc()
}

func (m *Metrics) CountdownCleared() {
	if m == nil {
		return
	}
	m.countdownsCleared.Inc()
}

func (m *Metrics) ResultsUpserted(source string, n int) {
	if m == nil {
		return
	}
	m.resultsUpserted.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) ObserveLeaderboard(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.leaderboardDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) StorageError(op string) {
	if m == nil {
		return
	}
	m.storageErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) StaleGamesClosed(n int64) {
	if m == nil {
		return
	}
	m.staleGamesClosed.Add(float64(n))
}

func (m *Metrics) SetWebsocketConnections(n int) {
	if m == nil {
		return
	}
	m.websocketConnections.Set(float64(n))
}
