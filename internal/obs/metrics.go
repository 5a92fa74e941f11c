package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirrors the reference implementation's metric names and labels
// exactly, so dashboards built against it keep working.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	TokensBeforeTotal   prometheus.Counter
	TokensAfterTotal    prometheus.Counter
	TokensSavedTotal    prometheus.Counter
	LatencySeconds      *prometheus.HistogramVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	RouteTotal          *prometheus.CounterVec
	DashboardEventTotal *prometheus.CounterVec
	ActiveRequests      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers every collector against a fresh registry (never
// the global default, so repeated construction in tests doesn't panic on
// duplicate registration).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_optimizer_requests_total",
			Help: "Total optimize/chat requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		TokensBeforeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_optimizer_tokens_before_total",
			Help: "Cumulative tokens before optimization.",
		}),
		TokensAfterTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_optimizer_tokens_after_total",
			Help: "Cumulative tokens after optimization.",
		}),
		TokensSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_optimizer_tokens_saved_total",
			Help: "Cumulative tokens saved by optimization.",
		}),
		LatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "token_optimizer_latency_seconds",
			Help:    "Optimization latency in seconds by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_optimizer_cache_hits_total",
			Help: "Total result cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_optimizer_cache_misses_total",
			Help: "Total result cache misses.",
		}),
		RouteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_optimizer_route_total",
			Help: "Total requests by pipeline route taken.",
		}, []string{"route"}),
		DashboardEventTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_optimizer_dashboard_events_total",
			Help: "Dashboard event emission attempts by status.",
		}, []string{"status"}),
		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "token_optimizer_active_requests",
			Help: "Requests currently being optimized.",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal, m.TokensBeforeTotal, m.TokensAfterTotal, m.TokensSavedTotal,
		m.LatencySeconds, m.CacheHitsTotal, m.CacheMissesTotal, m.RouteTotal,
		m.DashboardEventTotal, m.ActiveRequests,
	)
	return m
}

// Registry returns the registry metrics were registered against, for
// exposition via promhttp.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// OptimizationStats is the subset of a pipeline result metrics cares about.
type OptimizationStats struct {
	TokensBefore int
	TokensAfter  int
	TokensSaved  int
	LatencySec   float64
	Route        string
	CacheHit     bool
}

// RecordOptimization updates every counter/histogram touched by a single
// completed optimize/chat call.
func (m *Metrics) RecordOptimization(stats OptimizationStats, endpoint string) {
	m.RequestsTotal.WithLabelValues(endpoint, "success").Inc()
	m.TokensBeforeTotal.Add(float64(stats.TokensBefore))
	m.TokensAfterTotal.Add(float64(stats.TokensAfter))
	m.TokensSavedTotal.Add(float64(stats.TokensSaved))
	m.LatencySeconds.WithLabelValues(endpoint).Observe(stats.LatencySec)
	m.RouteTotal.WithLabelValues(stats.Route).Inc()
	if stats.CacheHit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

// RecordFailure marks a failed request against the endpoint.
func (m *Metrics) RecordFailure(endpoint string) {
	m.RequestsTotal.WithLabelValues(endpoint, "error").Inc()
}

// RecordDashboardEvent marks a dashboard event emission's outcome.
func (m *Metrics) RecordDashboardEvent(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.DashboardEventTotal.WithLabelValues(status).Inc()
}
