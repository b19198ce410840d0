package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection. A nil collector
// is valid and records nothing.
type MetricsCollector struct {
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Flow metrics
	flowRequestsTotal   *prometheus.CounterVec
	flowRequestDuration *prometheus.HistogramVec
	flowShortCircuit    *prometheus.CounterVec
	modelTokensTotal    *prometheus.CounterVec

	// Profile and orchestration metrics
	profileMirrorTotal *prometheus.CounterVec
	staleChecksTotal   prometheus.Counter
	debouncedTotal     prometheus.Counter
	usersRegistered    prometheus.Counter

	cacheOperations *prometheus.CounterVec
}

// NewRegistry creates a registry carrying the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetricsCollector registers all metrics on reg
func NewMetricsCollector(reg *prometheus.Registry, logger *zap.Logger) *MetricsCollector {
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger.Named("metrics"),
		gatherer: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		flowRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flow_requests_total",
				Help: "Model backed flow invocations by outcome",
			},
			[]string{"flow", "status"},
		),
		flowRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flow_request_duration_seconds",
				Help:    "Model backed flow latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"flow"},
		),
		flowShortCircuit: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flow_short_circuit_total",
				Help: "Flow invocations answered without calling the model",
			},
			[]string{"flow", "reason"},
		),
		modelTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_tokens_total",
				Help: "Tokens reported by the model provider",
			},
			[]string{"provider", "kind"},
		),
		profileMirrorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_mirror_writes_total",
				Help: "Remote profile mirror writes by outcome",
			},
			[]string{"status"},
		),
		staleChecksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "compatibility_checks_discarded_total",
				Help: "Check completions discarded because a newer check was started",
			},
		),
		debouncedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "suggestion_requests_superseded_total",
				Help: "Suggestion requests dropped by the debouncer",
			},
		),
		usersRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "users_registered_total",
				Help: "Total number of registered users",
			},
		),
		cacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_operations_total",
				Help: "Cache operations by result",
			},
			[]string{"operation", "result"},
		),
	}
}

// HTTPRequest records one served request
func (m *MetricsCollector) HTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// FlowRequest records a flow that reached the model
func (m *MetricsCollector) FlowRequest(flow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.flowRequestsTotal.WithLabelValues(flow, status).Inc()
	m.flowRequestDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// FlowShortCircuit records a flow answered locally
func (m *MetricsCollector) FlowShortCircuit(flow, reason string) {
	if m == nil {
		return
	}
	m.flowShortCircuit.WithLabelValues(flow, reason).Inc()
}

// ModelTokens records provider token usage
func (m *MetricsCollector) ModelTokens(provider string, prompt, completion int) {
	if m == nil {
		return
	}
	m.modelTokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	m.modelTokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
}

// ProfileMirror records a remote profile write
func (m *MetricsCollector) ProfileMirror(status string) {
	if m == nil {
		return
	}
	m.profileMirrorTotal.WithLabelValues(status).Inc()
}

// StaleCheckDiscarded records a superseded check completion
func (m *MetricsCollector) StaleCheckDiscarded() {
	if m == nil {
		return
	}
	m.staleChecksTotal.Inc()
}

// SuggestionSuperseded records a debounced suggestion request
func (m *MetricsCollector) SuggestionSuperseded() {
	if m == nil {
		return
	}
	m.debouncedTotal.Inc()
}

// UserRegistered records a new account
func (m *MetricsCollector) UserRegistered() {
	if m == nil {
		return
	}
	m.usersRegistered.Inc()
}

// CacheOperation records a cache hit, miss or error
func (m *MetricsCollector) CacheOperation(operation, result string) {
	if m == nil {
		return
	}
	m.cacheOperations.WithLabelValues(operation, result).Inc()
}

// Handler returns the Prometheus metrics handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
