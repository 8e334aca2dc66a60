package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

// Metrics is the process-wide Prometheus registry for the service. All
// methods are safe on a nil receiver so callers can use Current() without
// checking whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamUnknown  *prometheus.CounterVec
	upstreamInvalid  prometheus.Counter
	tokenRefreshes   *prometheus.CounterVec

	chatTurns       *prometheus.CounterVec
	chatTurnLatency *prometheus.HistogramVec
	citationLookups *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Init builds the global metrics instance once.
func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// NewMetrics builds an instance on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_api_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentdesk_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "agentdesk_api_inflight_requests",
			Help: "In-flight HTTP requests",
		}),
		upstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_upstream_requests_total",
			Help: "Requests to the agent service by endpoint and status",
		}, []string{"endpoint", "status"}),
		upstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentdesk_upstream_request_duration_seconds",
			Help:    "Agent service latency until response headers",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"endpoint"}),
		upstreamUnknown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_upstream_unknown_events_total",
			Help: "Upstream stream events with an unrecognized tag",
		}, []string{"event"}),
		upstreamInvalid: f.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_upstream_invalid_frames_total",
			Help: "Upstream stream frames that were not valid JSON",
		}),
		tokenRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_token_refreshes_total",
			Help: "Credential fetches by flow and result",
		}, []string{"flow", "result"}),
		chatTurns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_chat_turns_total",
			Help: "Chat turns by terminal outcome",
		}, []string{"outcome"}),
		chatTurnLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentdesk_chat_turn_duration_seconds",
			Help:    "Wall time of a streamed chat turn",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"outcome"}),
		citationLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agentdesk_citation_lookups_total",
			Help: "Knowledge base status lookups by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveUpstreamRequest(endpoint string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(endpoint, label).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func (m *Metrics) IncUnknownUpstreamEvent(event string) {
	if m == nil {
		return
	}
	m.upstreamUnknown.WithLabelValues(event).Inc()
}

func (m *Metrics) IncInvalidUpstreamFrame() {
	if m == nil {
		return
	}
	m.upstreamInvalid.Inc()
}

func (m *Metrics) IncTokenRefresh(flow, result string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) ObserveChatTurn(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
	m.chatTurnLatency.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncCitationLookup(result string) {
	if m == nil {
		return
	}
	m.citationLookups.WithLabelValues(result).Inc()
}
