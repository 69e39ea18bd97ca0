package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal *prometheus.CounterVec
	searchResults       *prometheus.HistogramVec
	chatRequestsTotal   *prometheus.CounterVec
	chatFallbackTotal   *prometheus.CounterVec
	chatCitations       *prometheus.HistogramVec
	chatDuration        *prometheus.HistogramVec
	llmTokensTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kc",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kc",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total successful search requests by kind.",
		},
		[]string{"service", "kind"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kc",
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of result counts per successful search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "kind"},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kc",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total completed chat turns.",
		},
		[]string{"service", "endpoint"},
	)
	chatFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kc",
			Subsystem: "chat",
			Name:      "fallback_total",
			Help:      "Total chat turns answered with the provider-failure fallback.",
		},
		[]string{"service", "endpoint"},
	)
	chatCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kc",
			Subsystem: "chat",
			Name:      "citations",
			Help:      "Distribution of citations per chat answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service", "endpoint"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kc",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Chat turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kc",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Reported token usage by direction.",
		},
		[]string{"service", "endpoint", "direction", "model"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchResults,
		chatRequestsTotal,
		chatFallbackTotal,
		chatCitations,
		chatDuration,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchRequestsTotal: searchRequestsTotal,
		searchResults:       searchResults,
		chatRequestsTotal:   chatRequestsTotal,
		chatFallbackTotal:   chatFallbackTotal,
		chatCitations:       chatCitations,
		chatDuration:        chatDuration,
		llmTokensTotal:      llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordSearch(service, kind string, resultCount int) {
	m.searchRequestsTotal.WithLabelValues(service, kind).Inc()
	m.searchResults.WithLabelValues(service, kind).Observe(float64(resultCount))
}

func (m *HTTPServerMetrics) RecordChatTurn(service, endpoint string, citationCount int, duration time.Duration) {
	m.chatRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.chatCitations.WithLabelValues(service, endpoint).Observe(float64(citationCount))
	m.chatDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordChatFallback(service, endpoint string) {
	m.chatFallbackTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint, "out", model).Add(float64(completionTokens))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
