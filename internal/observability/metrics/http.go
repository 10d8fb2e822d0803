package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pclf"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	predictionsTotal   *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	modelLoadsTotal    *prometheus.CounterVec

	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	predictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "inference",
			Name:        "predictions_total",
			Help:        "Total prediction requests by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	predictionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "inference",
			Name:        "prediction_duration_seconds",
			Help:        "Prediction latency in seconds, model load included.",
			Buckets:     []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			ConstLabels: constLabels,
		},
	)
	modelLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "inference",
			Name:        "model_loads_total",
			Help:        "Model cache loads and invalidations.",
			ConstLabels: constLabels,
		},
		[]string{"event"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "retries_total",
			Help:        "Retried outbound calls by operation.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "circuit_open",
			Help:        "1 while the circuit breaker of an operation is not closed.",
			ConstLabels: constLabels,
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		predictionsTotal,
		predictionDuration,
		modelLoadsTotal,
		retriesTotal,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		service:            service,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		predictionsTotal:   predictionsTotal,
		predictionDuration: predictionDuration,
		modelLoadsTotal:    modelLoadsTotal,
		retriesTotal:       retriesTotal,
		breakerState:       breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds ids out of paths to keep label cardinality bounded.
func normalizePath(path string) string {
	const models = "/v1/models/"
	if !strings.HasPrefix(path, models) {
		if strings.HasPrefix(path, "/v1/stats/text/") {
			return "/v1/stats/text/{type}"
		}
		return path
	}
	rest := strings.TrimPrefix(path, models)
	id, suffix, _ := strings.Cut(rest, "/")
	switch id {
	case "", "active", "train":
		return path
	}
	if suffix == "" {
		return models + "{id}"
	}
	return models + "{id}/" + suffix
}

// RecordPrediction counts one prediction; outcome is "ok" or an error class.
func (m *HTTPServerMetrics) RecordPrediction(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.predictionsTotal.WithLabelValues(outcome).Inc()
	m.predictionDuration.Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveModelLoad() {
	m.modelLoadsTotal.WithLabelValues("load").Inc()
}

func (m *HTTPServerMetrics) ObserveModelInvalidated() {
	m.modelLoadsTotal.WithLabelValues("invalidate").Inc()
}

func (m *HTTPServerMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *HTTPServerMetrics) ObserveBreakerState(operation string, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(operation).Set(value)
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

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
