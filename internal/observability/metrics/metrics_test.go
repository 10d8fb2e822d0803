package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePathFoldsModelIDs(t *testing.T) {
	cases := map[string]string{
		"/v1/models":                      "/v1/models",
		"/v1/models/active":               "/v1/models/active",
		"/v1/models/train":                "/v1/models/train",
		"/v1/models/0f8fad5b":             "/v1/models/{id}",
		"/v1/models/0f8fad5b/set-active":  "/v1/models/{id}/set-active",
		"/v1/models/0f8fad5b/report.xlsx": "/v1/models/{id}/report.xlsx",
		"/v1/stats/text/designation":      "/v1/stats/text/{type}",
		"/v1/predictions":                 "/v1/predictions",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareCountsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/predictions", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodPost, "/v1/predictions", "503"))
	if got != 1 {
		t.Fatalf("expected one 503 request, got %v", got)
	}
}

func TestPredictionAndBreakerMetrics(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordPrediction("ok", 3*time.Millisecond)
	m.RecordPrediction("no_active_model", time.Millisecond)
	m.RecordPrediction("ok", time.Millisecond)
	m.ObserveModelLoad()
	m.ObserveBreakerState("nats.publish.models.train", "open")

	if got := testutil.ToFloat64(m.predictionsTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok predictions, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("nats.publish.models.train")); got != 1 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}
	m.ObserveBreakerState("nats.publish.models.train", "closed")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("nats.publish.models.train")); got != 0 {
		t.Fatalf("expected closed breaker gauge, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pclf_inference_model_loads_total") {
		t.Fatalf("expected model load series in exposition output")
	}
}

func TestWorkerMetricsTrainingStatus(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartTraining()
	m.FinishTraining(2*time.Second, errors.New("boom"))
	m.StartTraining()
	m.FinishTraining(time.Second, nil)
	m.ObserveDataset(800, 200)

	if got := testutil.ToFloat64(m.trainingTotal.WithLabelValues("cancelled")); got != 1 {
		t.Fatalf("expected one cancelled run, got %v", got)
	}
	if got := testutil.ToFloat64(m.trainingInFlight); got != 0 {
		t.Fatalf("expected no in-flight runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.datasetRows.WithLabelValues("test")); got != 200 {
		t.Fatalf("expected 200 test rows, got %v", got)
	}
}
