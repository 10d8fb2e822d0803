package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	trainingTotal    *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	trainingInFlight prometheus.Gauge
	datasetRows      *prometheus.GaugeVec
	queueLag         prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	trainingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "training_runs_total",
			Help:        "Total training runs by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	trainingDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "training_duration_seconds",
			Help:        "Training run duration in seconds by status.",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	trainingInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "training_in_flight",
			Help:        "Number of in-flight training runs.",
			ConstLabels: constLabels,
		},
	)
	datasetRows := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "dataset_rows",
			Help:        "Rows in the train and test splits of the latest training run.",
			ConstLabels: constLabels,
		},
		[]string{"split"},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between a training request and its delivery to a worker.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(trainingTotal, trainingDuration, trainingInFlight, datasetRows, queueLag)

	return &WorkerMetrics{
		registry:         registry,
		trainingTotal:    trainingTotal,
		trainingDuration: trainingDuration,
		trainingInFlight: trainingInFlight,
		datasetRows:      datasetRows,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartTraining() {
	m.trainingInFlight.Inc()
}

func (m *WorkerMetrics) FinishTraining(duration time.Duration, err error) {
	m.trainingInFlight.Dec()

	status := "finished"
	if err != nil {
		status = "cancelled"
	}
	m.trainingTotal.WithLabelValues(status).Inc()
	m.trainingDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveDataset(trainRows, testRows int) {
	m.datasetRows.WithLabelValues("train").Set(float64(trainRows))
	m.datasetRows.WithLabelValues("test").Set(float64(testRows))
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
