package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/product-classifier/internal/bootstrap"
	"github.com/kirillkom/product-classifier/internal/config"
	"github.com/kirillkom/product-classifier/internal/observability/logging"
	"github.com/kirillkom/product-classifier/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service:    "product-classifier-worker",
		OnQueueLag: workerMetrics.ObserveQueueLag,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	trainer := app.NewTrainer(workerMetrics)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	timeout := cfg.TrainTimeout()
	logger.Info("worker_subscribed", "subject", cfg.NATSTrainSubject, "train_timeout", timeout.String())
	err = app.TrainingQueue.SubscribeTrainingRequested(ctx, func(handlerCtx context.Context, modelID string) error {
		runCtx := handlerCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(handlerCtx, timeout)
			defer cancel()
		}

		started := time.Now()
		workerMetrics.StartTraining()
		err := trainer.TrainByID(runCtx, modelID)
		workerMetrics.FinishTraining(time.Since(started), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
