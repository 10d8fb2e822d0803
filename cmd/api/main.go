package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/product-classifier/internal/adapters/http"
	"github.com/kirillkom/product-classifier/internal/bootstrap"
	"github.com/kirillkom/product-classifier/internal/config"
	"github.com/kirillkom/product-classifier/internal/observability/logging"
	"github.com/kirillkom/product-classifier/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		Service:            "product-classifier-api",
		ResilienceObserver: apiMetrics,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	predictor := app.NewPredictor(apiMetrics)
	registry := app.NewRegistry(predictor)
	trainer, err := app.NewTrainingRequester()
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	// Other replicas announce activation changes; drop the local model so the next prediction reloads.
	go func() {
		err := app.Events.SubscribeModelActivated(ctx, func(_ context.Context, modelID string) error {
			predictor.Invalidate()
			logger.Info("inference_cache_invalidated", "model_id", modelID)
			return nil
		})
		if err != nil {
			logger.Error("model_events_subscribe_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Predictor: predictor,
		Registry:  registry,
		Training:  trainer,
		TextStats: app.NewTextStats(),
	}, httpadapter.WithMetrics(apiMetrics), httpadapter.WithLogger(logger))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(max(cfg.APIRequestTimeoutSeconds, 30)) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
