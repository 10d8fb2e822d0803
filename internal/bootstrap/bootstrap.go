package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/product-classifier/internal/config"
	"github.com/kirillkom/product-classifier/internal/core/ports"
	"github.com/kirillkom/product-classifier/internal/core/usecase"
	"github.com/kirillkom/product-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/product-classifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/product-classifier/internal/infrastructure/resilience"
	"github.com/kirillkom/product-classifier/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/product-classifier/internal/ml/maxent"
	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
)

type Options struct {
	// Service names the broker connection and tags logs.
	Service string
	// SkipBroker leaves Bus, TrainingQueue and Events nil (the train CLI works without NATS).
	SkipBroker bool
	// OptionalBroker logs a failed broker connection and continues without it.
	OptionalBroker bool
	// ResilienceObserver receives retry and breaker events of broker publishes.
	ResilienceObserver resilience.Observer
	// OnQueueLag receives the delivery delay of each training job.
	OnQueueLag func(time.Duration)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Models     ports.ModelRepository
	Products   ports.ProductTextSource
	Storage    ports.ArtifactStorage
	Normalizer *textnorm.Normalizer

	Bus           *nats.Client
	TrainingQueue ports.TrainingQueue
	Events        ports.ModelEvents

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	normalizerCfg, err := textnorm.LoadConfig(cfg.StopwordsFile, cfg.CustomStopwords)
	if err != nil {
		return nil, fmt.Errorf("load stop words: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	models := postgres.NewModelRepository(db)
	if err := models.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.ModelsDirectory)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init model storage: %w", err)
	}

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Models:     models,
		Products:   postgres.NewProductRepository(db),
		Storage:    storage,
		Normalizer: textnorm.New(normalizerCfg),
	}

	if !opts.SkipBroker {
		if err := app.connectBroker(cfg, opts); err != nil {
			if !opts.OptionalBroker {
				_ = db.Close()
				return nil, err
			}
			logger.Warn("broker_unavailable", "url", cfg.NATSURL, "error", err)
		}
	}

	app.closeFn = func() {
		if app.Bus != nil {
			app.Bus.Close()
		}
		_ = db.Close()
	}
	return app, nil
}

func (a *App) connectBroker(cfg config.Config, opts Options) error {
	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	resilienceCfg.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	resilienceCfg.BreakerEnabled = cfg.ResilienceBreakerEnabled
	resilienceCfg.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout

	executorOpts := []resilience.Option{resilience.WithLogger(a.Logger)}
	if opts.ResilienceObserver != nil {
		executorOpts = append(executorOpts, resilience.WithObserver(opts.ResilienceObserver))
	}

	service := opts.Service
	if service == "" {
		service = "product-classifier"
	}
	natsOpts := nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilienceCfg, executorOpts...),
		Logger:             a.Logger,
	}
	if opts.OptionalBroker {
		failFast := false
		natsOpts.RetryOnFailedConnect = &failFast
	}
	bus, err := nats.Connect(cfg.NATSURL, service, natsOpts)
	if err != nil {
		return fmt.Errorf("init message bus: %w", err)
	}
	a.Bus = bus
	a.TrainingQueue = nats.NewTrainingQueue(bus, cfg.NATSTrainSubject, opts.OnQueueLag)
	a.Events = nats.NewModelEvents(bus, cfg.NATSActivationSubject)
	return nil
}

// TrainingOptions maps configuration onto the training run options.
func TrainingOptions(cfg config.Config) usecase.TrainingOptions {
	opts := usecase.DefaultTrainingOptions()
	opts.BatchSize = cfg.TrainBatchSize
	opts.TestFraction = cfg.TrainTestFraction
	opts.Seed = uint64(cfg.TrainSeed)
	opts.L2Normalize = cfg.TrainL2Normalize
	opts.Classifier = maxent.Options{
		Epochs:       cfg.TrainEpochs,
		LearningRate: cfg.TrainLearningRate,
		L2:           cfg.TrainL2,
		Seed:         uint64(cfg.TrainSeed),
	}
	return opts
}

func (a *App) NewTextStats() *usecase.TextStatsUseCase {
	return usecase.NewTextStatsUseCase(a.Products, a.Normalizer, a.Config.TextStatsBatchSize, a.Logger)
}

func (a *App) NewTrainer(observer ports.TrainingObserver) *usecase.TrainModelUseCase {
	return usecase.NewTrainModelUseCase(a.Models, a.Products, a.Storage, a.Normalizer, TrainingOptions(a.Config), observer, a.Logger)
}

// NewTrainingRequester fails without a broker; the train CLI trains in-process instead.
func (a *App) NewTrainingRequester() (*usecase.TrainingRequestUseCase, error) {
	if a.TrainingQueue == nil {
		return nil, fmt.Errorf("training requests need a message broker")
	}
	return usecase.NewTrainingRequestUseCase(a.Models, a.TrainingQueue, a.Logger), nil
}

func (a *App) NewPredictor(observer ports.InferenceObserver) *usecase.PredictUseCase {
	return usecase.NewPredictUseCase(a.Models, a.Storage, observer, a.Logger)
}

// NewRegistry wires the registry; cache may be nil and events are omitted without a broker.
func (a *App) NewRegistry(cache ports.CacheInvalidator) *usecase.ModelRegistryUseCase {
	return usecase.NewModelRegistryUseCase(a.Models, a.Storage, cache, a.Events, a.Logger)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
