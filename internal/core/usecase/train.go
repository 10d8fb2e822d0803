package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/core/ports"
	"github.com/kirillkom/product-classifier/internal/ml/artifact"
	"github.com/kirillkom/product-classifier/internal/ml/bow"
	"github.com/kirillkom/product-classifier/internal/ml/evaluation"
	"github.com/kirillkom/product-classifier/internal/ml/labelcodec"
	"github.com/kirillkom/product-classifier/internal/ml/maxent"
	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
)

const cancelWriteTimeout = 10 * time.Second

type TrainingOptions struct {
	BatchSize    int
	TestFraction float64
	Seed         uint64
	L2Normalize  bool
	Classifier   maxent.Options
}

func DefaultTrainingOptions() TrainingOptions {
	return TrainingOptions{
		BatchSize:    defaultBatchSize,
		TestFraction: 0.2,
		Seed:         42,
		L2Normalize:  true,
		Classifier:   maxent.DefaultOptions(),
	}
}

type TrainModelUseCase struct {
	repo       ports.ModelRepository
	source     ports.ProductTextSource
	storage    ports.ArtifactStorage
	normalizer *textnorm.Normalizer
	opts       TrainingOptions
	observer   ports.TrainingObserver
	logger     *slog.Logger
	now        func() time.Time
}

func NewTrainModelUseCase(
	repo ports.ModelRepository,
	source ports.ProductTextSource,
	storage ports.ArtifactStorage,
	normalizer *textnorm.Normalizer,
	opts TrainingOptions,
	observer ports.TrainingObserver,
	logger *slog.Logger,
) *TrainModelUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = DefaultTrainingOptions().TestFraction
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainModelUseCase{
		repo:       repo,
		source:     source,
		storage:    storage,
		normalizer: normalizer,
		opts:       opts,
		observer:   observer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// TrainByID runs a full training for a started record. Any failure after loading the record
// moves it to cancelled; a written artifact is removed when the final persist fails.
func (uc *TrainModelUseCase) TrainByID(ctx context.Context, modelID string) error {
	model, err := uc.repo.GetByID(ctx, modelID)
	if err != nil {
		return fmt.Errorf("fetch model by id: %w", err)
	}
	if model.Status != domain.ModelStatusStarted {
		return domain.WrapError(domain.ErrInvalidInput, "train model",
			fmt.Errorf("model %s is %s, expected %s", model.ID, model.Status, domain.ModelStatusStarted))
	}

	started := uc.now()
	uc.logger.Info("training_started", "model_id", model.ID, "name", model.Name)

	fileName, err := uc.run(ctx, model)
	if err != nil {
		if cancelErr := uc.cancel(ctx, model.ID, fileName, err); cancelErr != nil {
			return fmt.Errorf("%w; mark cancelled: %v", err, cancelErr)
		}
		return err
	}

	uc.logger.Info("training_finished",
		"model_id", model.ID,
		"file_name", fileName,
		"micro_accuracy", model.Stats.MicroAccuracy,
		"macro_accuracy", model.Stats.MacroAccuracy,
		"duration", uc.now().Sub(started).String(),
	)
	return nil
}

// run returns the artifact file name once it has been written, even on a later failure.
func (uc *TrainModelUseCase) run(ctx context.Context, model *domain.ClassificationModel) (string, error) {
	rows, err := uc.loadCorpus(ctx)
	if err != nil {
		return "", err
	}
	train, test, err := splitCorpus(rows, uc.opts.TestFraction, uc.opts.Seed)
	if err != nil {
		return "", err
	}
	if uc.observer != nil {
		uc.observer.ObserveDataset(len(train), len(test))
	}

	codec, err := buildCodec(train)
	if err != nil {
		return "", err
	}
	uc.logMissingCategories(ctx, codec)

	docs := make([][]string, len(train))
	for i, row := range train {
		docs[i] = uc.normalizer.AssembleTokens(row.Designation, row.Description).Reduced
	}
	featurizer := bow.Fit(docs, uc.opts.L2Normalize)
	samples := make([]maxent.Sample, len(train))
	for i, row := range train {
		key, _ := codec.Encode(row.CategoryID)
		samples[i] = maxent.Sample{X: featurizer.Transform(docs[i]), Label: key}
	}

	classifier, err := maxent.Train(ctx, samples, codec.Len(), featurizer.Size(), uc.opts.Classifier,
		func(epoch int, loss float64) {
			uc.logger.Debug("training_epoch", "model_id", model.ID, "epoch", epoch, "loss", loss)
		})
	if err != nil {
		return "", fmt.Errorf("fit classifier: %w", err)
	}

	art := &artifact.Artifact{
		ModelID:     model.ID,
		CreatedAt:   uc.now(),
		Normalizer:  uc.normalizer.Config(),
		Vocabulary:  featurizer.Vocabulary(),
		L2Normalize: featurizer.L2Normalize(),
		Classifier:  *classifier,
	}

	stats, err := uc.evaluate(ctx, model.ID, art.Pipeline(), codec, test)
	if err != nil {
		return "", err
	}

	fileName := artifact.FileName(model.StartDate, model.ID)
	var buf bytes.Buffer
	if err := artifact.Encode(&buf, art); err != nil {
		return "", fmt.Errorf("serialize model: %w", err)
	}
	if err := uc.storage.Save(ctx, fileName, &buf); err != nil {
		return "", fmt.Errorf("save model artifact: %w", err)
	}

	end := uc.now()
	model.EndDate = &end
	model.Status = domain.ModelStatusFinished
	model.FileName = fileName
	model.KeyToCategoryMap = codec.String()
	model.Stats = stats
	model.ErrorMessage = ""
	if err := uc.repo.CompleteTraining(ctx, model); err != nil {
		return fileName, fmt.Errorf("persist training result: %w", err)
	}
	return fileName, nil
}

func (uc *TrainModelUseCase) loadCorpus(ctx context.Context) ([]domain.LabeledText, error) {
	var (
		rows    []domain.LabeledText
		afterID int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := uc.source.FetchLabeledBatch(ctx, afterID, uc.opts.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("fetch labeled batch after id %d: %w", afterID, err)
		}
		rows = append(rows, batch...)
		if len(batch) < uc.opts.BatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}
	return rows, nil
}

func (uc *TrainModelUseCase) evaluate(
	ctx context.Context,
	modelID string,
	pipeline *artifact.Pipeline,
	codec *labelcodec.Codec,
	test []domain.LabeledText,
) (*domain.ModelStats, error) {
	evaluator := evaluation.New(codec)
	for i, row := range test {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := evaluator.Observe(row.CategoryID, pipeline.Predict(row.Designation, row.Description)); err != nil {
			return nil, fmt.Errorf("evaluate model: %w", err)
		}
	}
	if skipped := evaluator.Skipped(); skipped > 0 {
		uc.logger.Warn("test_rows_skipped", "model_id", modelID, "rows", skipped, "reason", "category absent from training split")
	}
	return evaluator.Stats()
}

func (uc *TrainModelUseCase) logMissingCategories(ctx context.Context, codec *labelcodec.Codec) {
	categories, err := uc.source.ListCategories(ctx)
	if err != nil {
		uc.logger.Warn("list_categories_failed", "error", err.Error())
		return
	}
	for _, c := range categories {
		if _, ok := codec.Encode(c.ID); !ok {
			uc.logger.Warn("category_without_training_rows", "category_id", c.ID, "category", c.Name)
		}
	}
}

func (uc *TrainModelUseCase) cancel(ctx context.Context, modelID, fileName string, runErr error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelWriteTimeout)
	defer cancel()

	if fileName != "" {
		if err := uc.storage.Delete(writeCtx, fileName); err != nil {
			uc.logger.Error("artifact_cleanup_failed", "model_id", modelID, "file_name", fileName, "error", err.Error())
		}
	}
	uc.logger.Warn("training_cancelled", "model_id", modelID, "error", runErr.Error())
	return uc.repo.MarkCancelled(writeCtx, modelID, runErr.Error())
}

// splitCorpus shuffles with a seeded PCG and holds out round(n*fraction) rows, at least one.
func splitCorpus(rows []domain.LabeledText, fraction float64, seed uint64) ([]domain.LabeledText, []domain.LabeledText, error) {
	n := len(rows)
	testCount := int(math.Round(float64(n) * fraction))
	if testCount < 1 {
		testCount = 1
	}
	if n-testCount < 2 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "split corpus",
			fmt.Errorf("corpus of %d rows leaves fewer than 2 training rows", n))
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

	test := make([]domain.LabeledText, 0, testCount)
	train := make([]domain.LabeledText, 0, n-testCount)
	for i, idx := range order {
		if i < testCount {
			test = append(test, rows[idx])
		} else {
			train = append(train, rows[idx])
		}
	}
	return train, test, nil
}

func buildCodec(train []domain.LabeledText) (*labelcodec.Codec, error) {
	ids := make([]int, len(train))
	for i, row := range train {
		ids[i] = row.CategoryID
	}
	codec, err := labelcodec.Build(ids)
	if err != nil {
		return nil, err
	}
	if codec.Len() < 2 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build label codec",
			errors.New("training split has fewer than 2 distinct categories"))
	}
	return codec, nil
}
