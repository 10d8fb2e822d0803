package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/core/ports"
	"github.com/kirillkom/product-classifier/internal/ml/artifact"
	"github.com/kirillkom/product-classifier/internal/ml/labelcodec"
)

type loadedModel struct {
	modelID  string
	codec    *labelcodec.Codec
	pipeline *artifact.Pipeline
}

// PredictUseCase serves predictions from a lazily loaded copy of the active model.
type PredictUseCase struct {
	repo     ports.ModelRepository
	storage  ports.ArtifactStorage
	observer ports.InferenceObserver
	logger   *slog.Logger

	mu         sync.RWMutex
	current    *loadedModel
	generation uint64
	group      singleflight.Group
}

// NewPredictUseCase builds an empty cache; observer may be nil.
func NewPredictUseCase(
	repo ports.ModelRepository,
	storage ports.ArtifactStorage,
	observer ports.InferenceObserver,
	logger *slog.Logger,
) *PredictUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictUseCase{repo: repo, storage: storage, observer: observer, logger: logger}
}

func (uc *PredictUseCase) Predict(ctx context.Context, designation, description string) (*domain.PredictionAnswer, error) {
	if strings.TrimSpace(designation) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "predict", errors.New("designation is required"))
	}
	if utf8.RuneCountInString(designation) > domain.MaxDesignationLength {
		return nil, domain.WrapError(domain.ErrInvalidInput, "predict",
			fmt.Errorf("designation exceeds %d characters", domain.MaxDesignationLength))
	}

	model, err := uc.loaded(ctx)
	if err != nil {
		return nil, err
	}

	probs := model.pipeline.Predict(designation, description)
	out := make([]domain.CategoryProbability, 0, len(probs))
	for key, p := range probs {
		categoryID, ok := model.codec.Decode(key)
		if !ok {
			return nil, domain.WrapError(domain.ErrModelIncomplete, "predict", fmt.Errorf("no category for key %d", key))
		}
		out = append(out, domain.CategoryProbability{CategoryID: categoryID, Probability: p * 100})
	}
	return &domain.PredictionAnswer{
		Designation:   designation,
		Description:   description,
		ModelID:       model.modelID,
		Probabilities: out,
	}, nil
}

// Invalidate drops the cached model; an in-progress load started before the call is discarded.
func (uc *PredictUseCase) Invalidate() {
	uc.mu.Lock()
	uc.current = nil
	uc.generation++
	uc.mu.Unlock()
	if uc.observer != nil {
		uc.observer.ObserveModelInvalidated()
	}
}

func (uc *PredictUseCase) loaded(ctx context.Context) (*loadedModel, error) {
	uc.mu.RLock()
	current, gen := uc.current, uc.generation
	uc.mu.RUnlock()
	if current != nil {
		return current, nil
	}

	v, err, _ := uc.group.Do(fmt.Sprintf("load-%d", gen), func() (any, error) {
		uc.mu.RLock()
		if uc.current != nil && uc.generation == gen {
			current := uc.current
			uc.mu.RUnlock()
			return current, nil
		}
		uc.mu.RUnlock()

		model, err := uc.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		uc.mu.Lock()
		if uc.generation == gen {
			uc.current = model
		}
		uc.mu.Unlock()
		return model, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*loadedModel), nil
}

func (uc *PredictUseCase) load(ctx context.Context) (*loadedModel, error) {
	record, err := uc.repo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active model: %w", err)
	}
	if record.FileName == "" || record.KeyToCategoryMap == "" {
		return nil, domain.WrapError(domain.ErrModelIncomplete, "load model",
			fmt.Errorf("active model %s has no artifact or key map", record.ID))
	}
	codec, err := labelcodec.Parse(record.KeyToCategoryMap)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelIncomplete, "load model", err)
	}

	rc, err := uc.storage.Open(ctx, record.FileName)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifactUnavailable, "load model", err)
	}
	defer rc.Close()
	art, err := artifact.Decode(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifactUnavailable, "load model", err)
	}
	pipeline := art.Pipeline()
	if pipeline.Classes() != codec.Len() {
		return nil, domain.WrapError(domain.ErrModelIncomplete, "load model",
			fmt.Errorf("artifact has %d classes, key map has %d", pipeline.Classes(), codec.Len()))
	}

	uc.logger.Info("inference_model_loaded", "model_id", record.ID, "file_name", record.FileName, "classes", codec.Len())
	if uc.observer != nil {
		uc.observer.ObserveModelLoad()
	}
	return &loadedModel{modelID: record.ID, codec: codec, pipeline: pipeline}, nil
}
