package ports

import (
	"context"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

// TextStatsService is the inbound contract for vocabulary statistics.
type TextStatsService interface {
	Compute(ctx context.Context, field string, topN, topM int) (*domain.TextVariableStats, error)
}

// TrainingRequester creates a model record and enqueues its training run.
type TrainingRequester interface {
	Request(ctx context.Context, name, description string) (*domain.ClassificationModel, error)
}

// ModelTrainer is the inbound contract for asynchronous training runs.
type ModelTrainer interface {
	TrainByID(ctx context.Context, modelID string) error
}

// ModelRegistry is the inbound contract for model record management.
type ModelRegistry interface {
	Create(ctx context.Context, input domain.NewModelInput) (*domain.ClassificationModel, error)
	List(ctx context.Context, query domain.ListQuery) (*domain.ModelPage, error)
	Get(ctx context.Context, id string) (*domain.ClassificationModel, error)
	GetActive(ctx context.Context) (*domain.ClassificationModel, error)
	Update(ctx context.Context, pathID string, model domain.ClassificationModel) (*domain.ClassificationModel, error)
	Patch(ctx context.Context, pathID string, patch domain.ModelPatch) (*domain.ClassificationModel, error)
	SetActive(ctx context.Context, id string) (*domain.ClassificationModel, error)
	Delete(ctx context.Context, id string) error
}

// Predictor serves category probabilities from the active model.
type Predictor interface {
	Predict(ctx context.Context, designation, description string) (*domain.PredictionAnswer, error)
	Invalidate()
}
