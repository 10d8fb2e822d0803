package ports

import (
	"context"
	"io"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

// ProductTextSource reads the catalog in keyset batches ordered by id.
type ProductTextSource interface {
	FetchTextBatch(ctx context.Context, field domain.TextField, afterID int64, limit int) ([]domain.TextRow, error)
	FetchLabeledBatch(ctx context.Context, afterID int64, limit int) ([]domain.LabeledText, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// ModelRepository persists classification model records and their stats.
type ModelRepository interface {
	Create(ctx context.Context, model *domain.ClassificationModel) error
	GetByID(ctx context.Context, id string) (*domain.ClassificationModel, error)
	GetActive(ctx context.Context) (*domain.ClassificationModel, error)
	List(ctx context.Context, query domain.ListQuery) ([]domain.ClassificationModel, int64, error)
	// Update writes every field; when model.IsActive it deactivates all other records in the same transaction.
	Update(ctx context.Context, model *domain.ClassificationModel) error
	Activate(ctx context.Context, id string) error
	CompleteTraining(ctx context.Context, model *domain.ClassificationModel) error
	MarkCancelled(ctx context.Context, id string, errMessage string) error
	Delete(ctx context.Context, id string) error
}

// ArtifactStorage stores serialized model artifacts by file name.
type ArtifactStorage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

// TrainingQueue publishes/consumes training jobs.
type TrainingQueue interface {
	PublishTrainingRequested(ctx context.Context, modelID string) error
	SubscribeTrainingRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ModelEvents fans out active-model changes to every API replica.
type ModelEvents interface {
	PublishModelActivated(ctx context.Context, modelID string) error
	SubscribeModelActivated(ctx context.Context, handler func(context.Context, string) error) error
}

// CacheInvalidator drops any cached inference state.
type CacheInvalidator interface {
	Invalidate()
}

// TrainingObserver receives dataset sizes of a training run.
type TrainingObserver interface {
	ObserveDataset(trainRows, testRows int)
}

// InferenceObserver is told when the inference cache loads or drops a model.
type InferenceObserver interface {
	ObserveModelLoad()
	ObserveModelInvalidated()
}
