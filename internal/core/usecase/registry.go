package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/core/ports"
)

type ModelRegistryUseCase struct {
	repo    ports.ModelRepository
	storage ports.ArtifactStorage
	cache   ports.CacheInvalidator
	events  ports.ModelEvents
	logger  *slog.Logger
}

// NewModelRegistryUseCase wires the registry. cache and events are optional.
func NewModelRegistryUseCase(
	repo ports.ModelRepository,
	storage ports.ArtifactStorage,
	cache ports.CacheInvalidator,
	events ports.ModelEvents,
	logger *slog.Logger,
) *ModelRegistryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelRegistryUseCase{
		repo:    repo,
		storage: storage,
		cache:   cache,
		events:  events,
		logger:  logger,
	}
}

func (uc *ModelRegistryUseCase) Create(ctx context.Context, input domain.NewModelInput) (*domain.ClassificationModel, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create model", errors.New("name is required"))
	}
	now := time.Now().UTC()
	model := &domain.ClassificationModel{
		ID:          uuid.NewString(),
		Name:        name,
		Description: input.Description,
		StartDate:   now,
		EndDate:     input.EndDate,
		Status:      domain.ModelStatusStarted,
		FileName:    input.FileName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.StartDate != nil {
		model.StartDate = input.StartDate.UTC()
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, domain.WrapError(domain.ErrInvalidInput, "create model", fmt.Errorf("invalid status %q", *input.Status))
		}
		model.Status = *input.Status
	}
	if err := uc.repo.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("create model record: %w", err)
	}
	return model, nil
}

func (uc *ModelRegistryUseCase) List(ctx context.Context, query domain.ListQuery) (*domain.ModelPage, error) {
	query = query.Normalize()
	items, total, err := uc.repo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if items == nil {
		items = []domain.ClassificationModel{}
	}
	return &domain.ModelPage{
		Items:        items,
		TotalRecords: total,
		TotalPages:   domain.TotalPages(total, query.Take),
		Take:         query.Take,
	}, nil
}

func (uc *ModelRegistryUseCase) Get(ctx context.Context, id string) (*domain.ClassificationModel, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.WrapError(domain.ErrModelNotFound, "get model", fmt.Errorf("model %q", id))
	}
	model, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch model by id: %w", err)
	}
	return model, nil
}

// GetActive never returns partial data: a missing confusion matrix is reported as ErrModelIncomplete.
func (uc *ModelRegistryUseCase) GetActive(ctx context.Context) (*domain.ClassificationModel, error) {
	model, err := uc.repo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active model: %w", err)
	}
	if !model.Stats.Complete() {
		return nil, domain.WrapError(domain.ErrModelIncomplete, "get active model",
			fmt.Errorf("model %s has no confusion matrix", model.ID))
	}
	return model, nil
}

func (uc *ModelRegistryUseCase) Update(ctx context.Context, pathID string, model domain.ClassificationModel) (*domain.ClassificationModel, error) {
	if model.ID != pathID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update model", fmt.Errorf("path id %q does not match body id %q", pathID, model.ID))
	}
	existing, err := uc.Get(ctx, pathID)
	if err != nil {
		return nil, err
	}

	next := *existing
	next.Name = model.Name
	next.Description = model.Description
	next.StartDate = model.StartDate
	next.EndDate = model.EndDate
	next.Status = model.Status
	next.IsActive = model.IsActive
	next.FileName = model.FileName
	next.KeyToCategoryMap = model.KeyToCategoryMap
	if model.Version != 0 {
		next.Version = model.Version
	}
	return uc.write(ctx, "update model", existing, &next)
}

// Patch overwrites only provided fields; empty strings count as not provided.
func (uc *ModelRegistryUseCase) Patch(ctx context.Context, pathID string, patch domain.ModelPatch) (*domain.ClassificationModel, error) {
	if patch.ID != pathID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "patch model", fmt.Errorf("path id %q does not match body id %q", pathID, patch.ID))
	}
	existing, err := uc.Get(ctx, pathID)
	if err != nil {
		return nil, err
	}
	next := *existing
	patch.Apply(&next)
	return uc.write(ctx, "patch model", existing, &next)
}

func (uc *ModelRegistryUseCase) write(ctx context.Context, op string, existing, next *domain.ClassificationModel) (*domain.ClassificationModel, error) {
	if strings.TrimSpace(next.Name) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("name is required"))
	}
	if !next.Status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid status %q", next.Status))
	}
	// A record that stays active is re-checked only when its artifact or status changes.
	if next.IsActive && (!existing.IsActive || next.FileName != existing.FileName || next.Status != existing.Status) {
		if err := uc.checkEligibility(ctx, next); err != nil {
			return nil, err
		}
	}
	if err := uc.repo.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing.IsActive || next.IsActive {
		uc.notifyActiveChanged(ctx, next.ID)
	}
	return uc.repo.GetByID(ctx, next.ID)
}

// SetActive activates one eligible model and deactivates every other in a single repository transaction.
func (uc *ModelRegistryUseCase) SetActive(ctx context.Context, id string) (*domain.ClassificationModel, error) {
	model, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uc.checkEligibility(ctx, model); err != nil {
		return nil, err
	}
	if err := uc.repo.Activate(ctx, id); err != nil {
		return nil, fmt.Errorf("activate model: %w", err)
	}
	uc.logger.Info("model_activated", "model_id", id, "file_name", model.FileName)
	uc.notifyActiveChanged(ctx, id)
	return uc.repo.GetByID(ctx, id)
}

// Delete removes the record first, then its artifact. A failed file delete leaves the record deleted.
func (uc *ModelRegistryUseCase) Delete(ctx context.Context, id string) error {
	model, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete model record: %w", err)
	}
	if model.IsActive {
		uc.notifyActiveChanged(ctx, id)
	}
	if model.FileName == "" {
		return nil
	}
	if err := uc.storage.Delete(ctx, model.FileName); err != nil {
		uc.logger.Error("artifact_delete_failed", "model_id", id, "file_name", model.FileName, "error", err.Error())
		return fmt.Errorf("delete model artifact %s: %w", model.FileName, err)
	}
	uc.logger.Info("model_deleted", "model_id", id, "was_active", model.IsActive)
	return nil
}

func (uc *ModelRegistryUseCase) checkEligibility(ctx context.Context, model *domain.ClassificationModel) error {
	const op = "check activation eligibility"
	if strings.TrimSpace(model.FileName) == "" {
		return domain.WrapError(domain.ErrActivationRejected, op, fmt.Errorf("model %s has no file name", model.ID))
	}
	exists, err := uc.storage.Exists(ctx, model.FileName)
	if err != nil {
		return fmt.Errorf("%s: stat artifact: %w", op, err)
	}
	if !exists {
		return domain.WrapError(domain.ErrActivationRejected, op, fmt.Errorf("artifact %s does not exist", model.FileName))
	}
	if model.Status != domain.ModelStatusFinished {
		return domain.WrapError(domain.ErrActivationRejected, op,
			fmt.Errorf("model status is %s, must be %s", model.Status, domain.ModelStatusFinished))
	}
	return nil
}

func (uc *ModelRegistryUseCase) notifyActiveChanged(ctx context.Context, id string) {
	if uc.cache != nil {
		uc.cache.Invalidate()
	}
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishModelActivated(ctx, id); err != nil {
		uc.logger.Warn("model_activation_publish_failed", "model_id", id, "error", err.Error())
	}
}
