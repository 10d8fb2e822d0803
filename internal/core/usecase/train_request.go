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

type TrainingRequestUseCase struct {
	repo   ports.ModelRepository
	queue  ports.TrainingQueue
	logger *slog.Logger
}

func NewTrainingRequestUseCase(repo ports.ModelRepository, queue ports.TrainingQueue, logger *slog.Logger) *TrainingRequestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingRequestUseCase{repo: repo, queue: queue, logger: logger}
}

// Request records a started, inactive model and enqueues its training run.
func (uc *TrainingRequestUseCase) Request(ctx context.Context, name, description string) (*domain.ClassificationModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "request training", errors.New("name is required"))
	}
	now := time.Now().UTC()
	model := &domain.ClassificationModel{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		StartDate:   now,
		Status:      domain.ModelStatusStarted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, model); err != nil {
		return nil, fmt.Errorf("create model record: %w", err)
	}
	if err := uc.queue.PublishTrainingRequested(ctx, model.ID); err != nil {
		if markErr := uc.repo.MarkCancelled(ctx, model.ID, "enqueue training: "+err.Error()); markErr != nil {
			return nil, fmt.Errorf("publish training request: %w; mark cancelled: %v", err, markErr)
		}
		return nil, fmt.Errorf("publish training request: %w", err)
	}
	uc.logger.Info("training_requested", "model_id", model.ID, "name", model.Name)
	return model, nil
}
