// Package memory holds in-process repositories used by the train CLI and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

const dateText = "2006-01-02 15:04:05"

// ModelRepository keeps records in a map; one mutex serializes every write.
type ModelRepository struct {
	mu     sync.RWMutex
	models map[string]*domain.ClassificationModel
	now    func() time.Time
}

func NewModelRepository() *ModelRepository {
	return &ModelRepository{
		models: make(map[string]*domain.ClassificationModel),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *ModelRepository) Create(_ context.Context, model *domain.ClassificationModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[model.ID]; exists {
		return domain.WrapError(domain.ErrConflict, "create model", fmt.Errorf("model %s already exists", model.ID))
	}
	stored := cloneModel(model)
	stored.IsActive = false
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	r.models[model.ID] = stored
	model.Version = stored.Version
	model.IsActive = false
	return nil
}

func (r *ModelRepository) GetByID(_ context.Context, id string) (*domain.ClassificationModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrModelNotFound, "get model", fmt.Errorf("model %s", id))
	}
	return cloneModel(m), nil
}

func (r *ModelRepository) GetActive(_ context.Context) (*domain.ClassificationModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.models {
		if m.IsActive {
			return cloneModel(m), nil
		}
	}
	return nil, domain.WrapError(domain.ErrNoActiveModel, "get active model", fmt.Errorf("no record has is_active=true"))
}

func (r *ModelRepository) List(_ context.Context, query domain.ListQuery) ([]domain.ClassificationModel, int64, error) {
	query = query.Normalize()
	r.mu.RLock()
	matched := make([]*domain.ClassificationModel, 0, len(r.models))
	for _, m := range r.models {
		if matchesSearch(m, query.Search) {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := int64(len(matched))
	out := make([]domain.ClassificationModel, 0, query.Take)
	for i := query.Skip; i < len(matched) && len(out) < query.Take; i++ {
		out = append(out, *cloneModel(matched[i]))
	}
	r.mu.RUnlock()
	return out, total, nil
}

func (r *ModelRepository) Update(_ context.Context, model *domain.ClassificationModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.models[model.ID]
	if !ok {
		return domain.WrapError(domain.ErrModelNotFound, "update model", fmt.Errorf("model %s", model.ID))
	}
	if stored.Version != model.Version {
		return domain.WrapError(domain.ErrConflict, "update model",
			fmt.Errorf("model %s version %d is stale, current %d", model.ID, model.Version, stored.Version))
	}
	now := r.now()
	if model.IsActive {
		r.deactivateOthersLocked(model.ID, now)
	}
	next := cloneModel(model)
	next.Stats = stored.Stats
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = now
	next.Version = stored.Version + 1
	r.models[model.ID] = next
	return nil
}

func (r *ModelRepository) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.models[id]
	if !ok {
		return domain.WrapError(domain.ErrModelNotFound, "activate model", fmt.Errorf("model %s", id))
	}
	if stored.Status != domain.ModelStatusFinished || stored.FileName == "" {
		return domain.WrapError(domain.ErrActivationRejected, "activate model",
			fmt.Errorf("model %s is %s with file %q", id, stored.Status, stored.FileName))
	}
	now := r.now()
	r.deactivateOthersLocked(id, now)
	if !stored.IsActive {
		stored.IsActive = true
		stored.Version++
		stored.UpdatedAt = now
	}
	return nil
}

func (r *ModelRepository) CompleteTraining(_ context.Context, model *domain.ClassificationModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.models[model.ID]
	if !ok {
		return domain.WrapError(domain.ErrModelNotFound, "complete training", fmt.Errorf("model %s", model.ID))
	}
	if stored.Status != domain.ModelStatusStarted {
		return domain.WrapError(domain.ErrConflict, "complete training", fmt.Errorf("model %s is %s", model.ID, stored.Status))
	}
	stored.EndDate = cloneTime(model.EndDate)
	stored.Status = domain.ModelStatusFinished
	stored.FileName = model.FileName
	stored.KeyToCategoryMap = model.KeyToCategoryMap
	stored.Stats = cloneStats(model.Stats)
	stored.ErrorMessage = ""
	stored.Version++
	stored.UpdatedAt = r.now()
	return nil
}

func (r *ModelRepository) MarkCancelled(_ context.Context, id string, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.models[id]
	if !ok {
		return domain.WrapError(domain.ErrModelNotFound, "cancel model", fmt.Errorf("model %s", id))
	}
	if stored.Status != domain.ModelStatusStarted {
		return domain.WrapError(domain.ErrConflict, "cancel model", fmt.Errorf("model %s is %s", id, stored.Status))
	}
	now := r.now()
	stored.Status = domain.ModelStatusCancelled
	stored.ErrorMessage = errMessage
	stored.EndDate = &now
	stored.Version++
	stored.UpdatedAt = now
	return nil
}

func (r *ModelRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[id]; !ok {
		return domain.WrapError(domain.ErrModelNotFound, "delete model", fmt.Errorf("model %s", id))
	}
	delete(r.models, id)
	return nil
}

// ActiveCount is the number of records flagged active.
func (r *ModelRepository) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.models {
		if m.IsActive {
			n++
		}
	}
	return n
}

func (r *ModelRepository) deactivateOthersLocked(id string, now time.Time) {
	for otherID, m := range r.models {
		if otherID != id && m.IsActive {
			m.IsActive = false
			m.Version++
			m.UpdatedAt = now
		}
	}
}

func matchesSearch(m *domain.ClassificationModel, search string) bool {
	if search == "" {
		return true
	}
	fields := []string{m.ID, m.Name, m.Description, m.FileName, m.StartDate.Format(dateText)}
	if m.EndDate != nil {
		fields = append(fields, m.EndDate.Format(dateText))
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func cloneModel(m *domain.ClassificationModel) *domain.ClassificationModel {
	out := *m
	out.EndDate = cloneTime(m.EndDate)
	out.Stats = cloneStats(m.Stats)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStats(s *domain.ModelStats) *domain.ModelStats {
	if s == nil {
		return nil
	}
	out := *s
	if s.ConfusionMatrix != nil {
		cm := *s.ConfusionMatrix
		cm.Counts = append([]domain.ConfusionCount(nil), s.ConfusionMatrix.Counts...)
		cm.PerClassPrecision = append([]domain.PerClassScore(nil), s.ConfusionMatrix.PerClassPrecision...)
		cm.PerClassRecall = append([]domain.PerClassScore(nil), s.ConfusionMatrix.PerClassRecall...)
		out.ConfusionMatrix = &cm
	}
	return &out
}
