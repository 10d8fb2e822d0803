package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kirillkom/product-classifier/internal/config"
	"github.com/kirillkom/product-classifier/internal/core/domain"
)

type predictorFake struct {
	answer *domain.PredictionAnswer
	err    error
	calls  int
}

func (f *predictorFake) Predict(_ context.Context, designation, description string) (*domain.PredictionAnswer, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.PredictionAnswer{
		Designation: designation,
		Description: description,
		ModelID:     "m-1",
		Probabilities: []domain.CategoryProbability{
			{CategoryID: 10, Probability: 80},
			{CategoryID: 40, Probability: 20},
		},
	}, nil
}

func (f *predictorFake) Invalidate() {}

type registryFake struct {
	models    map[string]*domain.ClassificationModel
	page      *domain.ModelPage
	lastQuery domain.ListQuery
	err       error
	deleted   []string
}

func newRegistryFake(models ...*domain.ClassificationModel) *registryFake {
	f := &registryFake{models: make(map[string]*domain.ClassificationModel)}
	for _, m := range models {
		f.models[m.ID] = m
	}
	return f
}

func (f *registryFake) Create(_ context.Context, input domain.NewModelInput) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := &domain.ClassificationModel{ID: "created", Name: input.Name, Status: domain.ModelStatusStarted}
	f.models[m.ID] = m
	return m, nil
}

func (f *registryFake) List(_ context.Context, query domain.ListQuery) (*domain.ModelPage, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	if f.page != nil {
		return f.page, nil
	}
	return &domain.ModelPage{Items: []domain.ClassificationModel{}}, nil
}

func (f *registryFake) Get(_ context.Context, id string) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.models[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrModelNotFound, "get model", errors.New(id))
	}
	return m, nil
}

func (f *registryFake) GetActive(context.Context) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.models {
		if m.IsActive {
			return m, nil
		}
	}
	return nil, domain.ErrNoActiveModel
}

func (f *registryFake) Update(_ context.Context, pathID string, model domain.ClassificationModel) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	model.ID = pathID
	return &model, nil
}

func (f *registryFake) Patch(_ context.Context, pathID string, patch domain.ModelPatch) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, err := f.Get(context.Background(), pathID)
	if err != nil {
		return nil, err
	}
	out := *m
	patch.Apply(&out)
	return &out, nil
}

func (f *registryFake) SetActive(_ context.Context, id string) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Get(context.Background(), id)
}

func (f *registryFake) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type trainingFake struct {
	err  error
	name string
}

func (f *trainingFake) Request(_ context.Context, name, description string) (*domain.ClassificationModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.name = name
	return &domain.ClassificationModel{ID: "run-1", Name: name, Description: description, Status: domain.ModelStatusStarted}, nil
}

type textStatsFake struct {
	field      string
	topN, topM int
	err        error
}

func (f *textStatsFake) Compute(_ context.Context, field string, topN, topM int) (*domain.TextVariableStats, error) {
	f.field, f.topN, f.topM = field, topN, topM
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TextVariableStats{
		VariableName: field,
		NbWords:      3,
		WordsCount:   []domain.WordCount{{Word: "ballon", Count: 2}},
	}, nil
}

type testServices struct {
	predictor *predictorFake
	registry  *registryFake
	training  *trainingFake
	stats     *textStatsFake
}

func newTestServices(models ...*domain.ClassificationModel) testServices {
	return testServices{
		predictor: &predictorFake{},
		registry:  newRegistryFake(models...),
		training:  &trainingFake{},
		stats:     &textStatsFake{},
	}
}

func (s testServices) handler(cfg config.Config, opts ...Option) http.Handler {
	return NewRouter(cfg, Services{
		Predictor: s.predictor,
		Registry:  s.registry,
		Training:  s.training,
		TextStats: s.stats,
	}, opts...).Handler()
}

func finishedModel(id string) *domain.ClassificationModel {
	end := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	return &domain.ClassificationModel{
		ID:        id,
		Name:      "nightly",
		StartDate: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		EndDate:   &end,
		Status:    domain.ModelStatusFinished,
		FileName:  "maxentModel-20240301110000-" + id + ".pclf",
		Stats: &domain.ModelStats{
			MacroAccuracy: 0.75,
			MicroAccuracy: 0.8333,
			LogLoss:       0.41,
			ConfusionMatrix: &domain.ConfusionMatrix{
				NumberOfClasses: 2,
				Counts: []domain.ConfusionCount{
					{RealClass: 10, PredictedClass: 10, Count: 3},
					{RealClass: 10, PredictedClass: 40, Count: 1},
					{RealClass: 40, PredictedClass: 40, Count: 2},
				},
				PerClassPrecision: []domain.PerClassScore{{Class: 10, Score: 1}, {Class: 40, Score: 0.6667}},
				PerClassRecall:    []domain.PerClassScore{{Class: 10, Score: 0.75}, {Class: 40, Score: 1}},
			},
		},
	}
}
