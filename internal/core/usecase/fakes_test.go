package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

type storageFake struct {
	mu        sync.Mutex
	files     map[string][]byte
	saveErr   error
	openErr   error
	existsErr error
	deleteErr error
	deleted   []string
	opens     int
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, name string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	raw, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Exists(_ context.Context, name string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[name]
	return ok, nil
}

func (f *storageFake) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.files, name)
	return nil
}

func (f *storageFake) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[name]
	return ok
}

func (f *storageFake) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishTrainingRequested(_ context.Context, modelID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, modelID)
	return nil
}

func (f *queueFake) SubscribeTrainingRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type eventsFake struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *eventsFake) PublishModelActivated(_ context.Context, modelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, modelID)
	return f.err
}

func (f *eventsFake) SubscribeModelActivated(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type invalidatorFake struct {
	mu    sync.Mutex
	calls int
}

func (f *invalidatorFake) Invalidate() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

type observerFake struct {
	train, test int
}

func (f *observerFake) ObserveDataset(train, test int) {
	f.train, f.test = train, test
}

// syntheticCorpus yields rows for categories 10, 40 and 2705 with disjoint vocabularies.
func syntheticCorpus(n int) []domain.LabeledText {
	vocab := map[int][]string{
		10:   {"ballon", "football", "crampons", "maillot", "plage"},
		40:   {"raquette", "tennis", "cordage", "filet", "balles"},
		2705: {"poupee", "chiffon", "robe", "peluche", "dinette"},
	}
	categories := []int{2705, 10, 40}
	rows := make([]domain.LabeledText, 0, n)
	for i := 0; i < n; i++ {
		cat := categories[i%len(categories)]
		words := vocab[cat]
		rows = append(rows, domain.LabeledText{
			ID:          int64(i + 1),
			Designation: fmt.Sprintf("<b>%s %s</b> lot de %d", words[i%5], words[(i+1)%5], i%7),
			Description: fmt.Sprintf("Le %s pour les enfants &amp; adultes", words[(i+2)%5]),
			CategoryID:  cat,
		})
	}
	return rows
}

var corpusCategories = []domain.Category{
	{ID: 10, Name: "Sport"},
	{ID: 40, Name: "Tennis"},
	{ID: 2705, Name: "Jouets"},
	{ID: 1560, Name: "Mobilier"},
}

type inferenceObserverFake struct {
	mu            sync.Mutex
	loads         int
	invalidations int
}

func (f *inferenceObserverFake) ObserveModelLoad() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
}

func (f *inferenceObserverFake) ObserveModelInvalidated() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
}
