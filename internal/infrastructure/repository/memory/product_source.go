package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

// ProductSource serves a fixed catalog snapshot with the same keyset semantics as the SQL source.
type ProductSource struct {
	mu         sync.RWMutex
	rows       []domain.LabeledText
	categories []domain.Category
	calls      int
}

func NewProductSource(rows []domain.LabeledText, categories []domain.Category) *ProductSource {
	sorted := append([]domain.LabeledText(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &ProductSource{rows: sorted, categories: append([]domain.Category(nil), categories...)}
}

func (s *ProductSource) FetchTextBatch(ctx context.Context, field domain.TextField, afterID int64, limit int) ([]domain.TextRow, error) {
	labeled, err := s.FetchLabeledBatch(ctx, afterID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TextRow, 0, len(labeled))
	for _, row := range labeled {
		text := row.Designation
		if field == domain.FieldDescription {
			text = row.Description
		}
		out = append(out, domain.TextRow{ID: row.ID, Text: text})
	}
	return out, nil
}

func (s *ProductSource) FetchLabeledBatch(ctx context.Context, afterID int64, limit int) ([]domain.LabeledText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	start := sort.Search(len(s.rows), func(i int) bool { return s.rows[i].ID > afterID })
	end := start + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return append([]domain.LabeledText(nil), s.rows[start:end]...), nil
}

func (s *ProductSource) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...), nil
}

// Calls counts batch fetches.
func (s *ProductSource) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}
