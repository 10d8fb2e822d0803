package evaluation

import (
	"math"
	"testing"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/ml/labelcodec"
)

func onehot(k, n int) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = 0.1 / float64(n-1)
	}
	p[k] = 0.9
	return p
}

func TestStatsKeyedByCategoryIDs(t *testing.T) {
	codec, _ := labelcodec.Build([]int{10, 2705, 40})
	e := New(codec)
	// keys: 0->10, 1->40, 2->2705
	observations := []struct {
		category  int
		predicted int
	}{
		{10, 0}, {10, 0}, {10, 1},
		{40, 1},
		{2705, 2}, {2705, 0},
	}
	for _, o := range observations {
		if err := e.Observe(o.category, onehot(o.predicted, 3)); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}
	if err := e.Observe(9999, onehot(0, 3)); err != nil {
		t.Fatalf("unknown category should be skipped, got %v", err)
	}
	if e.Skipped() != 1 || e.Total() != 6 {
		t.Fatalf("unexpected skipped=%d total=%d", e.Skipped(), e.Total())
	}

	stats, err := e.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if math.Abs(stats.MicroAccuracy-4.0/6.0) > 1e-9 {
		t.Fatalf("unexpected micro accuracy %f", stats.MicroAccuracy)
	}
	wantMacro := (2.0/3.0 + 1.0 + 0.5) / 3.0
	if math.Abs(stats.MacroAccuracy-wantMacro) > 1e-9 {
		t.Fatalf("unexpected macro accuracy %f want %f", stats.MacroAccuracy, wantMacro)
	}
	m := stats.ConfusionMatrix
	if m.NumberOfClasses != 3 || len(m.Counts) != 9 {
		t.Fatalf("unexpected matrix shape: %d classes, %d counts", m.NumberOfClasses, len(m.Counts))
	}
	cell := func(actual, predicted int) float64 {
		for _, c := range m.Counts {
			if c.RealClass == actual && c.PredictedClass == predicted {
				return c.Count
			}
		}
		t.Fatalf("missing cell %d/%d", actual, predicted)
		return 0
	}
	if cell(10, 10) != 2 || cell(10, 40) != 1 || cell(2705, 10) != 1 || cell(2705, 2705) != 1 {
		t.Fatalf("unexpected confusion counts: %+v", m.Counts)
	}

	precision := map[int]float64{}
	for _, s := range m.PerClassPrecision {
		precision[s.Class] = s.Score
	}
	if math.Abs(precision[10]-2.0/3.0) > 1e-9 || math.Abs(precision[40]-0.5) > 1e-9 || precision[2705] != 1 {
		t.Fatalf("unexpected precision: %v", precision)
	}
	if stats.LogLoss <= 0 {
		t.Fatalf("expected positive log loss, got %f", stats.LogLoss)
	}
}

func TestMacroAccuracyIgnoresAbsentClasses(t *testing.T) {
	codec, _ := labelcodec.Build([]int{1, 2, 3})
	e := New(codec)
	_ = e.Observe(1, onehot(0, 3))
	_ = e.Observe(2, onehot(0, 3))

	stats, err := e.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if math.Abs(stats.MacroAccuracy-0.5) > 1e-9 {
		t.Fatalf("expected macro over present classes only, got %f", stats.MacroAccuracy)
	}
}

func TestStatsWithoutRows(t *testing.T) {
	codec, _ := labelcodec.Build([]int{1, 2})
	if _, err := New(codec).Stats(); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestObserveRejectsWrongWidth(t *testing.T) {
	codec, _ := labelcodec.Build([]int{1, 2})
	if err := New(codec).Observe(1, []float64{1}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
}
