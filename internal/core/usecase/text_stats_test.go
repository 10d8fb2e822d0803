package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/infrastructure/repository/memory"
	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
)

type failingSource struct {
	memory.ProductSource
	err error
}

func (f *failingSource) FetchTextBatch(context.Context, domain.TextField, int64, int) ([]domain.TextRow, error) {
	return nil, f.err
}

func TestTextStatsBatchedEqualsSingleScan(t *testing.T) {
	rows := syntheticCorpus(2500)
	normalizer := textnorm.New(textnorm.DefaultConfig())

	batchedSource := memory.NewProductSource(rows, nil)
	batched, err := NewTextStatsUseCase(batchedSource, normalizer, 1000, nil).Compute(context.Background(), "designation", 50, 10)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if batched.Batches != 3 || batchedSource.Calls() != 3 {
		t.Fatalf("expected 3 batches and 3 fetches, got %d batches and %d fetches", batched.Batches, batchedSource.Calls())
	}

	singleSource := memory.NewProductSource(rows, nil)
	single, err := NewTextStatsUseCase(singleSource, normalizer, 5000, nil).Compute(context.Background(), "designation", 50, 10)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if single.Batches != 1 {
		t.Fatalf("expected single batch, got %d", single.Batches)
	}

	if batched.NbWords != single.NbWords || batched.NbWordsBeforeProcessing != single.NbWordsBeforeProcessing {
		t.Fatalf("totals differ: batched=%d/%d single=%d/%d",
			batched.NbWordsBeforeProcessing, batched.NbWords, single.NbWordsBeforeProcessing, single.NbWords)
	}
	if !reflect.DeepEqual(batched.WordsCount, single.WordsCount) || !reflect.DeepEqual(batched.LongestWords, single.LongestWords) {
		t.Fatalf("reports differ between batched and single scan")
	}
	if batched.NbWords >= batched.NbWordsBeforeProcessing {
		t.Fatalf("expected stop-word removal to shrink the vocabulary: %d >= %d", batched.NbWords, batched.NbWordsBeforeProcessing)
	}
}

func TestTextStatsRejectsUnknownFieldBeforeScan(t *testing.T) {
	src := memory.NewProductSource(syntheticCorpus(10), nil)
	uc := NewTextStatsUseCase(src, textnorm.New(textnorm.DefaultConfig()), 100, nil)

	_, err := uc.Compute(context.Background(), "price", 10, 5)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if src.Calls() != 0 {
		t.Fatalf("expected no scan, got %d fetches", src.Calls())
	}
}

func TestTextStatsDefaultsAndDescriptionField(t *testing.T) {
	src := memory.NewProductSource(syntheticCorpus(30), nil)
	uc := NewTextStatsUseCase(src, textnorm.New(textnorm.DefaultConfig()), 0, nil)

	report, err := uc.Compute(context.Background(), "description", 0, -1)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if report.VariableName != "description" {
		t.Fatalf("unexpected variable name %q", report.VariableName)
	}
	if len(report.LongestWords) != defaultLongestWords {
		t.Fatalf("expected %d longest words, got %d", defaultLongestWords, len(report.LongestWords))
	}
	for _, w := range report.WordsCount {
		if w.Word == "le" || w.Word == "les" || w.Word == "pour" {
			t.Fatalf("stop word %q leaked into report", w.Word)
		}
	}
}

func TestTextStatsPropagatesSourceError(t *testing.T) {
	boom := errors.New("db down")
	uc := NewTextStatsUseCase(&failingSource{err: boom}, textnorm.New(textnorm.DefaultConfig()), 10, nil)
	if _, err := uc.Compute(context.Background(), "designation", 10, 5); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestClampReportSize(t *testing.T) {
	cases := []struct{ in, want int }{{0, 30}, {-5, 30}, {1, 1}, {1000, 1000}, {5000, 1000}}
	for _, tc := range cases {
		if got := clampReportSize(tc.in, 30); got != tc.want {
			t.Fatalf("clampReportSize(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}
