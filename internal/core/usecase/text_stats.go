package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/core/ports"
	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
	"github.com/kirillkom/product-classifier/internal/ml/vocabulary"
)

const (
	defaultTopWords     = 30
	defaultLongestWords = 5
	maxReportSize       = 1000
	defaultBatchSize    = 1000
)

type TextStatsUseCase struct {
	source     ports.ProductTextSource
	normalizer *textnorm.Normalizer
	batchSize  int
	logger     *slog.Logger
}

func NewTextStatsUseCase(
	source ports.ProductTextSource,
	normalizer *textnorm.Normalizer,
	batchSize int,
	logger *slog.Logger,
) *TextStatsUseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStatsUseCase{
		source:     source,
		normalizer: normalizer,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Compute scans the whole field in keyset batches and ranks the reduced vocabulary.
func (uc *TextStatsUseCase) Compute(ctx context.Context, field string, topN, topM int) (*domain.TextVariableStats, error) {
	textField, err := domain.ParseTextField(field)
	if err != nil {
		return nil, err
	}
	topN = clampReportSize(topN, defaultTopWords)
	topM = clampReportSize(topM, defaultLongestWords)

	acc := vocabulary.NewAccumulator()
	var afterID int64
	batches := 0
	for {
		rows, err := uc.source.FetchTextBatch(ctx, textField, afterID, uc.batchSize)
		if err != nil {
			return nil, fmt.Errorf("fetch %s batch after id %d: %w", textField, afterID, err)
		}
		if len(rows) == 0 {
			break
		}
		batches++
		for _, row := range rows {
			if row.ID <= afterID {
				return nil, errors.New("text source returned rows out of id order")
			}
			acc.Add(uc.normalizer.Normalize(row.Text))
			afterID = row.ID
		}
		if len(rows) < uc.batchSize {
			break
		}
	}

	report := acc.Report(string(textField), topN, topM)
	report.Batches = batches
	uc.logger.Info("text_stats_computed",
		"field", textField,
		"rows", acc.Rows(),
		"batches", batches,
		"words_before", report.NbWordsBeforeProcessing,
		"words_after", report.NbWords,
	)
	return report, nil
}

func clampReportSize(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > maxReportSize {
		return maxReportSize
	}
	return v
}
