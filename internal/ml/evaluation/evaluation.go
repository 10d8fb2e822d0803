// Package evaluation scores a classifier on a held-out split and reports metrics keyed by category id.
package evaluation

import (
	"fmt"
	"math"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/ml/labelcodec"
	"github.com/kirillkom/product-classifier/internal/ml/maxent"
)

// Evaluator accumulates a dense K x K confusion matrix (actual x predicted).
type Evaluator struct {
	codec   *labelcodec.Codec
	counts  [][]float64
	total   int
	correct int
	logLoss float64
	skipped int
}

func New(codec *labelcodec.Codec) *Evaluator {
	k := codec.Len()
	counts := make([][]float64, k)
	for i := range counts {
		counts[i] = make([]float64, k)
	}
	return &Evaluator{codec: codec, counts: counts}
}

// Observe records one test row. Rows whose category is unknown to the codec are skipped.
func (e *Evaluator) Observe(categoryID int, probs []float64) error {
	actual, ok := e.codec.Encode(categoryID)
	if !ok {
		e.skipped++
		return nil
	}
	if len(probs) != e.codec.Len() {
		return fmt.Errorf("probability vector has %d classes, codec has %d", len(probs), e.codec.Len())
	}
	predicted := maxent.ArgMax(probs)
	e.counts[actual][predicted]++
	e.total++
	if actual == predicted {
		e.correct++
	}
	e.logLoss -= math.Log(math.Max(probs[actual], 1e-15))
	return nil
}

func (e *Evaluator) Skipped() int {
	return e.skipped
}

func (e *Evaluator) Total() int {
	return e.total
}

// Stats translates every dense index back to category ids.
func (e *Evaluator) Stats() (*domain.ModelStats, error) {
	if e.total == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate model", fmt.Errorf("no evaluable test rows"))
	}
	k := e.codec.Len()
	matrix := &domain.ConfusionMatrix{
		NumberOfClasses:   k,
		Counts:            make([]domain.ConfusionCount, 0, k*k),
		PerClassPrecision: make([]domain.PerClassScore, 0, k),
		PerClassRecall:    make([]domain.PerClassScore, 0, k),
	}

	var recallSum float64
	present := 0
	for i := 0; i < k; i++ {
		realID, _ := e.codec.Decode(i)
		var rowSum, colSum float64
		for j := 0; j < k; j++ {
			predictedID, _ := e.codec.Decode(j)
			matrix.Counts = append(matrix.Counts, domain.ConfusionCount{
				RealClass:      realID,
				PredictedClass: predictedID,
				Count:          e.counts[i][j],
			})
			rowSum += e.counts[i][j]
			colSum += e.counts[j][i]
		}
		tp := e.counts[i][i]
		precision := ratio(tp, colSum)
		recall := ratio(tp, rowSum)
		matrix.PerClassPrecision = append(matrix.PerClassPrecision, domain.PerClassScore{Class: realID, Score: precision})
		matrix.PerClassRecall = append(matrix.PerClassRecall, domain.PerClassScore{Class: realID, Score: recall})
		if rowSum > 0 {
			recallSum += recall
			present++
		}
	}

	return &domain.ModelStats{
		MicroAccuracy:   float64(e.correct) / float64(e.total),
		MacroAccuracy:   recallSum / float64(present),
		LogLoss:         e.logLoss / float64(e.total),
		ConfusionMatrix: matrix,
	}, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
