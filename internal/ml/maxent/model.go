// Package maxent implements a multinomial logistic regression (maximum entropy) classifier
// trained with stochastic gradient descent over sparse features.
package maxent

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/kirillkom/product-classifier/internal/ml/bow"
)

type Options struct {
	Epochs       int
	LearningRate float64
	L2           float64
	Seed         uint64
}

func DefaultOptions() Options {
	return Options{Epochs: 15, LearningRate: 0.5, L2: 1e-6, Seed: 42}
}

type Sample struct {
	X     bow.Vector
	Label int
}

// Model stores class-major weights: Weights[k*Features+f].
type Model struct {
	Classes  int       `json:"classes"`
	Features int       `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     []float64 `json:"bias"`
}

func (m *Model) Validate() error {
	if m.Classes < 2 || m.Features < 0 {
		return fmt.Errorf("invalid model shape %dx%d", m.Classes, m.Features)
	}
	if len(m.Weights) != m.Classes*m.Features || len(m.Bias) != m.Classes {
		return fmt.Errorf("weights do not match shape %dx%d", m.Classes, m.Features)
	}
	return nil
}

// EpochFunc observes the mean training loss after each epoch.
type EpochFunc func(epoch int, loss float64)

// Train fits a softmax model. Labels must be dense keys in [0, classes).
func Train(ctx context.Context, samples []Sample, classes, features int, opts Options, onEpoch EpochFunc) (*Model, error) {
	if classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", classes)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no training samples")
	}
	for i, s := range samples {
		if s.Label < 0 || s.Label >= classes {
			return nil, fmt.Errorf("sample %d label %d out of range", i, s.Label)
		}
	}
	if opts.Epochs <= 0 {
		opts.Epochs = DefaultOptions().Epochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultOptions().LearningRate
	}

	m := &Model{
		Classes:  classes,
		Features: features,
		Weights:  make([]float64, classes*features),
		Bias:     make([]float64, classes),
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	probs := make([]float64, classes)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		lr := opts.LearningRate / (1 + float64(epoch)*0.5)
		var loss float64
		for _, idx := range order {
			s := samples[idx]
			m.probabilities(s.X, probs)
			loss -= math.Log(math.Max(probs[s.Label], 1e-15))
			for k := 0; k < classes; k++ {
				grad := probs[k]
				if k == s.Label {
					grad -= 1
				}
				m.Bias[k] -= lr * grad
				row := m.Weights[k*features : (k+1)*features]
				for i, f := range s.X.Indices {
					row[f] -= lr * (grad*s.X.Values[i] + opts.L2*row[f])
				}
			}
		}
		if onEpoch != nil {
			onEpoch(epoch+1, loss/float64(len(samples)))
		}
	}
	return m, nil
}

// Predict returns a probability distribution over the dense classes.
func (m *Model) Predict(x bow.Vector) []float64 {
	out := make([]float64, m.Classes)
	m.probabilities(x, out)
	return out
}

func (m *Model) probabilities(x bow.Vector, out []float64) {
	maxScore := math.Inf(-1)
	for k := 0; k < m.Classes; k++ {
		score := m.Bias[k]
		row := m.Weights[k*m.Features : (k+1)*m.Features]
		for i, f := range x.Indices {
			if f < m.Features {
				score += row[f] * x.Values[i]
			}
		}
		out[k] = score
		if score > maxScore {
			maxScore = score
		}
	}
	var sum float64
	for k := range out {
		out[k] = math.Exp(out[k] - maxScore)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}

// ArgMax returns the index of the highest probability, lowest index on ties.
func ArgMax(probs []float64) int {
	best := 0
	for k := 1; k < len(probs); k++ {
		if probs[k] > probs[best] {
			best = k
		}
	}
	return best
}
