// Package bow builds term-frequency bag-of-words vectors over a fixed vocabulary.
package bow

import (
	"math"
	"sort"
)

// Vector is a sparse feature vector with ascending indices.
type Vector struct {
	Indices []int
	Values  []float64
}

type Featurizer struct {
	vocabulary  []string
	index       map[string]int
	l2Normalize bool
}

// Fit collects every distinct token and sorts the vocabulary lexicographically.
func Fit(docs [][]string, l2Normalize bool) *Featurizer {
	seen := make(map[string]struct{}, 1024)
	for _, doc := range docs {
		for _, tok := range doc {
			seen[tok] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(seen))
	for tok := range seen {
		vocab = append(vocab, tok)
	}
	sort.Strings(vocab)
	return FromVocabulary(vocab, l2Normalize)
}

func FromVocabulary(vocabulary []string, l2Normalize bool) *Featurizer {
	index := make(map[string]int, len(vocabulary))
	for i, tok := range vocabulary {
		index[tok] = i
	}
	return &Featurizer{vocabulary: vocabulary, index: index, l2Normalize: l2Normalize}
}

func (f *Featurizer) Vocabulary() []string {
	return f.vocabulary
}

func (f *Featurizer) Size() int {
	return len(f.vocabulary)
}

func (f *Featurizer) L2Normalize() bool {
	return f.l2Normalize
}

// Transform counts in-vocabulary tokens. Unknown tokens are ignored.
func (f *Featurizer) Transform(tokens []string) Vector {
	tf := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		if idx, ok := f.index[tok]; ok {
			tf[idx]++
		}
	}
	if len(tf) == 0 {
		return Vector{}
	}
	indices := make([]int, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for i, idx := range indices {
		values[i] = tf[idx]
		norm += values[i] * values[i]
	}
	if f.l2Normalize && norm > 0 {
		norm = math.Sqrt(norm)
		for i := range values {
			values[i] /= norm
		}
	}
	return Vector{Indices: indices, Values: values}
}
