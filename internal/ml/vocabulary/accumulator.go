// Package vocabulary accumulates token frequencies across corpus batches.
package vocabulary

import (
	"sort"
	"unicode/utf8"

	"github.com/kirillkom/product-classifier/internal/core/domain"
	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
)

// Accumulator holds the pre- and post-stop-word frequency tables. Not safe for concurrent use;
// build one per goroutine and Merge.
type Accumulator struct {
	before map[string]int
	after  map[string]int
	rows   int64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		before: make(map[string]int, 1024),
		after:  make(map[string]int, 1024),
	}
}

func (a *Accumulator) Add(res textnorm.Result) {
	a.rows++
	for _, w := range res.Words {
		if textnorm.Countable(w) {
			a.before[w]++
		}
	}
	for _, w := range res.Reduced {
		if textnorm.Countable(w) {
			a.after[w]++
		}
	}
}

func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	a.rows += other.rows
	for w, c := range other.before {
		a.before[w] += c
	}
	for w, c := range other.after {
		a.after[w] += c
	}
}

func (a *Accumulator) Rows() int64 {
	return a.rows
}

func (a *Accumulator) Before() map[string]int {
	return a.before
}

func (a *Accumulator) After() map[string]int {
	return a.after
}

// Report ranks post-processing words: topN by count desc, topM by rune length desc.
// Ties are broken lexicographically ascending in both lists.
func (a *Accumulator) Report(variable string, topN, topM int) *domain.TextVariableStats {
	words := make([]string, 0, len(a.after))
	var totalAfter int64
	for w, c := range a.after {
		words = append(words, w)
		totalAfter += int64(c)
	}
	var totalBefore int64
	for _, c := range a.before {
		totalBefore += int64(c)
	}

	byCount := append([]string(nil), words...)
	sort.Slice(byCount, func(i, j int) bool {
		ci, cj := a.after[byCount[i]], a.after[byCount[j]]
		if ci != cj {
			return ci > cj
		}
		return byCount[i] < byCount[j]
	})
	if len(byCount) > topN {
		byCount = byCount[:topN]
	}
	top := make([]domain.WordCount, 0, len(byCount))
	for _, w := range byCount {
		top = append(top, domain.WordCount{Word: w, Count: a.after[w]})
	}

	byLength := words
	sort.Slice(byLength, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(byLength[i]), utf8.RuneCountInString(byLength[j])
		if li != lj {
			return li > lj
		}
		return byLength[i] < byLength[j]
	})
	if len(byLength) > topM {
		byLength = byLength[:topM]
	}
	longest := make([]domain.WordCharacterCount, 0, len(byLength))
	for _, w := range byLength {
		longest = append(longest, domain.WordCharacterCount{Word: w, NbChars: utf8.RuneCountInString(w)})
	}

	return &domain.TextVariableStats{
		VariableName:            variable,
		NbWordsBeforeProcessing: totalBefore,
		NbWords:                 totalAfter,
		WordsCount:              top,
		LongestWords:            longest,
	}
}
