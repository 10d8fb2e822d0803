package vocabulary

import (
	"reflect"
	"testing"

	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
)

func TestAccumulatorSkipsSingleCharacterTokens(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(textnorm.Result{Words: []string{"a", "lot", "é", "lot"}, Reduced: []string{"lot", "é", "lot"}})

	if got := acc.Before(); !reflect.DeepEqual(got, map[string]int{"lot": 2}) {
		t.Fatalf("unexpected before table: %v", got)
	}
	if got := acc.After(); !reflect.DeepEqual(got, map[string]int{"lot": 2}) {
		t.Fatalf("unexpected after table: %v", got)
	}
}

func TestReportTieBreaksLexicographically(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(textnorm.Result{
		Words:   []string{"le", "zebre", "abeille", "chat", "chien", "zebre", "abeille"},
		Reduced: []string{"zebre", "abeille", "chat", "chien", "zebre", "abeille"},
	})

	report := acc.Report("designation", 3, 2)
	if report.NbWordsBeforeProcessing != 7 || report.NbWords != 6 {
		t.Fatalf("unexpected totals: before=%d after=%d", report.NbWordsBeforeProcessing, report.NbWords)
	}
	gotTop := []string{report.WordsCount[0].Word, report.WordsCount[1].Word, report.WordsCount[2].Word}
	if !reflect.DeepEqual(gotTop, []string{"abeille", "zebre", "chat"}) {
		t.Fatalf("unexpected top words: %v", report.WordsCount)
	}
	if report.WordsCount[0].Count != 2 || report.WordsCount[2].Count != 1 {
		t.Fatalf("unexpected counts: %v", report.WordsCount)
	}
	if len(report.LongestWords) != 2 {
		t.Fatalf("expected 2 longest words, got %d", len(report.LongestWords))
	}
	if report.LongestWords[0].Word != "abeille" || report.LongestWords[0].NbChars != 7 {
		t.Fatalf("unexpected longest word: %+v", report.LongestWords[0])
	}
	if report.LongestWords[1].Word != "chien" || report.LongestWords[1].NbChars != 5 {
		t.Fatalf("unexpected second longest word: %+v", report.LongestWords[1])
	}
}

func TestReportCountsRunesNotBytes(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(textnorm.Result{Reduced: []string{"éééé", "abcde"}})

	report := acc.Report("description", 10, 1)
	if report.LongestWords[0].Word != "abcde" || report.LongestWords[0].NbChars != 5 {
		t.Fatalf("expected rune-based length ranking, got %+v", report.LongestWords)
	}
}

func TestMergeEqualsSingleScan(t *testing.T) {
	n := textnorm.New(textnorm.DefaultConfig())
	rows := []string{"Ballon rouge 12cm", "<b>Ballon</b> bleu", "Poupée de chiffon", "ballon de plage"}

	single := NewAccumulator()
	for _, r := range rows {
		single.Add(n.Normalize(r))
	}

	merged := NewAccumulator()
	for _, batch := range [][]string{rows[:3], rows[3:]} {
		part := NewAccumulator()
		for _, r := range batch {
			part.Add(n.Normalize(r))
		}
		merged.Merge(part)
	}

	if !reflect.DeepEqual(single.Before(), merged.Before()) || !reflect.DeepEqual(single.After(), merged.After()) {
		t.Fatalf("merged tables differ from single scan")
	}
	if merged.Rows() != 4 {
		t.Fatalf("expected 4 rows, got %d", merged.Rows())
	}
}
