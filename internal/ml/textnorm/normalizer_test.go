package textnorm

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeProductTitleScenario(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize("<p>Le Ballon Rouge, dm 12cm</p>")

	wantWords := []string{"le", "ballon", "rouge", "dm", "12cm"}
	if !reflect.DeepEqual(res.Words, wantWords) {
		t.Fatalf("unexpected words: got %v want %v", res.Words, wantWords)
	}
	wantReduced := []string{"ballon", "rouge", "12cm"}
	if !reflect.DeepEqual(res.Reduced, wantReduced) {
		t.Fatalf("unexpected reduced tokens: got %v want %v", res.Reduced, wantReduced)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := New(DefaultConfig())
	inputs := []string{
		"<div>Chaussures de Randonnée &amp; Trekking <b>taille 42</b></div>",
		"Lot de 3 peluches pour enfant, n° 12",
		"The quick brown fox jumps over the lazy dog",
	}
	for _, in := range inputs {
		first := n.Normalize(in)
		second := n.Normalize(strings.Join(first.Reduced, " "))
		if !reflect.DeepEqual(first.Reduced, second.Reduced) {
			t.Fatalf("normalization not idempotent for %q: %v then %v", in, first.Reduced, second.Reduced)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := New(DefaultConfig())
	for _, in := range []string{"", "   ", "<p></p>"} {
		res := n.Normalize(in)
		if len(res.Words) != 0 || len(res.Reduced) != 0 {
			t.Fatalf("expected empty result for %q, got %+v", in, res)
		}
		if res.Words == nil || res.Reduced == nil {
			t.Fatalf("expected non-nil empty slices for %q", in)
		}
	}
}

func TestNormalizeDecodesEntitiesAndKeepsAccents(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize("Poupée &eacute;l&eacute;gante &amp; Café")
	want := []string{"poupée", "élégante", "café"}
	if !reflect.DeepEqual(res.Reduced, want) {
		t.Fatalf("unexpected tokens: got %v want %v", res.Reduced, want)
	}
}

func TestNormalizeDecodesEscapedEntitiesOnce(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize("prix &amp;lt;10&amp;gt; euros")
	want := []string{"prix", "lt", "10", "gt", "euros"}
	if !reflect.DeepEqual(res.Words, want) {
		t.Fatalf("unexpected words: got %v want %v", res.Words, want)
	}
}

func TestNormalizeComposesDecomposedAccents(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize("Cafe\u0301")
	if len(res.Reduced) != 1 || res.Reduced[0] != "café" {
		t.Fatalf("expected composed token, got %q", res.Reduced)
	}
}

func TestNormalizeDropsScriptContent(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize(`<script>alert("x")</script><span>Piscine gonflable</span>`)
	want := []string{"piscine", "gonflable"}
	if !reflect.DeepEqual(res.Reduced, want) {
		t.Fatalf("unexpected tokens: got %v want %v", res.Reduced, want)
	}
}

func TestNormalizePlainTextPassesThrough(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize("console jeux video 3 < 5")
	want := []string{"console", "jeux", "video", "3", "5"}
	if !reflect.DeepEqual(res.Words, want) {
		t.Fatalf("unexpected words: got %v want %v", res.Words, want)
	}
}

func TestNormalizeRemovesEnglishAfterFrench(t *testing.T) {
	n := New(DefaultConfig())
	res := n.Normalize("the table et les chaises with cushions")
	want := []string{"table", "chaises", "cushions"}
	if !reflect.DeepEqual(res.Reduced, want) {
		t.Fatalf("unexpected tokens: got %v want %v", res.Reduced, want)
	}
}

func TestNormalizeCustomStopWordsOverride(t *testing.T) {
	n := New(Config{Custom: []string{"ballon"}})
	res := n.Normalize("ballon rouge dm")
	want := []string{"rouge", "dm"}
	if !reflect.DeepEqual(res.Reduced, want) {
		t.Fatalf("unexpected tokens: got %v want %v", res.Reduced, want)
	}
}

func TestAssembleTokensOrdersDesignationFirst(t *testing.T) {
	n := New(DefaultConfig())
	res := n.AssembleTokens("Ballon rouge", "<p>Pour la plage</p>")
	want := []string{"ballon", "rouge", "plage"}
	if !reflect.DeepEqual(res.Reduced, want) {
		t.Fatalf("unexpected tokens: got %v want %v", res.Reduced, want)
	}
}

func TestCountable(t *testing.T) {
	cases := map[string]bool{"a": false, "é": false, "ab": true, "12": true, "": false}
	for token, want := range cases {
		if got := Countable(token); got != want {
			t.Fatalf("Countable(%q)=%v want %v", token, got, want)
		}
	}
}

func TestLoadConfigFromFileAndCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stopwords.yaml")
	content := "french_extra: [produit]\nenglish_extra: [item]\ncustom: [kg]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	res := New(cfg).Normalize("produit item kg dm lampe")
	want := []string{"dm", "lampe"}
	if !reflect.DeepEqual(res.Reduced, want) {
		t.Fatalf("unexpected tokens: got %v want %v", res.Reduced, want)
	}

	cfg, err = LoadConfig(path, " lampe , dm ")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Custom, []string{"lampe", "dm"}) {
		t.Fatalf("expected CSV to replace custom list, got %v", cfg.Custom)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
