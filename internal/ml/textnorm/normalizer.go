// Package textnorm turns raw product text into normalized word tokens.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Config holds the stop-word customizations applied on top of the built-in lists.
// It is stored inside model artifacts so inference reproduces training exactly.
type Config struct {
	FrenchExtra  []string `json:"frenchExtra,omitempty" yaml:"french_extra"`
	EnglishExtra []string `json:"englishExtra,omitempty" yaml:"english_extra"`
	Custom       []string `json:"custom" yaml:"custom"`
}

func DefaultConfig() Config {
	return Config{Custom: append([]string(nil), DefaultCustomStopWords...)}
}

// Result holds both token sequences produced for one input.
type Result struct {
	// Words are the tokens before any stop-word removal.
	Words []string
	// Reduced are the tokens left after French, English and custom removal.
	Reduced []string
}

type Normalizer struct {
	cfg     Config
	french  stopSet
	english stopSet
	custom  stopSet
}

func New(cfg Config) *Normalizer {
	if cfg.Custom == nil {
		cfg.Custom = append([]string(nil), DefaultCustomStopWords...)
	}
	return &Normalizer{
		cfg:     cfg,
		french:  newStopSet(frenchStopWords, cfg.FrenchExtra),
		english: newStopSet(englishStopWords, cfg.EnglishExtra),
		custom:  newStopSet(nil, cfg.Custom),
	}
}

func (n *Normalizer) Config() Config {
	return Config{
		FrenchExtra:  append([]string(nil), n.cfg.FrenchExtra...),
		EnglishExtra: append([]string(nil), n.cfg.EnglishExtra...),
		Custom:       append([]string(nil), n.cfg.Custom...),
	}
}

// Normalize runs HTML stripping, NFC and lower-casing, tokenization and the three stop-word passes in order.
func (n *Normalizer) Normalize(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Words: []string{}, Reduced: []string{}}
	}
	text := stripHTML(raw)
	text = normalizeWord(text)
	words := tokenize(text)

	reduced := n.french.filter(words)
	reduced = n.english.filter(reduced)
	reduced = n.custom.filter(reduced)
	return Result{Words: words, Reduced: reduced}
}

// AssembleTokens is the single text assembly used by both training and inference:
// designation tokens followed by description tokens.
func (n *Normalizer) AssembleTokens(designation, description string) Result {
	d := n.Normalize(designation)
	if description == "" {
		return d
	}
	desc := n.Normalize(description)
	return Result{
		Words:   append(d.Words, desc.Words...),
		Reduced: append(d.Reduced, desc.Reduced...),
	}
}

// Countable reports whether a token takes part in frequency statistics.
func Countable(token string) bool {
	return utf8.RuneCountInString(token) > 1
}

func normalizeWord(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '°'
}

func tokenize(text string) []string {
	tokens := make([]string, 0, 8)
	start := -1
	for i, r := range text {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}
