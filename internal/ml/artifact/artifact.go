// Package artifact serializes a fitted text-classification pipeline into a single versioned file.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kirillkom/product-classifier/internal/ml/bow"
	"github.com/kirillkom/product-classifier/internal/ml/maxent"
	"github.com/kirillkom/product-classifier/internal/ml/textnorm"
)

const (
	FormatVersion byte = 1
	Extension          = ".pclf"
)

var magic = []byte("PCLF")

// Artifact is everything inference needs besides the key-to-category map.
type Artifact struct {
	ModelID     string          `json:"modelId"`
	CreatedAt   time.Time       `json:"createdAt"`
	Normalizer  textnorm.Config `json:"normalizer"`
	Vocabulary  []string        `json:"vocabulary"`
	L2Normalize bool            `json:"l2Normalize"`
	Classifier  maxent.Model    `json:"classifier"`
}

// FileName is deterministic per model: timestamp plus the id prefix avoids collisions.
func FileName(startedAt time.Time, modelID string) string {
	prefix := modelID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("maxentModel-%s-%s%s", startedAt.UTC().Format("20060102150405"), prefix, Extension)
}

func Encode(w io.Writer, a *Artifact) error {
	if err := a.Classifier.Validate(); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if len(a.Vocabulary) != a.Classifier.Features {
		return fmt.Errorf("encode artifact: vocabulary size %d does not match %d features", len(a.Vocabulary), a.Classifier.Features)
	}
	if _, err := w.Write(append(append([]byte(nil), magic...), FormatVersion)); err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode artifact body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush artifact body: %w", err)
	}
	return nil
}

func Decode(r io.Reader) (*Artifact, error) {
	br := bufio.NewReader(r)
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read artifact header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, fmt.Errorf("not a model artifact")
	}
	if header[len(magic)] != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", header[len(magic)])
	}
	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	var a Artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact body: %w", err)
	}
	if err := a.Classifier.Validate(); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(a.Vocabulary) != a.Classifier.Features {
		return nil, fmt.Errorf("decode artifact: vocabulary size %d does not match %d features", len(a.Vocabulary), a.Classifier.Features)
	}
	return &a, nil
}

// Pipeline is a loaded artifact ready to score raw text.
type Pipeline struct {
	normalizer *textnorm.Normalizer
	featurizer *bow.Featurizer
	classifier *maxent.Model
}

func (a *Artifact) Pipeline() *Pipeline {
	return &Pipeline{
		normalizer: textnorm.New(a.Normalizer),
		featurizer: bow.FromVocabulary(a.Vocabulary, a.L2Normalize),
		classifier: &a.Classifier,
	}
}

func (p *Pipeline) Classes() int {
	return p.classifier.Classes
}

// Predict returns dense-class probabilities for one product.
func (p *Pipeline) Predict(designation, description string) []float64 {
	tokens := p.normalizer.AssembleTokens(designation, description)
	return p.classifier.Predict(p.featurizer.Transform(tokens.Reduced))
}
