package ml

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// Pipeline couples a fitted TF-IDF vectorizer with a trained forest so the
// two always travel (and persist) together.
type Pipeline struct {
	Vectorizer *Vectorizer
	Forest     *Forest
}

// NewPipeline builds an untrained TF-IDF + random forest pipeline.
func NewPipeline(maxVocab, numTrees int, seed int64) *Pipeline {
	return &Pipeline{
		Vectorizer: NewVectorizer(maxVocab, WithNgramRange(1, 2), WithSublinearTF()),
		Forest:     NewForest(numTrees, seed),
	}
}

// Fit learns the vocabulary and trains the forest.
func (p *Pipeline) Fit(texts, labels []string) {
	x := p.Vectorizer.FitTransform(texts)
	p.Forest.Fit(x, labels)
}

// PredictProba vectorizes texts and returns class probability vectors.
func (p *Pipeline) PredictProba(texts []string) ([][]float64, error) {
	if len(p.Forest.Trees) == 0 {
		return nil, fmt.Errorf("pipeline has not been trained")
	}
	x := p.Vectorizer.Transform(texts)
	return p.Forest.PredictProba(x), nil
}

// Classes returns the category names in probability-vector order.
func (p *Pipeline) Classes() []string {
	return p.Forest.Classes()
}

// Encode writes the pipeline in gob form.
func (p *Pipeline) Encode(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(p); err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}
	return nil
}

// DecodePipeline reads a gob-encoded pipeline.
func DecodePipeline(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	return &p, nil
}

// LoadPipeline reads a pipeline artifact from disk.
func LoadPipeline(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodePipeline(f)
}
