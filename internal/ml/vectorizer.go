// Package ml implements the statistical building blocks of the evolution
// engine: a bounded-vocabulary TF-IDF vectorizer, a random forest classifier,
// density- and partition-based clustering, and evaluation metrics.
package ml

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/mat"
)

// englishStopWords is the stop list applied before vocabulary selection.
var englishStopWords = map[string]struct{}{}

func init() {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an",
		"and", "any", "are", "as", "at", "be", "because", "been", "before",
		"being", "below", "between", "both", "but", "by", "can", "could",
		"did", "do", "does", "doing", "down", "during", "each", "few", "for",
		"from", "further", "had", "has", "have", "having", "he", "her", "here",
		"hers", "herself", "him", "himself", "his", "how", "if", "in", "into",
		"is", "it", "its", "itself", "just", "me", "more", "most", "my",
		"myself", "no", "nor", "not", "now", "of", "off", "on", "once", "only",
		"or", "other", "our", "ours", "ourselves", "out", "over", "own",
		"same", "she", "should", "so", "some", "such", "than", "that", "the",
		"their", "theirs", "them", "themselves", "then", "there", "these",
		"they", "this", "those", "through", "to", "too", "under", "until",
		"up", "very", "was", "we", "were", "what", "when", "where", "which",
		"while", "who", "whom", "why", "will", "with", "would", "you", "your",
		"yours", "yourself", "yourselves",
	}
	for _, w := range words {
		englishStopWords[w] = struct{}{}
	}
}

// Vectorizer is a bounded-vocabulary TF-IDF text vectorizer. The zero value
// is not usable; construct with NewVectorizer and call Fit before Transform.
// All fields are exported so a fitted vectorizer survives gob encoding.
type Vectorizer struct {
	MaxFeatures int
	NgramMin    int
	NgramMax    int
	SublinearTF bool

	Vocab []string
	Index map[string]int
	IDF   []float64
}

// VectorizerOption mutates construction-time settings.
type VectorizerOption func(*Vectorizer)

// WithNgramRange sets the n-gram range, e.g. (1, 2) for unigrams+bigrams.
func WithNgramRange(min, max int) VectorizerOption {
	return func(v *Vectorizer) {
		v.NgramMin = min
		v.NgramMax = max
	}
}

// WithSublinearTF replaces raw term frequency with 1 + log(tf).
func WithSublinearTF() VectorizerOption {
	return func(v *Vectorizer) {
		v.SublinearTF = true
	}
}

// NewVectorizer creates a TF-IDF vectorizer capped at maxFeatures terms.
func NewVectorizer(maxFeatures int, opts ...VectorizerOption) *Vectorizer {
	v := &Vectorizer{
		MaxFeatures: maxFeatures,
		NgramMin:    1,
		NgramMax:    1,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// tokenize lowercases, splits on non-alphanumeric runs, drops single-letter
// tokens and stop words, then expands n-grams.
func (v *Vectorizer) tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		words = append(words, f)
	}
	if v.NgramMax <= 1 {
		return words
	}
	var tokens []string
	for n := v.NgramMin; n <= v.NgramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			tokens = append(tokens, strings.Join(words[i:i+n], " "))
		}
	}
	return tokens
}

// Fit learns the vocabulary and IDF weights from the corpus.
func (v *Vectorizer) Fit(texts []string) {
	df := make(map[string]int)
	totalTF := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			totalTF[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}

	terms := make([]string, 0, len(totalTF))
	for t := range totalTF {
		terms = append(terms, t)
	}
	// Keep the most frequent terms; alphabetical tie-break keeps the
	// vocabulary deterministic across runs.
	sort.Slice(terms, func(i, j int) bool {
		if totalTF[terms[i]] != totalTF[terms[j]] {
			return totalTF[terms[i]] > totalTF[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(texts))
	v.Vocab = terms
	v.Index = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, t := range terms {
		v.Index[t] = i
		// Smoothed IDF so unseen documents never divide by zero.
		v.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
}

// Transform converts texts into an L2-normalized TF-IDF matrix of shape
// (len(texts), len(Vocab)).
func (v *Vectorizer) Transform(texts []string) *mat.Dense {
	rows := len(texts)
	cols := len(v.Vocab)
	if cols == 0 {
		cols = 1
	}
	out := mat.NewDense(rows, cols, nil)
	for i, text := range texts {
		counts := make(map[int]float64)
		for _, tok := range v.tokenize(text) {
			if j, ok := v.Index[tok]; ok {
				counts[j]++
			}
		}
		var norm float64
		for j, tf := range counts {
			if v.SublinearTF {
				tf = 1 + math.Log(tf)
			}
			w := tf * v.IDF[j]
			out.Set(i, j, w)
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range counts {
				out.Set(i, j, out.At(i, j)/norm)
			}
		}
	}
	return out
}

// FitTransform fits the vocabulary and returns the transformed corpus.
func (v *Vectorizer) FitTransform(texts []string) *mat.Dense {
	v.Fit(texts)
	return v.Transform(texts)
}

// FeatureNames returns the learned vocabulary in column order.
func (v *Vectorizer) FeatureNames() []string {
	return v.Vocab
}
