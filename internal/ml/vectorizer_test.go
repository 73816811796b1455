package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizerFit(t *testing.T) {
	v := NewVectorizer(10)
	v.Fit([]string{
		"invoice payment due",
		"invoice overdue reminder",
		"meeting schedule invite",
	})

	require.NotEmpty(t, v.Vocab)
	assert.Contains(t, v.Vocab, "invoice")
	assert.NotContains(t, v.Vocab, "invoice payment") // no bigrams by default

	// Stop words and single letters never enter the vocabulary.
	v2 := NewVectorizer(10)
	v2.Fit([]string{"the a an and of to x y"})
	assert.Empty(t, v2.Vocab)
}

func TestVectorizerVocabularyCap(t *testing.T) {
	v := NewVectorizer(2)
	v.Fit([]string{
		"alpha alpha alpha beta beta gamma",
	})

	assert.Len(t, v.Vocab, 2)
	assert.Contains(t, v.Vocab, "alpha")
	assert.Contains(t, v.Vocab, "beta")
}

func TestVectorizerTransformL2Norm(t *testing.T) {
	v := NewVectorizer(100)
	x := v.FitTransform([]string{
		"payment invoice due today",
		"lunch meeting tomorrow",
	})

	rows, cols := x.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, len(v.Vocab), cols)

	for i := 0; i < rows; i++ {
		var norm float64
		for j := 0; j < cols; j++ {
			norm += x.At(i, j) * x.At(i, j)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9, "row %d not unit length", i)
	}
}

func TestVectorizerUnknownTerms(t *testing.T) {
	v := NewVectorizer(100)
	v.Fit([]string{"known words only"})

	x := v.Transform([]string{"completely novel vocabulary"})
	_, cols := x.Dims()
	for j := 0; j < cols; j++ {
		assert.Zero(t, x.At(0, j))
	}
}

func TestVectorizerBigrams(t *testing.T) {
	v := NewVectorizer(100, WithNgramRange(1, 2))
	v.Fit([]string{"password reset request", "password reset email"})

	assert.Contains(t, v.Vocab, "password")
	assert.Contains(t, v.Vocab, "password reset")
}

func TestVectorizerSublinearTF(t *testing.T) {
	raw := NewVectorizer(100)
	sub := NewVectorizer(100, WithSublinearTF())

	corpus := []string{"spam spam spam spam ham", "ham eggs"}
	xRaw := raw.FitTransform(corpus)
	xSub := sub.FitTransform(corpus)

	iSpamRaw := raw.Index["spam"]
	iHamRaw := raw.Index["ham"]
	iSpamSub := sub.Index["spam"]
	iHamSub := sub.Index["ham"]

	// Sublinear scaling compresses the gap between repeated and single terms.
	ratioRaw := xRaw.At(0, iSpamRaw) / xRaw.At(0, iHamRaw)
	ratioSub := xSub.At(0, iSpamSub) / xSub.At(0, iHamSub)
	assert.Greater(t, ratioRaw, ratioSub)
}
