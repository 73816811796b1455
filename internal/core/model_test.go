package core

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFeatureText(t *testing.T) {
	e := Email{From: "a@b.com", Subject: "hi", Body: "short body"}
	assert.Equal(t, "a@b.com hi short body", e.FeatureText())

	e.Body = strings.Repeat("x", 2000)
	text := e.FeatureText()
	assert.Len(t, text, len("a@b.com hi ")+500)

	// A rune straddling the cap is dropped whole, not split.
	e.Body = strings.Repeat("x", 499) + "é" + strings.Repeat("y", 100)
	text = e.FeatureText()
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, "a@b.com hi "+strings.Repeat("x", 499), text)
}

func TestNewLabelClampsConfidence(t *testing.T) {
	assert.Equal(t, 0.0, NewLabel(1, "x", -0.5, SourceModel).Confidence)
	assert.Equal(t, 1.0, NewLabel(1, "x", 1.5, SourceModel).Confidence)
	assert.Equal(t, 0.7, NewLabel(1, "x", 0.7, SourceModel).Confidence)
}

func TestPredictionUncertain(t *testing.T) {
	cases := []struct {
		name      string
		margin    float64
		maxProb   float64
		uncertain bool
	}{
		{"confident", 0.5, 0.9, false},
		{"close margin", 0.1, 0.9, true},
		{"low confidence", 0.5, 0.4, true},
		{"margin at threshold", 0.15, 0.9, false},
		{"confidence at threshold", 0.5, 0.5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Prediction{Uncertainty: Uncertainty{Margin: tc.margin, MaxProb: tc.maxProb}}
			assert.Equal(t, tc.uncertain, p.Uncertain(0.15, 0.5))
		})
	}
}

func TestDominantShare(t *testing.T) {
	c := Cluster{Size: 10, LabelCounts: map[string]int{"a": 7, "b": 3}}
	label, share := c.DominantShare()
	assert.Equal(t, "a", label)
	assert.InDelta(t, 0.7, share, 1e-9)

	// Ties break to the lexicographically smaller label.
	c = Cluster{Size: 4, LabelCounts: map[string]int{"b": 2, "a": 2}}
	label, _ = c.DominantShare()
	assert.Equal(t, "a", label)

	label, share = (&Cluster{}).DominantShare()
	assert.Empty(t, label)
	assert.Zero(t, share)
}
