package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/storetest"
)

// fakeModel returns a fixed probability vector per input, cycling through
// the configured rows.
type fakeModel struct {
	classes []string
	probas  [][]float64
}

func (m *fakeModel) Classes() []string { return m.classes }

func (m *fakeModel) PredictProba(texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = m.probas[i%len(m.probas)]
	}
	return out, nil
}

type fakeProvider struct {
	model core.Model
	err   error
}

func (p *fakeProvider) LoadLatest() (core.Model, error) { return p.model, p.err }

func testConfig() config.EvolveConfig {
	return config.EvolveConfig{
		MarginThreshold:     0.15,
		ConfidenceThreshold: 0.5,
		BatchSize:           100,
	}
}

func TestUncertainBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		margin    float64
		maxProb   float64
		uncertain bool
	}{
		{"confident", 0.5, 0.9, false},
		{"margin exactly at threshold", 0.15, 0.9, false},
		{"margin just below threshold", 0.1499, 0.9, true},
		{"confidence exactly at threshold", 0.5, 0.5, false},
		{"confidence just below threshold", 0.5, 0.4999, true},
		{"both below", 0.01, 0.3, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := core.Prediction{Uncertainty: core.Uncertainty{Margin: tc.margin, MaxProb: tc.maxProb}}
			assert.Equal(t, tc.uncertain, p.Uncertain(0.15, 0.5))
		})
	}
}

func TestClassifyAndFlag(t *testing.T) {
	store := storetest.New()
	store.AddUnlabeled("clearly category a")
	id2 := store.AddUnlabeled("close call between a and b")
	id3 := store.AddUnlabeled("diffuse everything")

	model := &fakeModel{
		classes: []string{"a", "b", "c"},
		probas: [][]float64{
			{0.9, 0.05, 0.05},  // confident
			{0.41, 0.39, 0.20}, // margin 0.02
			{0.30, 0.28, 0.42}, // max prob 0.42
		},
	}
	c := New(store, &fakeProvider{model: model}, testConfig(), zap.NewNop())

	result, err := c.ClassifyAndFlag(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Classified)
	assert.Equal(t, []int64{id2, id3}, result.UncertainIDs)

	// Every email now carries a model-sourced label.
	labeled, err := store.LabeledEmails(context.Background())
	require.NoError(t, err)
	require.Len(t, labeled, 3)
	for _, le := range labeled {
		assert.Equal(t, core.SourceModel, le.Source)
	}
	assert.Equal(t, "a", labeled[0].Category)
	assert.InDelta(t, 0.9, labeled[0].Confidence, 1e-9)
}

func TestClassifyAndFlagNoModel(t *testing.T) {
	store := storetest.New()
	store.AddUnlabeled("anything")

	c := New(store, &fakeProvider{err: core.ErrNoModel}, testConfig(), zap.NewNop())

	result, err := c.ClassifyAndFlag(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Classified)
	assert.Empty(t, result.UncertainIDs)

	// Nothing was labeled.
	n, err := store.LabeledCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClassifyAndFlagDrainsAllBatches(t *testing.T) {
	store := storetest.New()
	for i := 0; i < 7; i++ {
		store.AddUnlabeled("email")
	}

	model := &fakeModel{classes: []string{"a", "b"}, probas: [][]float64{{0.9, 0.1}}}
	cfg := testConfig()
	cfg.BatchSize = 3
	c := New(store, &fakeProvider{model: model}, cfg, zap.NewNop())

	result, err := c.ClassifyAndFlag(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, result.Classified)

	remaining, err := store.UnlabeledCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	store := storetest.New()
	store.AddUnlabeled("one")
	store.AddUnlabeled("two")

	model := &fakeModel{classes: []string{"a", "b"}, probas: [][]float64{{0.8, 0.2}}}
	c := New(store, &fakeProvider{model: model}, testConfig(), zap.NewNop())

	predictions, err := c.Preview(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, predictions, 2)

	n, err := store.LabeledCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPredictUncertaintyMetrics(t *testing.T) {
	model := &fakeModel{classes: []string{"a", "b"}, probas: [][]float64{{0.6, 0.4}}}
	emails := []core.Email{{ID: 7, Subject: "anything"}}

	predictions, err := Predict(model, emails)
	require.NoError(t, err)
	require.Len(t, predictions, 1)

	p := predictions[0]
	assert.Equal(t, int64(7), p.EmailID)
	assert.Equal(t, "a", p.Category)
	assert.InDelta(t, 0.6, p.Confidence, 1e-9)
	assert.InDelta(t, 0.2, p.Uncertainty.Margin, 1e-9)
	assert.InDelta(t, 0.6, p.Uncertainty.MaxProb, 1e-9)
	assert.Greater(t, p.Uncertainty.Entropy, 0.0)
}
