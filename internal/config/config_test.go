package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return NewFromViper(NewEmptyViper())
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	evolve := cfg.GetEvolve()
	assert.InDelta(t, 0.15, evolve.MarginThreshold, 1e-9)
	assert.InDelta(t, 0.5, evolve.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 20, evolve.MinClusterSize)
	assert.Equal(t, 50, evolve.MinNewLabelsForRetrain)
	assert.Equal(t, 100, evolve.BatchSize)
	assert.InDelta(t, 0.8, evolve.HomogeneityThreshold, 1e-9)
	assert.InDelta(t, 0.05, evolve.RegressionThreshold, 1e-9)

	discovery := cfg.GetDiscovery()
	assert.InDelta(t, 0.5, discovery.Eps, 1e-9)
	assert.Equal(t, 10, discovery.MinSamples)
	assert.Equal(t, 3000, discovery.MaxVocab)
	assert.Equal(t, 10, discovery.TopTerms)
	assert.Equal(t, 3, discovery.SampleCount)

	training := cfg.GetTraining()
	assert.Equal(t, 5000, training.MaxVocab)
	assert.Equal(t, 100, training.NumTrees)
	assert.InDelta(t, 0.2, training.TestFraction, 1e-9)
	assert.Equal(t, 10, training.MinEvalSamples)

	assert.Equal(t, "sqlite", cfg.GetStorage().Type)
	assert.Equal(t, "openai", cfg.GetOracle().Provider)

	api := cfg.GetAPI()
	assert.Equal(t, "127.0.0.1:5544", api.ListenAddress)
	assert.Equal(t, 200, api.MaxBatchIDs)
	assert.Equal(t, 5*time.Minute, api.CacheTTL)

	interval, err := cfg.GetDuration("evolve.schedule_interval")
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, interval)
}

func TestOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("evolve.min_cluster_size", 5)
	v.Set("storage.type", "mysql")
	cfg := NewFromViper(v)

	assert.Equal(t, 5, cfg.GetEvolve().MinClusterSize)
	assert.Equal(t, "mysql", cfg.GetStorage().Type)
}

func TestTaxonomy(t *testing.T) {
	taxonomy := DefaultTaxonomy()

	assert.Len(t, taxonomy.Categories(), 15)
	assert.Len(t, taxonomy.PriorityOrder(), 15)

	assert.Equal(t, GroupAction, taxonomy.Group("security_auth"))
	assert.Equal(t, GroupInfo, taxonomy.Group("travel"))
	assert.Equal(t, GroupNoise, taxonomy.Group("marketing_promo"))
	assert.Equal(t, GroupOther, taxonomy.Group("not_a_category"))

	assert.True(t, taxonomy.Contains("personal"))
	assert.False(t, taxonomy.Contains("crypto_newsletter"))

	assert.Len(t, taxonomy.GroupMembers(GroupAction), 6)
	assert.Len(t, taxonomy.GroupMembers(GroupInfo), 6)
	assert.Len(t, taxonomy.GroupMembers(GroupNoise), 3)

	// Every category has a description.
	for _, c := range taxonomy.Categories() {
		assert.NotEmpty(t, taxonomy.Description(c), c)
	}
}
