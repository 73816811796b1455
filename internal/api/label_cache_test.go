package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/core"
)

func TestLabelCacheSetGet(t *testing.T) {
	cache := NewLabelCache(time.Minute, time.Minute, zap.NewNop())
	defer cache.Stop()

	_, ok := cache.Get("m1")
	assert.False(t, ok)

	cache.Set("m1", core.NewLabel(1, "travel", 0.8, core.SourceModel))

	label, ok := cache.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "travel", label.Category)
	assert.InDelta(t, 0.8, label.Confidence, 1e-9)
}

func TestLabelCacheExpiry(t *testing.T) {
	cache := NewLabelCache(10*time.Millisecond, time.Hour, zap.NewNop())
	defer cache.Stop()

	cache.Set("m1", core.NewLabel(1, "travel", 0.8, core.SourceModel))
	time.Sleep(25 * time.Millisecond)

	_, ok := cache.Get("m1")
	assert.False(t, ok)
}

func TestLabelCacheCleanup(t *testing.T) {
	cache := NewLabelCache(time.Nanosecond, 5*time.Millisecond, zap.NewNop())
	defer cache.Stop()

	cache.Set("m1", core.NewLabel(1, "travel", 0.8, core.SourceModel))

	assert.Eventually(t, func() bool {
		cache.mu.RLock()
		defer cache.mu.RUnlock()
		return len(cache.entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
