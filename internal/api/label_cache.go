package api

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/core"
)

// labelEntry is a cached label with its expiry.
type labelEntry struct {
	label     core.Label
	expiresAt time.Time
}

// LabelCache is an in-memory TTL cache in front of the store's batch label
// lookup. The extension polls the same open mailbox every few seconds, so
// most lookups repeat recent ones.
type LabelCache struct {
	entries     map[string]labelEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewLabelCache creates a label cache and starts its background cleanup
func NewLabelCache(ttl, cleanupFreq time.Duration, logger *zap.Logger) *LabelCache {
	cache := &LabelCache{
		entries:     make(map[string]labelEntry),
		logger:      logger,
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go cache.startCleanupTask()

	return cache
}

// Get retrieves the cached label for a provider id
func (c *LabelCache) Get(providerID string) (core.Label, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[providerID]
	if !ok {
		return core.Label{}, false
	}
	if time.Now().After(entry.expiresAt) {
		return core.Label{}, false
	}
	return entry.label, true
}

// Set stores a label
func (c *LabelCache) Set(providerID string, label core.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[providerID] = labelEntry{
		label:     label,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Stop terminates the background cleanup task
func (c *LabelCache) Stop() {
	close(c.stopCh)
}

// startCleanupTask periodically removes expired entries
func (c *LabelCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes expired entries from the cache
func (c *LabelCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cleaned up expired label cache entries", zap.Int("removed", removed))
	}
}
