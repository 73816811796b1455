package evolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSchedulerRejectsInvalidInterval(t *testing.T) {
	f := newFixture(t, zap.NewNop())

	s := NewScheduler(f.orch, 0, zap.NewNop())
	assert.Error(t, s.Run(context.Background()))

	s = NewScheduler(f.orch, -time.Second, zap.NewNop())
	assert.Error(t, s.Run(context.Background()))
}

func TestSchedulerRunsCyclesUntilCancelled(t *testing.T) {
	zapCore, logs := observer.New(zap.InfoLevel)
	logger := zap.New(zapCore)
	f := newFixture(t, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	s := NewScheduler(f.orch, 5*time.Millisecond, logger)
	go func() { done <- s.Run(ctx) }()

	cycleComplete := func() []observer.LoggedEntry {
		return logs.FilterMessage("Cycle complete").All()
	}
	assert.Eventually(t, func() bool {
		return len(cycleComplete()) >= 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	// The cycle outcome goes through the logger, carrying the summary fields.
	entry := cycleComplete()[0]
	fields := entry.ContextMap()
	assert.Contains(t, fields, "classified")
	assert.Contains(t, fields, "retrained")
	assert.Contains(t, fields, "next_run")
	assert.Equal(t, int64(1), fields["cycle"])
}
