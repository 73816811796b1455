package evolve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs evolution cycles on a fixed interval. Cycles never overlap;
// the sleep between cycles is cancellable so shutdown is immediate rather
// than mid-cycle.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       *zap.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(orchestrator *Orchestrator, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		logger:       logger,
	}
}

// Run executes cycles until the context is cancelled. It returns nil on
// clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %v", s.interval)
	}
	s.logger.Info("Starting evolution scheduler", zap.Duration("interval", s.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped", zap.Int("cycles_run", cycle))
			return nil
		case <-timer.C:
		}

		cycle++
		s.logger.Info("Starting evolution cycle", zap.Int("cycle", cycle))
		summary := s.orchestrator.RunCycle(ctx)

		next := time.Now().Add(s.interval)
		fields := []zap.Field{
			zap.Int("cycle", cycle),
			zap.Int("new_emails", summary.NewEmails),
			zap.Int("classified", summary.Classified),
			zap.Int("uncertain", summary.Uncertain),
			zap.Int("proposals", summary.Proposals),
			zap.Bool("retrained", summary.Retrained),
			zap.Time("next_run", next),
		}
		if summary.Accuracy != nil {
			fields = append(fields, zap.Float64("accuracy", *summary.Accuracy))
		}
		s.logger.Info("Cycle complete", fields...)
		timer.Reset(s.interval)
	}
}
