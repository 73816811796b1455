// Package evolve implements the evolution control loop: ingest, classify and
// flag, discover, retrain, compare, summarize. Each stage produces a tagged
// result; one stage failing never prevents later stages from running with
// whatever state exists.
package evolve

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/classifier"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/discovery"
	"github.com/perry/email-evolve/internal/training"
)

// Stage names as they appear in cycle summaries.
const (
	StageIngest   = "ingest"
	StageClassify = "classify_and_flag"
	StageDiscover = "discover"
	StageRetrain  = "retrain"
	StageCompare  = "compare"
)

// Orchestrator drives one evolution cycle at a time. It is strictly
// single-flight: a second RunCycle blocks until the first finishes.
type Orchestrator struct {
	mu sync.Mutex

	store      core.Store
	accounts   core.AccountSource
	mail       core.MailSource
	classifier *classifier.Classifier
	discovery  *discovery.Engine
	trainer    *training.Trainer
	logger     *zap.Logger
	cfg        config.EvolveConfig
}

// New creates an orchestrator.
func New(
	store core.Store,
	accounts core.AccountSource,
	mail core.MailSource,
	cls *classifier.Classifier,
	disc *discovery.Engine,
	trainer *training.Trainer,
	cfg config.EvolveConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		accounts:   accounts,
		mail:       mail,
		classifier: cls,
		discovery:  disc,
		trainer:    trainer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RunCycle executes one full evolution cycle. It always returns a summary,
// even a fully degraded one, so operators can tell "nothing to do" from
// "something failed".
func (o *Orchestrator) RunCycle(ctx context.Context) *core.CycleSummary {
	o.mu.Lock()
	defer o.mu.Unlock()

	summary := &core.CycleSummary{StartedAt: time.Now()}

	o.ingest(ctx, summary)
	uncertainIDs := o.classify(ctx, summary)
	o.discover(ctx, summary, uncertainIDs)
	retrained := o.retrain(ctx, summary)
	o.compare(summary, retrained)

	return summary
}

func (o *Orchestrator) record(summary *core.CycleSummary, result core.StageResult) {
	summary.Stages = append(summary.Stages, result)
	switch result.Status {
	case core.StageFailed:
		o.logger.Error("Stage failed",
			zap.String("stage", result.Stage), zap.Error(result.Err))
	case core.StageSkipped:
		o.logger.Info("Stage skipped",
			zap.String("stage", result.Stage), zap.String("reason", result.Reason))
	}
}

// ingest pulls new emails for every already-authenticated account. It never
// launches interactive auth, and its failure leaves the rest of the cycle
// free to run over the existing backlog.
func (o *Orchestrator) ingest(ctx context.Context, summary *core.CycleSummary) {
	accounts, err := o.accounts.Accounts(ctx)
	if err != nil {
		o.record(summary, core.StageResult{Stage: StageIngest, Status: core.StageFailed, Err: err})
		return
	}
	if len(accounts) == 0 {
		o.record(summary, core.StageResult{
			Stage: StageIngest, Status: core.StageSkipped,
			Reason: "no authenticated accounts",
		})
		return
	}

	var firstErr error
	for _, account := range accounts {
		emails, err := o.mail.Fetch(ctx, account)
		if err != nil {
			o.logger.Error("Failed to fetch emails",
				zap.String("account", account), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		inserted := 0
		for i := range emails {
			ok, err := o.store.InsertEmail(ctx, &emails[i])
			if err != nil {
				o.logger.Error("Failed to store email",
					zap.String("provider_id", emails[i].ProviderID), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				inserted++
			}
		}
		summary.NewEmails += inserted
		o.logger.Info("Fetched new emails",
			zap.String("account", account), zap.Int("new", inserted))
	}

	if firstErr != nil && summary.NewEmails == 0 {
		o.record(summary, core.StageResult{Stage: StageIngest, Status: core.StageFailed, Err: firstErr})
		return
	}
	o.record(summary, core.StageResult{Stage: StageIngest, Status: core.StageOK})
}

func (o *Orchestrator) classify(ctx context.Context, summary *core.CycleSummary) []int64 {
	result, err := o.classifier.ClassifyAndFlag(ctx)
	if err != nil {
		o.record(summary, core.StageResult{Stage: StageClassify, Status: core.StageFailed, Err: err})
		if result == nil {
			return nil
		}
	} else {
		o.record(summary, core.StageResult{Stage: StageClassify, Status: core.StageOK})
	}
	summary.Classified = result.Classified
	summary.Uncertain = len(result.UncertainIDs)
	return result.UncertainIDs
}

func (o *Orchestrator) discover(ctx context.Context, summary *core.CycleSummary, uncertainIDs []int64) {
	required := o.cfg.MinClusterSize * 2
	if len(uncertainIDs) < required {
		o.record(summary, core.StageResult{
			Stage: StageDiscover, Status: core.StageSkipped,
			Reason: fmt.Sprintf("%d uncertain emails, need %d", len(uncertainIDs), required),
		})
		return
	}

	proposals, err := o.discovery.Discover(ctx, uncertainIDs)
	if err != nil {
		o.record(summary, core.StageResult{Stage: StageDiscover, Status: core.StageFailed, Err: err})
		return
	}
	summary.Proposals = len(proposals)
	o.record(summary, core.StageResult{Stage: StageDiscover, Status: core.StageOK})
}

// retrain is gated on net new supervision since the previous version, not on
// wall-clock time, so idle periods never trigger wasted work. Returns the
// previous version when a retrain happened.
func (o *Orchestrator) retrain(ctx context.Context, summary *core.CycleSummary) *core.ModelVersion {
	previous, err := o.store.LatestModelVersion(ctx)
	if err != nil {
		o.record(summary, core.StageResult{Stage: StageRetrain, Status: core.StageFailed, Err: err})
		return nil
	}

	previousSamples := 0
	if previous != nil {
		previousSamples = previous.NumSamples
	}
	labeled, err := o.store.LabeledCount(ctx)
	if err != nil {
		o.record(summary, core.StageResult{Stage: StageRetrain, Status: core.StageFailed, Err: err})
		return nil
	}

	newLabels := labeled - previousSamples
	if newLabels < o.cfg.MinNewLabelsForRetrain {
		o.record(summary, core.StageResult{
			Stage: StageRetrain, Status: core.StageSkipped,
			Reason: fmt.Sprintf("%d new labels, need %d", newLabels, o.cfg.MinNewLabelsForRetrain),
		})
		return nil
	}

	o.logger.Info("Retraining",
		zap.Int("new_labels", newLabels),
		zap.Int("threshold", o.cfg.MinNewLabelsForRetrain))
	version, err := o.trainer.Train(ctx, core.TriggerAuto)
	if err != nil {
		o.record(summary, core.StageResult{Stage: StageRetrain, Status: core.StageFailed, Err: err})
		return nil
	}

	summary.Retrained = true
	if !version.InsufficientData {
		acc := version.Accuracy
		summary.Accuracy = &acc
	}
	o.record(summary, core.StageResult{Stage: StageRetrain, Status: core.StageOK})
	return previous
}

// compare surfaces an accuracy regression as a warning. The system never
// rolls back automatically; it only flags to a human that training data may
// be degrading quality.
func (o *Orchestrator) compare(summary *core.CycleSummary, previous *core.ModelVersion) {
	if !summary.Retrained || previous == nil {
		o.record(summary, core.StageResult{
			Stage: StageCompare, Status: core.StageSkipped,
			Reason: "no retrain or no previous version",
		})
		return
	}
	if previous.InsufficientData || summary.Accuracy == nil {
		o.record(summary, core.StageResult{
			Stage: StageCompare, Status: core.StageSkipped,
			Reason: "no comparable accuracy scores",
		})
		return
	}

	prev := previous.Accuracy
	summary.PreviousAccuracy = &prev
	delta := *summary.Accuracy - prev
	if delta < -o.cfg.RegressionThreshold {
		o.logger.Warn("Accuracy dropped against previous version",
			zap.Float64("previous", prev),
			zap.Float64("current", *summary.Accuracy),
			zap.Float64("delta", delta),
			zap.String("hint", "check recent training data for label quality issues"))
	} else {
		o.logger.Info("Model comparison",
			zap.Float64("previous", prev),
			zap.Float64("current", *summary.Accuracy),
			zap.Float64("delta", delta))
	}
	o.record(summary, core.StageResult{Stage: StageCompare, Status: core.StageOK})
}

// FormatSummary renders a cycle summary for CLI output.
func FormatSummary(s *core.CycleSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evolution Cycle Summary (%s) ===\n", s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  New emails ingested:   %d\n", s.NewEmails)
	fmt.Fprintf(&b, "  Emails classified:     %d\n", s.Classified)
	fmt.Fprintf(&b, "  Uncertain predictions: %d\n", s.Uncertain)
	fmt.Fprintf(&b, "  Category proposals:    %d\n", s.Proposals)
	retrained := "No"
	if s.Retrained {
		retrained = "Yes"
	}
	fmt.Fprintf(&b, "  Retrained:             %s\n", retrained)
	if s.Accuracy != nil {
		fmt.Fprintf(&b, "  New accuracy:          %.3f\n", *s.Accuracy)
	}
	if s.Accuracy != nil && s.PreviousAccuracy != nil {
		diff := *s.Accuracy - *s.PreviousAccuracy
		fmt.Fprintf(&b, "  Previous accuracy:     %.3f (%+.3f)\n", *s.PreviousAccuracy, diff)
	}
	for _, stage := range s.Stages {
		switch stage.Status {
		case core.StageFailed:
			fmt.Fprintf(&b, "  [%s] FAILED: %v\n", stage.Stage, stage.Err)
		case core.StageSkipped:
			fmt.Fprintf(&b, "  [%s] skipped: %s\n", stage.Stage, stage.Reason)
		}
	}
	return b.String()
}
