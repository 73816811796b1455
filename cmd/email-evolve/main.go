package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/classifier"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/di"
	"github.com/perry/email-evolve/internal/discovery"
	"github.com/perry/email-evolve/internal/evolve"
	"github.com/perry/email-evolve/internal/training"
)

var (
	mode   = flag.String("mode", "once", "Run mode (once, schedule, discover, review, train, classify, clear-labels)")
	dryRun = flag.Bool("dry-run", false, "Preview classifications without writing labels")
	yes    = flag.Bool("yes", false, "Skip confirmation prompts")
)

func main() {
	flag.Parse()

	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches the selected mode with all dependencies injected
func run(
	logger *zap.Logger,
	store core.Store,
	orchestrator *evolve.Orchestrator,
	scheduler *evolve.Scheduler,
	cls *classifier.Classifier,
	disc *discovery.Engine,
	trainer *training.Trainer,
	discoveryCfg config.DiscoveryConfig,
	evolveCfg config.EvolveConfig,
) error {
	defer logger.Sync()
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	switch *mode {
	case "once":
		summary := orchestrator.RunCycle(ctx)
		fmt.Println(evolve.FormatSummary(summary))
		return nil
	case "schedule":
		return scheduler.Run(ctx)
	case "discover":
		return runDiscover(ctx, store, disc, discoveryCfg, evolveCfg)
	case "review":
		return runReview(ctx, disc)
	case "train":
		return runTrain(ctx, trainer)
	case "classify":
		return runClassify(ctx, cls, evolveCfg)
	case "clear-labels":
		return runClearLabels(ctx, store)
	default:
		return fmt.Errorf("unknown mode: %s", *mode)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// runDiscover clusters stored low-confidence labels and persists pending
// proposals for operator review.
func runDiscover(
	ctx context.Context,
	store core.Store,
	disc *discovery.Engine,
	discoveryCfg config.DiscoveryConfig,
	evolveCfg config.EvolveConfig,
) error {
	candidates, err := store.LowConfidenceEmails(ctx, evolveCfg.ConfidenceThreshold, discoveryCfg.CandidateLimit)
	if err != nil {
		return fmt.Errorf("failed to load low-confidence emails: %w", err)
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	proposals, err := disc.Discover(ctx, ids)
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		fmt.Println("No new category proposals.")
		return nil
	}
	for _, p := range proposals {
		fmt.Printf("Proposed: %s (%d emails)\n  %s\n", p.ProposedName, p.ClusterSize, p.Description)
	}
	fmt.Printf("\n%d proposal(s) saved. Run with -mode review to accept or reject.\n", len(proposals))
	return nil
}

// runReview walks pending proposals interactively.
func runReview(ctx context.Context, disc *discovery.Engine) error {
	pending, err := disc.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending proposals: %w", err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending proposals.")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for i, p := range pending {
		fmt.Printf("\n[%d/%d] %s (%d emails)\n", i+1, len(pending), p.ProposedName, p.ClusterSize)
		if p.Description != "" {
			fmt.Printf("  Description: %s\n", p.Description)
		}
		if p.Reasoning != "" {
			fmt.Printf("  Reasoning:   %s\n", p.Reasoning)
		}

		fmt.Print("Accept, reject, or skip? (a/r/s): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a":
			if err := disc.Resolve(ctx, p.ID, core.ProposalAccepted); err != nil {
				return err
			}
			fmt.Printf("Accepted %s. Add it to the taxonomy and re-label before the next training run.\n", p.ProposedName)
		case "r":
			if err := disc.Resolve(ctx, p.ID, core.ProposalRejected); err != nil {
				return err
			}
			fmt.Println("Rejected.")
		default:
			fmt.Println("Skipped.")
		}
	}
	return nil
}

// runTrain triggers a manual training run.
func runTrain(ctx context.Context, trainer *training.Trainer) error {
	version, err := trainer.Train(ctx, core.TriggerManual)
	if err != nil {
		return err
	}
	if version.InsufficientData {
		fmt.Printf("Recorded %s: not enough labeled data to train.\n", version.Version)
		return nil
	}
	fmt.Printf("Trained %s: accuracy %.4f over %d samples, %d categories.\n",
		version.Version, version.Accuracy, version.NumSamples, version.NumCategories)
	return nil
}

// runClassify classifies unlabeled emails, or previews one batch with -dry-run.
func runClassify(ctx context.Context, cls *classifier.Classifier, evolveCfg config.EvolveConfig) error {
	if *dryRun {
		predictions, err := cls.Preview(ctx, evolveCfg.BatchSize)
		if err != nil {
			return err
		}
		if len(predictions) == 0 {
			fmt.Println("No unlabeled emails.")
			return nil
		}
		for _, p := range predictions {
			marker := ""
			if p.Uncertain(evolveCfg.MarginThreshold, evolveCfg.ConfidenceThreshold) {
				marker = " [uncertain]"
			}
			fmt.Printf("email %d: %s (%.3f)%s\n", p.EmailID, p.Category, p.Confidence, marker)
		}
		return nil
	}

	result, err := cls.ClassifyAndFlag(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Classified %d emails, %d flagged uncertain.\n", result.Classified, len(result.UncertainIDs))
	return nil
}

// runClearLabels wipes every label ahead of a taxonomy change.
func runClearLabels(ctx context.Context, store core.Store) error {
	if !*yes {
		fmt.Print("This deletes ALL labels. Continue? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted, err := store.ClearLabels(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d labels.\n", deleted)
	return nil
}
