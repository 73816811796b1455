// Package classifier implements the uncertainty-aware classification layer.
// It scores unlabeled emails with the current model, persists every
// prediction as a model-sourced label, and flags predictions whose margin or
// confidence falls below the configured thresholds.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/ml"
)

// Classifier scores batches of unlabeled emails until none remain.
type Classifier struct {
	store    core.Store
	provider core.ModelProvider
	logger   *zap.Logger
	cfg      config.EvolveConfig
}

// New creates a classifier.
func New(store core.Store, provider core.ModelProvider, cfg config.EvolveConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		store:    store,
		provider: provider,
		logger:   logger,
		cfg:      cfg,
	}
}

// Predict scores a batch of emails with a loaded model. Pure; no persistence.
func Predict(model core.Model, emails []core.Email) ([]core.Prediction, error) {
	texts := make([]string, len(emails))
	for i := range emails {
		texts[i] = emails[i].FeatureText()
	}

	probas, err := model.PredictProba(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to score batch: %w", err)
	}
	classes := model.Classes()

	predictions := make([]core.Prediction, len(emails))
	for i, probs := range probas {
		best := ml.ArgMax(probs)
		predictions[i] = core.Prediction{
			EmailID:    emails[i].ID,
			Category:   classes[best],
			Confidence: probs[best],
			Uncertainty: core.Uncertainty{
				Entropy: ml.Entropy(probs),
				Margin:  ml.Margin(probs),
				MaxProb: ml.MaxProb(probs),
			},
		}
	}
	return predictions, nil
}

// Result summarizes one classification run.
type Result struct {
	Classified   int
	UncertainIDs []int64
}

// ClassifyAndFlag classifies all unlabeled emails in batches, upserting each
// prediction as a model label and collecting the ids of uncertain ones.
//
// With no trained artifact it returns an empty result: callers must treat
// zero throughput as "skip, do not retrain", never as a reason to abort.
func (c *Classifier) ClassifyAndFlag(ctx context.Context) (*Result, error) {
	model, err := c.provider.LoadLatest()
	if err != nil {
		if errors.Is(err, core.ErrNoModel) {
			c.logger.Error("No trained model available, skipping classification",
				zap.String("hint", "run a manual training pass first"))
			return &Result{}, nil
		}
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	result := &Result{}
	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for {
		unlabeled, err := c.store.UnlabeledEmails(ctx, batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to fetch unlabeled emails: %w", err)
		}
		if len(unlabeled) == 0 {
			break
		}

		c.logger.Info("Classifying batch", zap.Int("size", len(unlabeled)))
		predictions, err := Predict(model, unlabeled)
		if err != nil {
			return result, err
		}

		for _, p := range predictions {
			label := core.NewLabel(p.EmailID, p.Category, p.Confidence, core.SourceModel)
			if err := c.store.UpsertLabel(ctx, label); err != nil {
				return result, fmt.Errorf("failed to save label for email %d: %w", p.EmailID, err)
			}
			result.Classified++

			if p.Uncertain(c.cfg.MarginThreshold, c.cfg.ConfidenceThreshold) {
				result.UncertainIDs = append(result.UncertainIDs, p.EmailID)
			}
		}

		c.logger.Info("Batch done",
			zap.Int("total_classified", result.Classified),
			zap.Int("uncertain", len(result.UncertainIDs)))
	}

	c.logger.Info("Classification complete",
		zap.Int("classified", result.Classified),
		zap.Int("uncertain", len(result.UncertainIDs)))
	return result, nil
}

// Preview classifies up to batchSize unlabeled emails without persisting
// anything. Used by the dry-run CLI mode.
func (c *Classifier) Preview(ctx context.Context, batchSize int) ([]core.Prediction, error) {
	model, err := c.provider.LoadLatest()
	if err != nil {
		if errors.Is(err, core.ErrNoModel) {
			c.logger.Error("No trained model available")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	unlabeled, err := c.store.UnlabeledEmails(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlabeled emails: %w", err)
	}
	if len(unlabeled) == 0 {
		return nil, nil
	}
	return Predict(model, unlabeled)
}
