// Package training implements the model version manager: it trains a
// TF-IDF + random forest pipeline from labeled emails, evaluates it on a
// stratified held-out split, and persists versioned artifacts with lineage.
package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/ml"
)

// latestArtifact is the filename the live classifier loads.
const latestArtifact = "email_classifier.gob"

// trainSeed keeps splits and forests reproducible across retrains.
const trainSeed = 42

// Trainer trains, evaluates, and versions models.
type Trainer struct {
	store  core.Store
	logger *zap.Logger
	cfg    config.TrainingConfig
}

// New creates a trainer.
func New(store core.Store, cfg config.TrainingConfig, logger *zap.Logger) *Trainer {
	return &Trainer{
		store:  store,
		logger: logger,
		cfg:    cfg,
	}
}

// Train runs one full training pass: load labeled data, fit, evaluate,
// persist artifacts, record lineage. Every run appends a ModelVersion row,
// including insufficient-data runs, so history is auditable. The returned
// version carries InsufficientData instead of a numeric score when fewer
// than the minimum evaluation samples exist.
func (t *Trainer) Train(ctx context.Context, trigger core.TrainTrigger) (*core.ModelVersion, error) {
	labeled, err := t.store.LabeledEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}

	texts := make([]string, len(labeled))
	labels := make([]string, len(labeled))
	categories := make(map[string]struct{})
	for i := range labeled {
		texts[i] = labeled[i].FeatureText()
		labels[i] = labeled[i].Category
		categories[labeled[i].Category] = struct{}{}
	}
	t.logger.Info("Loaded training data",
		zap.Int("samples", len(texts)),
		zap.Int("categories", len(categories)))

	version, err := t.nextVersion(ctx)
	if err != nil {
		return nil, err
	}

	mv := &core.ModelVersion{
		Version:       version,
		NumSamples:    len(texts),
		NumCategories: len(categories),
		Trigger:       trigger,
	}

	if len(texts) == 0 {
		// Nothing to fit. Record the attempt so the lineage shows it,
		// but leave the live artifact untouched.
		mv.InsufficientData = true
		mv.ReportJSON = "{}"
		t.logger.Warn("No labeled emails, recording insufficient-data version",
			zap.String("version", version))
		if err := t.store.AppendModelVersion(ctx, mv); err != nil {
			return nil, fmt.Errorf("failed to record model version: %w", err)
		}
		return mv, nil
	}

	pipeline := ml.NewPipeline(t.cfg.MaxVocab, t.cfg.NumTrees, trainSeed)

	if len(texts) < t.cfg.MinEvalSamples {
		// A held-out score on trivial data would be misleadingly precise.
		t.logger.Warn("Too few samples for evaluation, fitting on full dataset",
			zap.Int("samples", len(texts)),
			zap.Int("min", t.cfg.MinEvalSamples))
		pipeline.Fit(texts, labels)
		mv.InsufficientData = true
		mv.ReportJSON = `{"note":"too few samples for evaluation"}`
	} else {
		trainIdx, testIdx := ml.StratifiedSplit(labels, t.cfg.TestFraction, trainSeed)
		trainTexts := pick(texts, trainIdx)
		trainLabels := pick(labels, trainIdx)
		testTexts := pick(texts, testIdx)
		testLabels := pick(labels, testIdx)

		t.logger.Info("Training",
			zap.Int("train", len(trainTexts)),
			zap.Int("test", len(testTexts)))
		pipeline.Fit(trainTexts, trainLabels)

		predicted, err := predictLabels(pipeline, testTexts)
		if err != nil {
			return nil, err
		}
		report := ml.Evaluate(testLabels, predicted)
		reportJSON, err := json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to encode evaluation report: %w", err)
		}

		mv.Accuracy = report.Accuracy
		mv.MacroF1 = report.MacroF1
		mv.ReportJSON = string(reportJSON)
	}

	modelPath, err := t.saveArtifacts(pipeline, version)
	if err != nil {
		return nil, err
	}
	mv.ModelPath = modelPath

	if err := t.store.AppendModelVersion(ctx, mv); err != nil {
		return nil, fmt.Errorf("failed to record model version: %w", err)
	}

	if mv.InsufficientData {
		t.logger.Info("Model trained without evaluation", zap.String("version", version))
	} else {
		t.logger.Info("Model trained",
			zap.String("version", version),
			zap.Float64("accuracy", mv.Accuracy),
			zap.Float64("macro_f1", mv.MacroF1))
	}
	return mv, nil
}

// nextVersion builds an identifier that is unique and chronologically
// sortable: ordinal plus creation timestamp.
func (t *Trainer) nextVersion(ctx context.Context) (string, error) {
	count, err := t.store.ModelVersionCount(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count model versions: %w", err)
	}
	return fmt.Sprintf("v%d_%s", count+1, time.Now().Format("20060102_150405")), nil
}

// saveArtifacts writes the versioned artifact, then atomically replaces the
// latest pointer so a failed run can never leave a partially written live
// artifact behind.
func (t *Trainer) saveArtifacts(pipeline *ml.Pipeline, version string) (string, error) {
	if err := os.MkdirAll(t.cfg.ModelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	versionedPath := filepath.Join(t.cfg.ModelDir, fmt.Sprintf("email_classifier_%s.gob", version))
	if err := writeArtifact(versionedPath, pipeline); err != nil {
		return "", err
	}
	t.logger.Info("Versioned model saved", zap.String("path", versionedPath))

	latestPath := filepath.Join(t.cfg.ModelDir, latestArtifact)
	tmpPath := latestPath + ".tmp"
	if err := writeArtifact(tmpPath, pipeline); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, latestPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to replace latest model: %w", err)
	}
	t.logger.Info("Latest model updated", zap.String("path", latestPath))

	return versionedPath, nil
}

func writeArtifact(path string, pipeline *ml.Pipeline) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model artifact: %w", err)
	}
	if err := pipeline.Encode(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to flush model artifact: %w", err)
	}
	return nil
}

func predictLabels(pipeline *ml.Pipeline, texts []string) ([]string, error) {
	probas, err := pipeline.PredictProba(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate model: %w", err)
	}
	classes := pipeline.Classes()
	out := make([]string, len(probas))
	for i, probs := range probas {
		out[i] = classes[ml.ArgMax(probs)]
	}
	return out, nil
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// Provider loads the live model artifact for the classifier.
type Provider struct {
	modelDir string
}

// NewProvider creates a model provider rooted at the configured model dir.
func NewProvider(cfg config.TrainingConfig) *Provider {
	return &Provider{modelDir: cfg.ModelDir}
}

// LoadLatest loads the latest pipeline, or core.ErrNoModel if no artifact
// has been trained yet.
func (p *Provider) LoadLatest() (core.Model, error) {
	path := filepath.Join(p.modelDir, latestArtifact)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, core.ErrNoModel
	}
	pipeline, err := ml.LoadPipeline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model artifact: %w", err)
	}
	return pipeline, nil
}
