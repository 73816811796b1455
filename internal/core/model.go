package core

import (
	"time"

	"github.com/perry/email-evolve/internal/utils"
)

// Email represents a normalized message record produced by ingestion.
// Emails are immutable once stored and uniquely keyed by (account, provider id).
type Email struct {
	ID             int64
	ProviderID     string
	AccountEmail   string
	ThreadID       string
	InternalDate   int64
	From           string
	To             string
	Subject        string
	Snippet        string
	Body           string
	ProviderLabels string
	CreatedAt      time.Time
}

// featureBodyLimit caps the body prefix used as model input. Keeps cost
// bounded while retaining the short discriminative signal.
const featureBodyLimit = 500

// FeatureText builds the text the model sees for this email: sender address,
// subject, and a bounded body prefix. The prefix never splits a multi-byte
// rune.
func (e *Email) FeatureText() string {
	return e.From + " " + e.Subject + " " + utils.TruncateText(e.Body, featureBodyLimit)
}

// LabelSource identifies who produced a label.
type LabelSource string

const (
	SourceManual LabelSource = "manual"
	SourceLLM    LabelSource = "llm"
	SourceModel  LabelSource = "model"
)

// Label is the single mutable annotation on an email. A new classification
// replaces the prior one (upsert semantics).
type Label struct {
	EmailID    int64
	Category   string
	Confidence float64
	Source     LabelSource
	CreatedAt  time.Time
}

// NewLabel creates a label with the confidence clamped to [0, 1].
func NewLabel(emailID int64, category string, confidence float64, source LabelSource) Label {
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return Label{
		EmailID:    emailID,
		Category:   category,
		Confidence: confidence,
		Source:     source,
	}
}

// LabeledEmail is an email joined with its current label, if any.
type LabeledEmail struct {
	Email
	Category   string
	Confidence float64
	Source     LabelSource
}

// Uncertainty holds the uncertainty metrics for a single prediction.
type Uncertainty struct {
	Entropy float64
	Margin  float64
	MaxProb float64
}

// Prediction is the classifier output for one email.
type Prediction struct {
	EmailID     int64
	Category    string
	Confidence  float64
	Uncertainty Uncertainty
}

// Uncertain reports whether the prediction should enter the discovery
// pipeline: either a close call between the top two categories or low
// absolute confidence. Both comparisons are strict.
func (p Prediction) Uncertain(marginThreshold, confidenceThreshold float64) bool {
	return p.Uncertainty.Margin < marginThreshold || p.Uncertainty.MaxProb < confidenceThreshold
}

// TrainTrigger records whether a training run was requested by a human
// or by the evolution loop.
type TrainTrigger string

const (
	TriggerManual TrainTrigger = "manual"
	TriggerAuto   TrainTrigger = "auto"
)

// ModelVersion is an append-only lineage record for one training run.
// Accuracy and MacroF1 are only meaningful when InsufficientData is false.
type ModelVersion struct {
	ID               int64
	Version          string
	ModelPath        string
	NumSamples       int
	NumCategories    int
	Accuracy         float64
	MacroF1          float64
	ReportJSON       string
	Trigger          TrainTrigger
	InsufficientData bool
	CreatedAt        time.Time
}

// ProposalStatus is the review state of a category proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// CategoryProposal is a candidate new category produced by the discovery
// engine. It is only ever transitioned out of pending by a reviewer.
type CategoryProposal struct {
	ID             int64
	ProposedName   string
	ClusterSize    int
	SampleEmailIDs []int64
	Description    string
	Reasoning      string
	Status         ProposalStatus
	CreatedAt      time.Time
}

// Cluster is an ephemeral group of uncertain emails found by the discovery
// engine. Clusters are never persisted.
type Cluster struct {
	ID          int
	Size        int
	MemberIDs   []int64
	TopTerms    []string
	SampleIDs   []int64
	LabelCounts map[string]int
}

// DominantShare returns the existing category that accounts for the largest
// fraction of cluster members, and that fraction.
func (c *Cluster) DominantShare() (string, float64) {
	if c.Size == 0 || len(c.LabelCounts) == 0 {
		return "", 0
	}
	var dominant string
	var count int
	for label, n := range c.LabelCounts {
		if n > count || (n == count && label < dominant) {
			dominant = label
			count = n
		}
	}
	return dominant, float64(count) / float64(c.Size)
}

// StageStatus tags the outcome of one orchestrator stage.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// StageResult is the tagged outcome of a single stage within a cycle.
// Failed stages carry the cause; skipped stages carry the reason.
type StageResult struct {
	Stage  string
	Status StageStatus
	Reason string
	Err    error
}

// CycleSummary is the structured report the orchestrator always emits,
// even for a fully degraded cycle.
type CycleSummary struct {
	StartedAt        time.Time
	NewEmails        int
	Classified       int
	Uncertain        int
	Proposals        int
	Retrained        bool
	Accuracy         *float64
	PreviousAccuracy *float64
	Stages           []StageResult
}
