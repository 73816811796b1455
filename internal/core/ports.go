package core

import (
	"context"
)

// Store defines the persistence contract the evolution engine depends on.
// Implementations must allow concurrent readers while a long write
// transaction is in progress.
type Store interface {
	// InsertEmail inserts a message if absent. Returns true if a row was
	// actually inserted, false if it was a duplicate.
	InsertEmail(ctx context.Context, email *Email) (bool, error)

	// UpsertLabel inserts or replaces the label for an email.
	UpsertLabel(ctx context.Context, label Label) error

	// ClearLabels deletes all labels. Used when re-labeling under a new taxonomy.
	ClearLabels(ctx context.Context) (int64, error)

	// UnlabeledEmails fetches up to limit emails with no label, most recent first.
	UnlabeledEmails(ctx context.Context, limit int) ([]Email, error)

	// LabeledEmails fetches every labeled email for training.
	LabeledEmails(ctx context.Context) ([]LabeledEmail, error)

	// EmailsByIDs fetches emails (with labels, if any) by internal id.
	EmailsByIDs(ctx context.Context, ids []int64) ([]LabeledEmail, error)

	// LowConfidenceEmails fetches labeled emails below the confidence
	// threshold, least confident first.
	LowConfidenceEmails(ctx context.Context, threshold float64, limit int) ([]LabeledEmail, error)

	// LabelsByProviderIDs is the batch lookup used by the serving API.
	LabelsByProviderIDs(ctx context.Context, providerIDs []string) (map[string]Label, error)

	LabeledCount(ctx context.Context) (int, error)
	UnlabeledCount(ctx context.Context) (int, error)
	TotalEmailCount(ctx context.Context) (int, error)
	LabelSummary(ctx context.Context) (map[string]int, error)

	// AppendModelVersion records a training run. The table is append-only.
	AppendModelVersion(ctx context.Context, version *ModelVersion) error
	LatestModelVersion(ctx context.Context) (*ModelVersion, error)
	ModelVersionCount(ctx context.Context) (int, error)
	ModelVersionHistory(ctx context.Context, limit int) ([]ModelVersion, error)

	AppendProposal(ctx context.Context, proposal *CategoryProposal) error
	PendingProposals(ctx context.Context) ([]CategoryProposal, error)

	// UpdateProposalStatus transitions a pending proposal to accepted or
	// rejected. Transitions out of a terminal status are rejected.
	UpdateProposalStatus(ctx context.Context, id int64, status ProposalStatus) error

	Close() error
}

// NamingRequest carries everything the oracle needs to judge a cluster.
type NamingRequest struct {
	ExistingCategories []string
	TopTerms           []string
	LabelCounts        map[string]int
	ClusterSize        int
	Samples            []Email
}

// NoNewCategory is the sentinel the oracle returns when a cluster belongs
// in existing categories.
const NoNewCategory = "no_new_category"

// NamingResponse is the oracle's structured verdict for one cluster.
type NamingResponse struct {
	NewCategory string `json:"new_category"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
}

// Declined reports whether the oracle decided no new category is needed.
func (r *NamingResponse) Declined() bool {
	return r.NewCategory == "" || r.NewCategory == NoNewCategory
}

// NamingOracle is the external text-generation collaborator that proposes
// category names for clusters of ambiguous emails.
type NamingOracle interface {
	ProposeCategory(ctx context.Context, req *NamingRequest) (*NamingResponse, error)
}

// AccountSource lists already-authenticated accounts. Implementations must
// never launch an interactive enrollment flow.
type AccountSource interface {
	Accounts(ctx context.Context) ([]string, error)
}

// MailSource pulls new normalized messages for one account.
type MailSource interface {
	Fetch(ctx context.Context, account string) ([]Email, error)
}

// Model is a trained classifier artifact.
type Model interface {
	// Classes returns the category names in probability-vector order.
	Classes() []string

	// PredictProba returns one probability vector per input text, each
	// summing to 1 over Classes().
	PredictProba(texts []string) ([][]float64, error)
}

// ModelProvider loads the current live model. It returns ErrNoModel when
// no trained artifact exists yet.
type ModelProvider interface {
	LoadLatest() (Model, error)
}
