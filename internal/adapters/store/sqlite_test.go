package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/core"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertEmail(t *testing.T, s *SQLiteStore, account, providerID, subject string) int64 {
	t.Helper()
	email := &core.Email{
		ProviderID:   providerID,
		AccountEmail: account,
		From:         "sender@example.com",
		Subject:      subject,
		Body:         "body of " + subject,
	}
	inserted, err := s.InsertEmail(context.Background(), email)
	require.NoError(t, err)
	require.True(t, inserted)
	return email.ID
}

func TestInsertEmailIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := insertEmail(t, s, "a@example.com", "m1", "hello")
	assert.NotZero(t, id)

	// Same (account, provider id) is a no-op.
	dup := &core.Email{ProviderID: "m1", AccountEmail: "a@example.com", Subject: "hello again"}
	inserted, err := s.InsertEmail(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	total, err := s.TotalEmailCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// Same provider id under another account is a different message.
	other := &core.Email{ProviderID: "m1", AccountEmail: "b@example.com", Subject: "hello"}
	inserted, err = s.InsertEmail(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestUpsertLabelReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := insertEmail(t, s, "a@example.com", "m1", "order update")

	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id, "shopping_orders", 0.7, core.SourceModel)))
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id, "marketing_promo", 0.9, core.SourceManual)))

	count, err := s.LabeledCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	labeled, err := s.LabeledEmails(ctx)
	require.NoError(t, err)
	require.Len(t, labeled, 1)
	assert.Equal(t, "marketing_promo", labeled[0].Category)
	assert.Equal(t, core.SourceManual, labeled[0].Source)
	assert.InDelta(t, 0.9, labeled[0].Confidence, 1e-9)
}

func TestUnlabeledEmails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1 := insertEmail(t, s, "a@example.com", "m1", "first")
	insertEmail(t, s, "a@example.com", "m2", "second")
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id1, "personal", 1.0, core.SourceManual)))

	unlabeled, err := s.UnlabeledEmails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unlabeled, 1)
	assert.Equal(t, "second", unlabeled[0].Subject)

	n, err := s.UnlabeledCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmailsByIDsIncludesUnlabeled(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1 := insertEmail(t, s, "a@example.com", "m1", "labeled one")
	id2 := insertEmail(t, s, "a@example.com", "m2", "unlabeled one")
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id1, "travel", 0.4, core.SourceModel)))

	out, err := s.EmailsByIDs(ctx, []int64{id1, id2})
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[int64]core.LabeledEmail{}
	for _, le := range out {
		byID[le.ID] = le
	}
	assert.Equal(t, "travel", byID[id1].Category)
	assert.Empty(t, byID[id2].Category)

	empty, err := s.EmailsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestLowConfidenceEmails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1 := insertEmail(t, s, "a@example.com", "m1", "shaky")
	id2 := insertEmail(t, s, "a@example.com", "m2", "confident")
	id3 := insertEmail(t, s, "a@example.com", "m3", "shakier")
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id1, "x", 0.45, core.SourceModel)))
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id2, "x", 0.95, core.SourceModel)))
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id3, "x", 0.2, core.SourceModel)))

	out, err := s.LowConfidenceEmails(ctx, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Least confident first.
	assert.Equal(t, id3, out[0].ID)
	assert.Equal(t, id1, out[1].ID)
}

func TestLabelsByProviderIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id := insertEmail(t, s, "a@example.com", "m1", "one")
	insertEmail(t, s, "a@example.com", "m2", "never labeled")
	require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id, "events_calendar", 0.8, core.SourceLLM)))

	out, err := s.LabelsByProviderIDs(ctx, []string{"m1", "m2", "missing"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "events_calendar", out["m1"].Category)
	assert.Equal(t, core.SourceLLM, out["m1"].Source)
}

func TestLabelSummaryAndClear(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, category := range []string{"personal", "personal", "travel"} {
		id := insertEmail(t, s, "a@example.com", string(rune('a'+i)), "s")
		require.NoError(t, s.UpsertLabel(ctx, core.NewLabel(id, category, 1.0, core.SourceManual)))
	}

	summary, err := s.LabelSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"personal": 2, "travel": 1}, summary)

	deleted, err := s.ClearLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	summary, err = s.LabelSummary(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestModelVersionLineage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	latest, err := s.LatestModelVersion(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	v1 := &core.ModelVersion{
		Version: "v1_20260101_000000", ModelPath: "/m/v1.gob",
		NumSamples: 100, NumCategories: 5, Accuracy: 0.8, MacroF1: 0.78,
		ReportJSON: "{}", Trigger: core.TriggerManual,
	}
	require.NoError(t, s.AppendModelVersion(ctx, v1))
	assert.NotZero(t, v1.ID)

	v2 := &core.ModelVersion{
		Version: "v2_20260102_000000", Trigger: core.TriggerAuto, InsufficientData: true,
		ReportJSON: "{}",
	}
	require.NoError(t, s.AppendModelVersion(ctx, v2))

	latest, err = s.LatestModelVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "v2_20260102_000000", latest.Version)
	assert.True(t, latest.InsufficientData)
	assert.Equal(t, core.TriggerAuto, latest.Trigger)

	count, err := s.ModelVersionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	history, err := s.ModelVersionHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v2_20260102_000000", history[0].Version)
}

func TestProposalLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &core.CategoryProposal{
		ProposedName:   "crypto_newsletter",
		ClusterSize:    25,
		SampleEmailIDs: []int64{1, 2, 3},
		Description:    "Cryptocurrency newsletters",
		Reasoning:      "distinct vocabulary",
	}
	require.NoError(t, s.AppendProposal(ctx, p))
	require.NotZero(t, p.ID)

	pending, err := s.PendingProposals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, core.ProposalPending, pending[0].Status)
	assert.Equal(t, []int64{1, 2, 3}, pending[0].SampleEmailIDs)

	require.NoError(t, s.UpdateProposalStatus(ctx, p.ID, core.ProposalAccepted))

	pending, err = s.PendingProposals(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Status transitions are one-way.
	err = s.UpdateProposalStatus(ctx, p.ID, core.ProposalRejected)
	assert.Error(t, err)

	// Only terminal statuses are valid targets.
	err = s.UpdateProposalStatus(ctx, p.ID, core.ProposalPending)
	assert.Error(t, err)
}
