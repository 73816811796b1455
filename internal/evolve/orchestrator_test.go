package evolve

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/perry/email-evolve/internal/classifier"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/discovery"
	"github.com/perry/email-evolve/internal/storetest"
	"github.com/perry/email-evolve/internal/training"
)

type fakeAccounts struct {
	accounts []string
	err      error
	calls    int
}

func (a *fakeAccounts) Accounts(ctx context.Context) ([]string, error) {
	a.calls++
	return a.accounts, a.err
}

type fakeMail struct {
	emails map[string][]core.Email
	err    error
}

func (m *fakeMail) Fetch(ctx context.Context, account string) ([]core.Email, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.emails[account], nil
}

type fakeProvider struct {
	model core.Model
	err   error
}

func (p *fakeProvider) LoadLatest() (core.Model, error) { return p.model, p.err }

type fakeOracle struct{}

func (o *fakeOracle) ProposeCategory(ctx context.Context, req *core.NamingRequest) (*core.NamingResponse, error) {
	return &core.NamingResponse{NewCategory: core.NoNewCategory}, nil
}

type fixture struct {
	store    *storetest.MemStore
	accounts *fakeAccounts
	mail     *fakeMail
	orch     *Orchestrator
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	store := storetest.New()
	accounts := &fakeAccounts{}
	mail := &fakeMail{emails: map[string][]core.Email{}}

	evolveCfg := config.EvolveConfig{
		MarginThreshold:        0.15,
		ConfidenceThreshold:    0.5,
		MinClusterSize:         20,
		MinNewLabelsForRetrain: 50,
		BatchSize:              100,
		HomogeneityThreshold:   0.8,
		RegressionThreshold:    0.05,
	}
	trainingCfg := config.TrainingConfig{
		MaxVocab:       500,
		NumTrees:       10,
		TestFraction:   0.2,
		MinEvalSamples: 10,
		ModelDir:       t.TempDir(),
	}
	discoveryCfg := config.DiscoveryConfig{
		Eps: 0.5, MinSamples: 10, MaxVocab: 500, TopTerms: 10, SampleCount: 3,
	}

	cls := classifier.New(store, &fakeProvider{err: core.ErrNoModel}, evolveCfg, logger)
	disc := discovery.New(store, &fakeOracle{}, config.DefaultTaxonomy(), evolveCfg, discoveryCfg, logger)
	trainer := training.New(store, trainingCfg, logger)

	return &fixture{
		store:    store,
		accounts: accounts,
		mail:     mail,
		orch:     New(store, accounts, mail, cls, disc, trainer, evolveCfg, logger),
	}
}

func stageStatus(s *core.CycleSummary, stage string) core.StageStatus {
	for _, r := range s.Stages {
		if r.Stage == stage {
			return r.Status
		}
	}
	return ""
}

func seedLabeled(store *storetest.MemStore, n int) {
	categories := []string{"shopping_orders", "job_interview"}
	for i := 0; i < n; i++ {
		store.AddLabeled(
			fmt.Sprintf("topic %d words describing the message body", i),
			categories[i%2], 0.9)
	}
}

func TestRunCycleDegraded(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	f.accounts.err = fmt.Errorf("token directory unreadable")

	summary := f.orch.RunCycle(context.Background())
	require.NotNil(t, summary)

	assert.Equal(t, core.StageFailed, stageStatus(summary, StageIngest))
	assert.Equal(t, core.StageOK, stageStatus(summary, StageClassify)) // no model is a logged skip, not an error
	assert.Equal(t, core.StageSkipped, stageStatus(summary, StageDiscover))
	assert.Equal(t, core.StageSkipped, stageStatus(summary, StageRetrain))
	assert.Equal(t, core.StageSkipped, stageStatus(summary, StageCompare))
	assert.Zero(t, summary.NewEmails)
	assert.False(t, summary.Retrained)
}

func TestIngest(t *testing.T) {
	t.Run("no accounts skips", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		summary := f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageSkipped, stageStatus(summary, StageIngest))
	})

	t.Run("inserts and deduplicates", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		f.accounts.accounts = []string{"a@example.com"}
		f.mail.emails["a@example.com"] = []core.Email{
			{ProviderID: "m1", AccountEmail: "a@example.com", Subject: "one"},
			{ProviderID: "m2", AccountEmail: "a@example.com", Subject: "two"},
		}

		summary := f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageOK, stageStatus(summary, StageIngest))
		assert.Equal(t, 2, summary.NewEmails)

		// The same batch again inserts nothing.
		summary = f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageOK, stageStatus(summary, StageIngest))
		assert.Zero(t, summary.NewEmails)
	})

	t.Run("partial fetch failure with no inserts fails", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		f.accounts.accounts = []string{"a@example.com"}
		f.mail.err = fmt.Errorf("spool unreadable")

		summary := f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageFailed, stageStatus(summary, StageIngest))
	})
}

func TestRetrainGate(t *testing.T) {
	t.Run("one short of the threshold skips", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		seedLabeled(f.store, 49)

		summary := f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageSkipped, stageStatus(summary, StageRetrain))
		assert.False(t, summary.Retrained)
	})

	t.Run("threshold reached retrains", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		seedLabeled(f.store, 50)

		summary := f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageOK, stageStatus(summary, StageRetrain))
		assert.True(t, summary.Retrained)
		require.NotNil(t, summary.Accuracy)

		count, err := f.store.ModelVersionCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("gate counts labels since previous version", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		seedLabeled(f.store, 60)
		require.NoError(t, f.store.AppendModelVersion(context.Background(), &core.ModelVersion{
			Version: "v1_20260101_000000", NumSamples: 60, Accuracy: 0.9,
		}))

		// 0 net new labels against the recorded version.
		summary := f.orch.RunCycle(context.Background())
		assert.Equal(t, core.StageSkipped, stageStatus(summary, StageRetrain))
	})
}

func TestCompareRegression(t *testing.T) {
	run := func(previous, current float64) (warned bool, summary *core.CycleSummary) {
		zapCore, logs := observer.New(zap.WarnLevel)
		f := newFixture(t, zap.New(zapCore))

		acc := current
		summary = &core.CycleSummary{Retrained: true, Accuracy: &acc}
		f.orch.compare(summary, &core.ModelVersion{Version: "v1", Accuracy: previous, NumSamples: 50})

		for _, entry := range logs.All() {
			if entry.Message == "Accuracy dropped against previous version" {
				warned = true
			}
		}
		return warned, summary
	}

	t.Run("drop within threshold does not warn", func(t *testing.T) {
		warned, summary := run(0.90, 0.86)
		assert.False(t, warned)
		assert.Equal(t, core.StageOK, stageStatus(summary, StageCompare))
		require.NotNil(t, summary.PreviousAccuracy)
		assert.Equal(t, 0.90, *summary.PreviousAccuracy)
	})

	t.Run("drop past threshold warns", func(t *testing.T) {
		warned, _ := run(0.90, 0.84)
		assert.True(t, warned)
	})

	t.Run("drop of exactly the threshold does not warn", func(t *testing.T) {
		warned, _ := run(0.05, 0.0)
		assert.False(t, warned)
	})

	t.Run("drop just past the threshold warns", func(t *testing.T) {
		warned, _ := run(0.051, 0.0)
		assert.True(t, warned)
	})

	t.Run("improvement does not warn", func(t *testing.T) {
		warned, _ := run(0.80, 0.95)
		assert.False(t, warned)
	})

	t.Run("insufficient previous skips", func(t *testing.T) {
		f := newFixture(t, zap.NewNop())
		acc := 0.9
		summary := &core.CycleSummary{Retrained: true, Accuracy: &acc}
		f.orch.compare(summary, &core.ModelVersion{Version: "v1", InsufficientData: true})
		assert.Equal(t, core.StageSkipped, stageStatus(summary, StageCompare))
	})
}

func TestFormatSummaryAlwaysRenders(t *testing.T) {
	s := &core.CycleSummary{
		StartedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Stages: []core.StageResult{
			{Stage: StageIngest, Status: core.StageFailed, Err: fmt.Errorf("boom")},
			{Stage: StageRetrain, Status: core.StageSkipped, Reason: "2 new labels, need 50"},
		},
	}
	out := FormatSummary(s)
	assert.Contains(t, out, "Evolution Cycle Summary")
	assert.Contains(t, out, "[ingest] FAILED: boom")
	assert.Contains(t, out, "[retrain] skipped: 2 new labels, need 50")
	assert.Contains(t, out, "Retrained:             No")
}

func TestSchedulerInvalidInterval(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	s := NewScheduler(f.orch, 0, zap.NewNop())
	assert.Error(t, s.Run(context.Background()))
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	f := newFixture(t, zap.NewNop())
	s := NewScheduler(f.orch, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, f.accounts.calls, 1)
}
