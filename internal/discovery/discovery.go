// Package discovery implements clustering-based category discovery: it
// groups uncertain emails, filters out clusters that are just a
// low-confidence existing category, and asks the naming oracle whether the
// rest deserve a new category.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/ml"
)

// Engine is the category discovery engine.
type Engine struct {
	store    core.Store
	oracle   core.NamingOracle
	taxonomy *config.Taxonomy
	logger   *zap.Logger
	evolve   config.EvolveConfig
	cfg      config.DiscoveryConfig
}

// New creates a discovery engine.
func New(
	store core.Store,
	oracle core.NamingOracle,
	taxonomy *config.Taxonomy,
	evolve config.EvolveConfig,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:    store,
		oracle:   oracle,
		taxonomy: taxonomy,
		logger:   logger,
		evolve:   evolve,
		cfg:      cfg,
	}
}

// Discover clusters the given uncertain emails and persists a pending
// proposal for every cluster the oracle names. Below twice the minimum
// cluster size it does nothing: clustering that few points is unreliable
// and wastes oracle calls.
func (e *Engine) Discover(ctx context.Context, uncertainIDs []int64) ([]core.CategoryProposal, error) {
	minCandidates := e.evolve.MinClusterSize * 2
	if len(uncertainIDs) < minCandidates {
		e.logger.Info("Too few uncertain emails for discovery",
			zap.Int("uncertain", len(uncertainIDs)),
			zap.Int("required", minCandidates))
		return nil, nil
	}

	clusters, err := e.Cluster(ctx, uncertainIDs)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		e.logger.Info("No meaningful clusters found")
		return nil, nil
	}
	return e.Propose(ctx, clusters)
}

// Cluster groups uncertain emails over TF-IDF cosine distances. Density
// clustering runs first; if it finds no structure, a fixed-k partition
// clustering is tried instead.
func (e *Engine) Cluster(ctx context.Context, emailIDs []int64) ([]core.Cluster, error) {
	emails, err := e.store.EmailsByIDs(ctx, emailIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch uncertain emails: %w", err)
	}
	if len(emails) < e.evolve.MinClusterSize {
		e.logger.Info("Skipping clustering",
			zap.Int("emails", len(emails)),
			zap.Int("min", e.evolve.MinClusterSize))
		return nil, nil
	}

	e.logger.Info("Clustering uncertain emails", zap.Int("count", len(emails)))

	texts := make([]string, len(emails))
	for i := range emails {
		texts[i] = emails[i].FeatureText()
	}

	vectorizer := ml.NewVectorizer(e.cfg.MaxVocab)
	tfidf := vectorizer.FitTransform(texts)
	features := vectorizer.FeatureNames()

	dist := ml.CosineDistances(tfidf)
	assignments := ml.DBSCAN(dist, e.cfg.Eps, e.cfg.MinSamples)

	unique := make(map[int]struct{})
	for _, a := range assignments {
		if a != ml.Noise {
			unique[a] = struct{}{}
		}
	}

	if len(unique) == 0 {
		k := len(texts) / 20
		if k > 5 {
			k = 5
		}
		if k < 2 {
			e.logger.Info("Not enough emails for partition clustering")
			return nil, nil
		}
		e.logger.Info("Density clustering found no clusters, falling back to k-means",
			zap.Int("k", k))
		assignments = ml.KMeans(tfidf, k, 42, 10)
		unique = make(map[int]struct{})
		for _, a := range assignments {
			unique[a] = struct{}{}
		}
	}

	ids := make([]int, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var clusters []core.Cluster
	for _, clusterID := range ids {
		var rows []int
		for i, a := range assignments {
			if a == clusterID {
				rows = append(rows, i)
			}
		}
		if len(rows) < e.evolve.MinClusterSize {
			continue
		}

		// Descriptive fingerprint: terms with the highest mean TF-IDF
		// weight across cluster members.
		centroid := ml.Centroid(tfidf, rows)
		type termWeight struct {
			term   string
			weight float64
		}
		weights := make([]termWeight, len(centroid))
		for j, w := range centroid {
			weights[j] = termWeight{term: features[j], weight: w}
		}
		sort.Slice(weights, func(i, j int) bool {
			if weights[i].weight != weights[j].weight {
				return weights[i].weight > weights[j].weight
			}
			return weights[i].term < weights[j].term
		})
		topN := e.cfg.TopTerms
		if topN > len(weights) {
			topN = len(weights)
		}
		topTerms := make([]string, topN)
		for i := 0; i < topN; i++ {
			topTerms[i] = weights[i].term
		}

		nearest := ml.NearestToCentroid(tfidf, rows, e.cfg.SampleCount)
		sampleIDs := make([]int64, len(nearest))
		for i, n := range nearest {
			sampleIDs[i] = emails[rows[n]].ID
		}

		memberIDs := make([]int64, len(rows))
		labelCounts := make(map[string]int)
		for i, r := range rows {
			memberIDs[i] = emails[r].ID
			if emails[r].Category != "" {
				labelCounts[emails[r].Category]++
			}
		}

		clusters = append(clusters, core.Cluster{
			ID:          clusterID,
			Size:        len(rows),
			MemberIDs:   memberIDs,
			TopTerms:    topTerms,
			SampleIDs:   sampleIDs,
			LabelCounts: labelCounts,
		})
	}

	e.logger.Info("Clustering complete",
		zap.Int("clusters", len(clusters)),
		zap.Int("min_size", e.evolve.MinClusterSize))
	return clusters, nil
}

// Propose asks the naming oracle about each novel cluster and persists every
// accepted proposal as pending. A cluster dominated by one existing category
// is never proposed: it is low-confidence noise inside a category the system
// already knows. Oracle failures drop that cluster only.
func (e *Engine) Propose(ctx context.Context, clusters []core.Cluster) ([]core.CategoryProposal, error) {
	var proposals []core.CategoryProposal

	for i := range clusters {
		cluster := &clusters[i]

		if dominant, share := cluster.DominantShare(); share > e.evolve.HomogeneityThreshold {
			e.logger.Info("Skipping homogeneous cluster",
				zap.Int("cluster", cluster.ID),
				zap.String("dominant", dominant),
				zap.Float64("share", share))
			continue
		}

		samples, err := e.store.EmailsByIDs(ctx, cluster.SampleIDs)
		if err != nil {
			e.logger.Warn("Failed to fetch cluster samples",
				zap.Int("cluster", cluster.ID), zap.Error(err))
			continue
		}
		sampleEmails := make([]core.Email, len(samples))
		for j := range samples {
			sampleEmails[j] = samples[j].Email
		}

		resp, err := e.oracle.ProposeCategory(ctx, &core.NamingRequest{
			ExistingCategories: e.taxonomy.Categories(),
			TopTerms:           cluster.TopTerms,
			LabelCounts:        cluster.LabelCounts,
			ClusterSize:        cluster.Size,
			Samples:            sampleEmails,
		})
		if err != nil {
			e.logger.Warn("Naming oracle failed for cluster",
				zap.Int("cluster", cluster.ID), zap.Error(err))
			continue
		}
		if resp.Declined() {
			e.logger.Info("Oracle says no new category needed",
				zap.Int("cluster", cluster.ID),
				zap.String("reasoning", resp.Reasoning))
			continue
		}

		proposal := core.CategoryProposal{
			ProposedName:   resp.NewCategory,
			ClusterSize:    cluster.Size,
			SampleEmailIDs: cluster.SampleIDs,
			Description:    resp.Description,
			Reasoning:      resp.Reasoning,
			Status:         core.ProposalPending,
		}
		if err := e.store.AppendProposal(ctx, &proposal); err != nil {
			e.logger.Error("Failed to persist category proposal",
				zap.String("name", proposal.ProposedName), zap.Error(err))
			continue
		}

		e.logger.Info("Proposed new category",
			zap.String("name", proposal.ProposedName),
			zap.Int("cluster_size", proposal.ClusterSize))
		proposals = append(proposals, proposal)
	}
	return proposals, nil
}

// Pending lists unreviewed proposals.
func (e *Engine) Pending(ctx context.Context) ([]core.CategoryProposal, error) {
	return e.store.PendingProposals(ctx)
}

// Resolve transitions a pending proposal to accepted or rejected. Accepting
// is informational here: the taxonomy update and retrain are a manual
// configuration change.
func (e *Engine) Resolve(ctx context.Context, id int64, status core.ProposalStatus) error {
	if status != core.ProposalAccepted && status != core.ProposalRejected {
		return fmt.Errorf("invalid proposal resolution %q", status)
	}
	return e.store.UpdateProposalStatus(ctx, id, status)
}
