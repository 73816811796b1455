// Package storetest provides an in-memory Store used by tests across the
// engine packages. Behavior mirrors the SQL stores: idempotent inserts,
// upsert labels, append-only model versions and pending-only proposal
// transitions.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/perry/email-evolve/internal/core"
)

// MemStore implements core.Store over plain maps.
type MemStore struct {
	mu sync.Mutex

	emails    map[int64]core.Email
	labels    map[int64]core.Label
	versions  []core.ModelVersion
	proposals []core.CategoryProposal

	nextEmailID    int64
	nextProposalID int64

	// Err, when set, is returned by every method. Lets tests simulate a
	// failing backend.
	Err error
}

// New creates an empty in-memory store.
func New() *MemStore {
	return &MemStore{
		emails:         make(map[int64]core.Email),
		labels:         make(map[int64]core.Label),
		nextEmailID:    1,
		nextProposalID: 1,
	}
}

// AddLabeled seeds one labeled email and returns its id.
func (s *MemStore) AddLabeled(text, category string, confidence float64) int64 {
	email := core.Email{Subject: text}
	_, _ = s.InsertEmail(context.Background(), &email)
	_ = s.UpsertLabel(context.Background(), core.NewLabel(email.ID, category, confidence, core.SourceManual))
	return email.ID
}

// AddUnlabeled seeds one unlabeled email and returns its id.
func (s *MemStore) AddUnlabeled(text string) int64 {
	email := core.Email{Subject: text}
	_, _ = s.InsertEmail(context.Background(), &email)
	return email.ID
}

func (s *MemStore) InsertEmail(ctx context.Context, email *core.Email) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for _, e := range s.emails {
		if e.AccountEmail == email.AccountEmail && e.ProviderID == email.ProviderID && e.ProviderID != "" {
			return false, nil
		}
	}
	email.ID = s.nextEmailID
	s.nextEmailID++
	email.CreatedAt = time.Now()
	s.emails[email.ID] = *email
	return true, nil
}

func (s *MemStore) UpsertLabel(ctx context.Context, label core.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.emails[label.EmailID]; !ok {
		return fmt.Errorf("email %d does not exist", label.EmailID)
	}
	label.CreatedAt = time.Now()
	s.labels[label.EmailID] = label
	return nil
}

func (s *MemStore) ClearLabels(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	n := int64(len(s.labels))
	s.labels = make(map[int64]core.Label)
	return n, nil
}

func (s *MemStore) sortedEmailIDs() []int64 {
	ids := make([]int64, 0, len(s.emails))
	for id := range s.emails {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *MemStore) UnlabeledEmails(ctx context.Context, limit int) ([]core.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []core.Email
	for _, id := range s.sortedEmailIDs() {
		if _, labeled := s.labels[id]; labeled {
			continue
		}
		out = append(out, s.emails[id])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) labeledEmail(id int64) core.LabeledEmail {
	label := s.labels[id]
	return core.LabeledEmail{
		Email:      s.emails[id],
		Category:   label.Category,
		Confidence: label.Confidence,
		Source:     label.Source,
	}
}

func (s *MemStore) LabeledEmails(ctx context.Context) ([]core.LabeledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []core.LabeledEmail
	for _, id := range s.sortedEmailIDs() {
		if _, labeled := s.labels[id]; labeled {
			out = append(out, s.labeledEmail(id))
		}
	}
	return out, nil
}

func (s *MemStore) EmailsByIDs(ctx context.Context, ids []int64) ([]core.LabeledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []core.LabeledEmail
	for _, id := range ids {
		if _, ok := s.emails[id]; ok {
			out = append(out, s.labeledEmail(id))
		}
	}
	return out, nil
}

func (s *MemStore) LowConfidenceEmails(ctx context.Context, threshold float64, limit int) ([]core.LabeledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []core.LabeledEmail
	for _, id := range s.sortedEmailIDs() {
		label, labeled := s.labels[id]
		if labeled && label.Confidence < threshold {
			out = append(out, s.labeledEmail(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence < out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) LabelsByProviderIDs(ctx context.Context, providerIDs []string) (map[string]core.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[string]core.Label)
	for _, pid := range providerIDs {
		for id, e := range s.emails {
			if e.ProviderID == pid {
				if label, ok := s.labels[id]; ok {
					out[pid] = label
				}
			}
		}
	}
	return out, nil
}

func (s *MemStore) LabeledCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.labels), nil
}

func (s *MemStore) UnlabeledCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.emails) - len(s.labels), nil
}

func (s *MemStore) TotalEmailCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.emails), nil
}

func (s *MemStore) LabelSummary(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[string]int)
	for _, label := range s.labels {
		out[label.Category]++
	}
	return out, nil
}

func (s *MemStore) AppendModelVersion(ctx context.Context, version *core.ModelVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	version.ID = int64(len(s.versions) + 1)
	version.CreatedAt = time.Now()
	s.versions = append(s.versions, *version)
	return nil
}

func (s *MemStore) LatestModelVersion(ctx context.Context) (*core.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.versions) == 0 {
		return nil, nil
	}
	v := s.versions[len(s.versions)-1]
	return &v, nil
}

func (s *MemStore) ModelVersionCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.versions), nil
}

func (s *MemStore) ModelVersionHistory(ctx context.Context, limit int) ([]core.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]core.ModelVersion, 0, limit)
	for i := len(s.versions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.versions[i])
	}
	return out, nil
}

func (s *MemStore) AppendProposal(ctx context.Context, proposal *core.CategoryProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	proposal.ID = s.nextProposalID
	s.nextProposalID++
	proposal.CreatedAt = time.Now()
	s.proposals = append(s.proposals, *proposal)
	return nil
}

func (s *MemStore) PendingProposals(ctx context.Context) ([]core.CategoryProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []core.CategoryProposal
	for _, p := range s.proposals {
		if p.Status == core.ProposalPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemStore) UpdateProposalStatus(ctx context.Context, id int64, status core.ProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i := range s.proposals {
		if s.proposals[i].ID == id {
			if s.proposals[i].Status != core.ProposalPending {
				return fmt.Errorf("proposal %d is not pending", id)
			}
			s.proposals[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("proposal %d is not pending", id)
}

func (s *MemStore) Close() error { return nil }
