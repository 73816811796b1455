package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
)

// historyLimit bounds the model version trend returned by the health endpoint.
const historyLimit = 5

// Server exposes classification results over a local read-only HTTP API.
// It never mutates the store.
type Server struct {
	store    core.Store
	taxonomy *config.Taxonomy
	cache    *LabelCache
	cfg      config.APIConfig
	logger   *zap.Logger
}

// NewServer creates a new API server
func NewServer(store core.Store, taxonomy *config.Taxonomy, cfg config.APIConfig, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		taxonomy: taxonomy,
		cache:    NewLabelCache(cfg.CacheTTL, cfg.CacheCleanupFreq, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.cache.Stop()
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/health", s.instrument("/api/health", s.handleHealth))
	mux.Handle("/api/classify", s.instrument("/api/classify", s.handleClassify))
	mux.Handle("/api/labels", s.instrument("/api/labels", s.handleLabels))
	mux.Handle("/api/summary", s.instrument("/api/summary", s.handleSummary))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(path string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		recordHTTPRequestDuration(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

type healthResponse struct {
	Status        string         `json:"status"`
	ModelVersion  *string        `json:"model_version"`
	ModelAccuracy *float64       `json:"model_accuracy"`
	TotalEmails   int            `json:"total_emails"`
	TotalLabeled  int            `json:"total_labeled"`
	Unlabeled     int            `json:"unlabeled"`
	History       []historyEntry `json:"history"`
}

type historyEntry struct {
	Version    string  `json:"version"`
	Accuracy   float64 `json:"accuracy"`
	NumSamples int     `json:"num_samples"`
	CreatedAt  string  `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	resp := healthResponse{Status: "ok", History: []historyEntry{}}

	latest, err := s.store.LatestModelVersion(ctx)
	if err != nil {
		s.serverError(w, "failed to load model version", err)
		return
	}
	if latest != nil {
		resp.ModelVersion = &latest.Version
		if !latest.InsufficientData {
			resp.ModelAccuracy = &latest.Accuracy
		}
	}

	if resp.TotalEmails, err = s.store.TotalEmailCount(ctx); err != nil {
		s.serverError(w, "failed to count emails", err)
		return
	}
	if resp.TotalLabeled, err = s.store.LabeledCount(ctx); err != nil {
		s.serverError(w, "failed to count labels", err)
		return
	}
	resp.Unlabeled = resp.TotalEmails - resp.TotalLabeled

	history, err := s.store.ModelVersionHistory(ctx, historyLimit)
	if err != nil {
		s.serverError(w, "failed to load model history", err)
		return
	}
	for _, v := range history {
		resp.History = append(resp.History, historyEntry{
			Version:    v.Version,
			Accuracy:   v.Accuracy,
			NumSamples: v.NumSamples,
			CreatedAt:  v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type classifyRequest struct {
	ProviderIDs []string `json:"provider_ids"`
}

type classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Group      string  `json:"group"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must contain 'provider_ids' array")
		return
	}
	if req.ProviderIDs == nil {
		s.writeError(w, http.StatusBadRequest, "request body must contain 'provider_ids' array")
		return
	}

	ids := req.ProviderIDs
	if len(ids) > s.cfg.MaxBatchIDs {
		ids = ids[:s.cfg.MaxBatchIDs]
	}

	classifications := make(map[string]classification, len(ids))
	var uncached []string
	for _, id := range ids {
		if label, ok := s.cache.Get(id); ok {
			classifications[id] = s.toClassification(label)
		} else {
			uncached = append(uncached, id)
		}
	}

	if len(uncached) > 0 {
		labels, err := s.store.LabelsByProviderIDs(r.Context(), uncached)
		if err != nil {
			s.serverError(w, "failed to look up labels", err)
			return
		}
		for id, label := range labels {
			s.cache.Set(id, label)
			classifications[id] = s.toClassification(label)
		}
	}
	incrementClassifyLookup("hit", len(classifications))
	incrementClassifyLookup("miss", len(ids)-len(classifications))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"classifications": classifications,
	})
}

func (s *Server) toClassification(label core.Label) classification {
	return classification{
		Label:      label.Category,
		Confidence: label.Confidence,
		Source:     string(label.Source),
		Group:      string(s.taxonomy.Group(label.Category)),
	}
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	groups := map[string][]string{
		string(config.GroupAction): s.taxonomy.GroupMembers(config.GroupAction),
		string(config.GroupInfo):   s.taxonomy.GroupMembers(config.GroupInfo),
		string(config.GroupNoise):  s.taxonomy.GroupMembers(config.GroupNoise),
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"labels":       s.taxonomy.Categories(),
		"descriptions": s.taxonomy.Descriptions(),
		"groups":       groups,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	summary, err := s.store.LabelSummary(ctx)
	if err != nil {
		s.serverError(w, "failed to load label summary", err)
		return
	}
	total, err := s.store.TotalEmailCount(ctx)
	if err != nil {
		s.serverError(w, "failed to count emails", err)
		return
	}
	unlabeled, err := s.store.UnlabeledCount(ctx)
	if err != nil {
		s.serverError(w, "failed to count unlabeled emails", err)
		return
	}

	groupCounts := map[string]int{
		string(config.GroupAction): 0,
		string(config.GroupInfo):   0,
		string(config.GroupNoise):  0,
		string(config.GroupOther):  0,
	}
	labeled := 0
	for category, count := range summary {
		groupCounts[string(s.taxonomy.Group(category))] += count
		labeled += count
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"labels":        summary,
		"groups":        groupCounts,
		"total_emails":  total,
		"total_labeled": labeled,
		"unlabeled":     unlabeled,
	})
}

func (s *Server) serverError(w http.ResponseWriter, message string, err error) {
	s.logger.Error(message, zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, message)
}
