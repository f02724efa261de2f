package memory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// RiskResolver reports the risk tier of a tool for importance scoring. The
// registry satisfies this through a small adapter so the memory service does
// not depend on it.
type RiskResolver func(toolName string) models.RiskTier

// Service is the per-user experience store: it owns importance scoring,
// online clustering, profiles, and context assembly. Storage and
// nearest-neighbor live behind the MemoryBackend.
type Service struct {
	backend  ports.MemoryBackend
	embedder ports.EmbeddingService
	ids      ports.IDGenerator
	riskOf   RiskResolver
	wal      *WAL
	cfg      config.MemoryConfig
	logger   *slog.Logger

	stateMu  sync.Mutex
	clusters map[string][]*models.MemoryCluster
	profiles map[string]*models.UserProfile
	loaded   map[string]bool
}

func NewService(backend ports.MemoryBackend, embedder ports.EmbeddingService, ids ports.IDGenerator, riskOf RiskResolver, wal *WAL, cfg config.MemoryConfig, logger *slog.Logger) *Service {
	if riskOf == nil {
		riskOf = func(string) models.RiskTier { return models.RiskSafe }
	}
	return &Service{
		backend:  backend,
		embedder: embedder,
		ids:      ids,
		riskOf:   riskOf,
		wal:      wal,
		cfg:      cfg,
		logger:   logger,
		clusters: make(map[string][]*models.MemoryCluster),
		profiles: make(map[string]*models.UserProfile),
		loaded:   make(map[string]bool),
	}
}

// ensureState lazily rebuilds cluster centroids and the profile for a user
// from committed records.
func (s *Service) ensureState(ctx context.Context, userID string) {
	s.stateMu.Lock()
	if s.loaded[userID] {
		s.stateMu.Unlock()
		return
	}
	s.stateMu.Unlock()

	records, err := s.backend.ListByUser(ctx, userID, 0)
	if err != nil {
		// leave unloaded so a later call retries
		s.logger.Warn("cluster state rebuild failed", "user_id", userID, "error", err)
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.loaded[userID] {
		return
	}
	s.rebuildClusterState(userID, records)
	s.loaded[userID] = true
}

// Commit persists one completed turn as a memory record. Records are
// immutable after commit. On backend failure the record is spooled to the
// WAL and the commit still succeeds.
func (s *Service) Commit(ctx context.Context, userID string, turn *models.Turn) (string, error) {
	if userID == "" {
		return "", domain.NewDomainError(domain.ErrInvalidInput, "user id is required")
	}
	if turn == nil || turn.Utterance == "" {
		return "", domain.NewDomainError(domain.ErrEmptyContent, "turn utterance is required")
	}
	s.ensureState(ctx, userID)

	rec := models.NewMemoryRecord(s.ids.GenerateMemoryID(), userID, turn.Utterance, turn.Reply)
	rec.Success = turn.Success
	if turn.Plan != nil {
		rec.ToolName = turn.Plan.ToolName
	}

	novelty := 1.0
	if s.embedder != nil {
		if res, err := s.embedder.GenerateEmbedding(ctx, rec.Text()); err == nil {
			rec.SetEmbeddings(res.Embedding, &models.EmbeddingsInfo{Model: res.Model, Dimensions: res.Dimensions})
		} else {
			s.logger.Warn("embedding failed, committing without vector", "user_id", userID, "error", err)
		}
	}

	theme := ""
	if rec.HasEmbeddings() {
		if matches, err := s.backend.VectorQuery(ctx, userID, rec.Embeddings, 1); err == nil && len(matches) > 0 {
			novelty = 1 - matches[0].Similarity
		}
		if cluster := s.assignCluster(userID, rec.Embeddings, rec.Text()); cluster != nil {
			rec.ClusterID = cluster.ID
			theme = cluster.Label
		}
	} else {
		theme = classifyTheme(rec.Text())
	}

	rec.SetImportance(importanceFor(rec.Success, s.riskOf(rec.ToolName), novelty))

	if err := s.backend.Put(ctx, rec); err != nil {
		if s.wal == nil {
			metrics.MemoryCommitsTotal.WithLabelValues("failed").Inc()
			return "", domain.NewDomainError(domain.ErrBackendUnavailable, err.Error())
		}
		if werr := s.wal.Enqueue(rec); werr != nil {
			metrics.MemoryCommitsTotal.WithLabelValues("failed").Inc()
			return "", domain.NewDomainError(domain.ErrBackendUnavailable, "backend and WAL both failed: "+werr.Error())
		}
		metrics.MemoryCommitsTotal.WithLabelValues("spooled").Inc()
		s.logger.Warn("backend unavailable, commit spooled", "record_id", rec.ID)
	} else {
		metrics.MemoryCommitsTotal.WithLabelValues("ok").Inc()
	}

	s.stateMu.Lock()
	profile, ok := s.profiles[userID]
	if !ok {
		profile = models.NewUserProfile(userID)
		s.profiles[userID] = profile
	}
	profile.Observe(rec, theme)
	s.stateMu.Unlock()

	return rec.ID, nil
}

// Recent returns the user's last k records, newest first.
func (s *Service) Recent(ctx context.Context, userID string, k int) ([]*models.MemoryRecord, error) {
	if k <= 0 {
		k = s.cfg.RecentK
	}
	records, err := s.backend.ListByUser(ctx, userID, k)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrBackendUnavailable, err.Error())
	}
	return records, nil
}

// Search embeds the query and returns up to k records above the similarity
// floor, best first.
func (s *Service) Search(ctx context.Context, userID, query string, k int) ([]models.ScoredRecord, error) {
	return s.searchAboveFloor(ctx, userID, query, k, s.cfg.SimilarityFloor)
}

func (s *Service) searchAboveFloor(ctx context.Context, userID, query string, k int, floor float64) ([]models.ScoredRecord, error) {
	if k <= 0 {
		k = s.cfg.SemanticK
	}
	if s.embedder == nil {
		return nil, domain.NewDomainError(domain.ErrMemorySearchFailed, "no embedding service configured")
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrEmbeddingsFailed, err.Error())
	}
	matches, err := s.backend.VectorQuery(ctx, userID, emb.Embedding, k)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrMemorySearchFailed, err.Error())
	}

	out := make([]models.ScoredRecord, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < floor {
			continue
		}
		rec, err := s.backend.GetByID(ctx, m.ID)
		if err != nil {
			continue
		}
		out = append(out, models.ScoredRecord{Record: rec, Similarity: m.Similarity})
	}
	return out, nil
}

// Forget removes records by id or by semantic match above the forget floor.
// Returns the number removed. Record ids are never reused or altered.
func (s *Service) Forget(ctx context.Context, userID, idOrQuery string) (int, error) {
	if idOrQuery == "" {
		return 0, domain.NewDomainError(domain.ErrInvalidInput, "id or query is required")
	}

	if strings.HasPrefix(idOrQuery, "mem_") {
		rec, err := s.backend.GetByID(ctx, idOrQuery)
		if err != nil {
			if errors.Is(err, domain.ErrMemoryNotFound) {
				return 0, nil
			}
			return 0, err
		}
		if rec.UserID != userID {
			return 0, nil
		}
		if err := s.backend.DeleteByID(ctx, idOrQuery); err != nil {
			return 0, err
		}
		s.invalidateState(userID)
		return 1, nil
	}

	matches, err := s.searchAboveFloor(ctx, userID, idOrQuery, 0, s.cfg.ForgetFloor)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := s.backend.DeleteByID(ctx, m.Record.ID); err != nil {
			continue
		}
		removed++
	}
	if removed > 0 {
		s.invalidateState(userID)
	}
	return removed, nil
}

func (s *Service) invalidateState(userID string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	delete(s.loaded, userID)
	delete(s.clusters, userID)
	delete(s.profiles, userID)
}

// Profile returns the per-user aggregate, rebuilding lazily when needed.
func (s *Service) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.ensureState(ctx, userID)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return models.NewUserProfile(userID), nil
	}
	clone := *profile
	return &clone, nil
}

// AssembleContext builds the bundle handed to the planner: recent turns,
// semantic hits, one theme exemplar per distinct cluster, and the profile
// summary, trimmed to the character budget. A failed vector query degrades
// to a recent-only bundle with Degraded set.
func (s *Service) AssembleContext(ctx context.Context, userID, query string, budget int) (*models.ContextBundle, error) {
	if budget <= 0 {
		budget = s.cfg.ContextBudgetChars
	}
	s.ensureState(ctx, userID)

	bundle := &models.ContextBundle{UserID: userID, Query: query}

	recent, err := s.backend.ListByUser(ctx, userID, s.cfg.RecentK)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrBackendUnavailable, err.Error())
	}
	bundle.Recent = recent

	seen := make(map[string]bool, len(recent))
	for _, rec := range recent {
		seen[rec.ID] = true
	}

	semantic, err := s.Search(ctx, userID, query, s.cfg.SemanticK)
	if err != nil {
		bundle.Degraded = true
		s.logger.Warn("semantic retrieval degraded to recent-only", "user_id", userID, "error", err)
	} else {
		for _, m := range semantic {
			if seen[m.Record.ID] {
				continue
			}
			seen[m.Record.ID] = true
			bundle.Semantic = append(bundle.Semantic, m)
		}
	}

	bundle.Exemplars = s.exemplarsFor(userID, bundle)

	if profile, err := s.Profile(ctx, userID); err == nil && profile.TurnCount > 0 {
		bundle.Profile = profile
	}

	s.enforceBudget(bundle, budget)
	return bundle, nil
}

// exemplarsFor attaches the cluster label and the top record per distinct
// cluster among the selected records.
func (s *Service) exemplarsFor(userID string, bundle *models.ContextBundle) []models.ThemeExemplar {
	s.stateMu.Lock()
	labels := make(map[string]string, len(s.clusters[userID]))
	for _, c := range s.clusters[userID] {
		labels[c.ID] = c.Label
	}
	s.stateMu.Unlock()

	type best struct {
		rec   *models.MemoryRecord
		score float32
	}
	byCluster := make(map[string]best)
	order := []string{}

	consider := func(rec *models.MemoryRecord, score float32) {
		if rec.ClusterID == "" {
			return
		}
		cur, ok := byCluster[rec.ClusterID]
		if !ok {
			order = append(order, rec.ClusterID)
		}
		if !ok || score > cur.score {
			byCluster[rec.ClusterID] = best{rec: rec, score: score}
		}
	}
	for _, rec := range bundle.Recent {
		consider(rec, rec.Importance)
	}
	for _, m := range bundle.Semantic {
		consider(m.Record, float32(m.Similarity))
	}

	out := make([]models.ThemeExemplar, 0, len(order))
	for _, clusterID := range order {
		label, ok := labels[clusterID]
		if !ok {
			label = models.ClusterOther
		}
		out = append(out, models.ThemeExemplar{Label: label, Record: byCluster[clusterID].rec})
	}
	return out
}

// pinnedTrimChars bounds how much of a pinned record's text stays rendered
// once everything droppable is gone.
const pinnedTrimChars = 80

// enforceBudget drops lowest-importance semantic hits first, then oldest
// recent turns. Pinned records are never dropped; once only pinned records
// remain their rendered text is shortened instead. The newest two turns and
// the profile summary always stay.
func (s *Service) enforceBudget(bundle *models.ContextBundle, budget int) {
	for len(RenderBundle(bundle)) > budget {
		if i := lowestUnpinned(bundle.Semantic); i >= 0 {
			bundle.Semantic = append(bundle.Semantic[:i], bundle.Semantic[i+1:]...)
			continue
		}
		if len(bundle.Exemplars) > 0 {
			bundle.Exemplars = bundle.Exemplars[:len(bundle.Exemplars)-1]
			continue
		}
		if len(bundle.Recent) > 2 {
			// Recent is newest first; drop the oldest
			bundle.Recent = bundle.Recent[:len(bundle.Recent)-1]
			continue
		}
		if !trimPinned(bundle) {
			return
		}
	}
}

// lowestUnpinned returns the index of the least important unpinned semantic
// hit, or -1 when every remaining hit is pinned.
func lowestUnpinned(semantic []models.ScoredRecord) int {
	idx := -1
	for i, m := range semantic {
		if m.Record.Pinned {
			continue
		}
		if idx < 0 || m.Record.Importance < semantic[idx].Record.Importance {
			idx = i
		}
	}
	return idx
}

// trimPinned shortens pinned records on private copies so the stored records
// stay intact. Returns false once nothing further can be shortened.
func trimPinned(bundle *models.ContextBundle) bool {
	trimmed := false
	for i, m := range bundle.Semantic {
		if !m.Record.Pinned {
			continue
		}
		if len(m.Record.Utterance) <= pinnedTrimChars && len(m.Record.Reply) <= pinnedTrimChars {
			continue
		}
		cp := *m.Record
		cp.Utterance = clip(cp.Utterance, pinnedTrimChars)
		cp.Reply = clip(cp.Reply, pinnedTrimChars)
		bundle.Semantic[i].Record = &cp
		trimmed = true
	}
	return trimmed
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
