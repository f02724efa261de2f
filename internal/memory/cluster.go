package memory

import (
	"strings"

	"github.com/longregen/cogito/internal/adapters/memstore"
	"github.com/longregen/cogito/internal/domain/models"
)

// themePrototypes maps each taxonomy label to its keyword prototype. A new
// cluster takes the label whose prototype overlaps the seed text most,
// falling back to "other".
var themePrototypes = map[string][]string{
	models.ClusterTime:        {"time", "date", "clock", "today", "tomorrow", "schedule", "calendar", "hour", "minute"},
	models.ClusterWeather:     {"weather", "temperature", "rain", "snow", "sunny", "cloudy", "forecast", "wind", "humid"},
	models.ClusterProgramming: {"code", "program", "function", "debug", "compile", "python", "golang", "script", "bug", "error"},
	models.ClusterMemory:      {"remember", "recall", "forget", "memory", "remind", "note", "stored"},
	models.ClusterPersonal:    {"name", "family", "friend", "home", "work", "job", "hobby", "favorite", "birthday", "i am", "my"},
	models.ClusterResearch:    {"search", "research", "find", "article", "paper", "web", "lookup", "source", "cite"},
	models.ClusterOps:         {"file", "directory", "system", "install", "run", "process", "disk", "server", "deploy"},
}

// classifyTheme picks the taxonomy label for a seed text by keyword overlap.
func classifyTheme(text string) string {
	lower := strings.ToLower(text)
	best := models.ClusterOther
	bestHits := 0
	for _, label := range models.ClusterLabels {
		protos, ok := themePrototypes[label]
		if !ok {
			continue
		}
		hits := 0
		for _, kw := range protos {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = label
		}
	}
	return best
}

// assignCluster finds the nearest centroid among the user's clusters; joins
// it when similarity clears the join threshold, otherwise opens a new
// cluster labeled from the fixed taxonomy. Returns the cluster the record
// now belongs to.
func (s *Service) assignCluster(userID string, embedding []float32, seedText string) *models.MemoryCluster {
	if len(embedding) == 0 {
		return nil
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	var best *models.MemoryCluster
	bestSim := -1.0
	for _, c := range s.clusters[userID] {
		sim := memstore.CosineSimilarity(embedding, c.Centroid)
		if sim > bestSim {
			bestSim = sim
			best = c
		}
	}

	if best != nil && bestSim >= s.cfg.ClusterJoinThreshold {
		best.Absorb(embedding)
		return best
	}

	cluster := &models.MemoryCluster{
		ID:       s.ids.GenerateClusterID(),
		UserID:   userID,
		Label:    classifyTheme(seedText),
		Centroid: append([]float32(nil), embedding...),
		Size:     1,
	}
	s.clusters[userID] = append(s.clusters[userID], cluster)
	return cluster
}

// loadClusterState lazily rebuilds centroids and the profile from committed
// records, grouping by the cluster id stored on each record. Called under
// stateMu by ensureState.
func (s *Service) rebuildClusterState(userID string, records []*models.MemoryRecord) {
	byCluster := make(map[string][]*models.MemoryRecord)
	profile := models.NewUserProfile(userID)

	for i := len(records) - 1; i >= 0; i-- { // oldest first
		rec := records[i]
		if rec.ClusterID != "" {
			byCluster[rec.ClusterID] = append(byCluster[rec.ClusterID], rec)
		}
	}

	clusters := make([]*models.MemoryCluster, 0, len(byCluster))
	labels := make(map[string]string, len(byCluster))
	for clusterID, members := range byCluster {
		var centroid []float32
		n := 0
		label := ""
		for _, rec := range members {
			if !rec.HasEmbeddings() {
				continue
			}
			if centroid == nil {
				centroid = make([]float32, len(rec.Embeddings))
				label = classifyTheme(rec.Text())
			}
			for j := range centroid {
				centroid[j] += rec.Embeddings[j]
			}
			n++
		}
		if n == 0 {
			continue
		}
		for j := range centroid {
			centroid[j] /= float32(n)
		}
		clusters = append(clusters, &models.MemoryCluster{
			ID:       clusterID,
			UserID:   userID,
			Label:    label,
			Centroid: centroid,
			Size:     n,
		})
		labels[clusterID] = label
	}

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		profile.Observe(rec, labels[rec.ClusterID])
		if profile.FirstSeen.After(rec.CreatedAt) {
			profile.FirstSeen = rec.CreatedAt
		}
	}

	s.clusters[userID] = clusters
	s.profiles[userID] = profile
}
