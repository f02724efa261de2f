package models

import (
	"time"
)

// EmbeddingsInfo contains metadata about how embeddings were generated
type EmbeddingsInfo struct {
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	Version    string `json:"version,omitempty"`
}

// MemoryRecord is one committed experience for a user. Records are never
// mutated after commit; forget removes them wholesale.
type MemoryRecord struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Utterance      string          `json:"utterance"`
	Reply          string          `json:"reply"`
	ToolName       string          `json:"tool_name"`
	Success        bool            `json:"success"`
	Embeddings     []float32       `json:"embeddings,omitempty"`
	EmbeddingsInfo *EmbeddingsInfo `json:"embeddings_info,omitempty"`
	ClusterID      string          `json:"cluster_id,omitempty"`
	Importance     float32         `json:"importance"`
	Pinned         bool            `json:"pinned"`
	CreatedAt      time.Time       `json:"created_at"`
}

func NewMemoryRecord(id, userID, utterance, reply string) *MemoryRecord {
	return &MemoryRecord{
		ID:         id,
		UserID:     userID,
		Utterance:  utterance,
		Reply:      reply,
		Importance: 0.2,
		CreatedAt:  time.Now(),
	}
}

// SetImportance sets the importance score (0-1)
func (m *MemoryRecord) SetImportance(importance float32) {
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}
	m.Importance = importance
}

func (m *MemoryRecord) SetEmbeddings(embeddings []float32, info *EmbeddingsInfo) {
	m.Embeddings = embeddings
	m.EmbeddingsInfo = info
}

func (m *MemoryRecord) HasEmbeddings() bool {
	return len(m.Embeddings) > 0
}

// Text renders the record for embedding and context assembly.
func (m *MemoryRecord) Text() string {
	if m.Reply == "" {
		return m.Utterance
	}
	return m.Utterance + "\n" + m.Reply
}

// Cluster taxonomy labels. Fixed at build time; new clusters pick the
// nearest prototype, falling back to "other".
const (
	ClusterTime        = "time"
	ClusterWeather     = "weather"
	ClusterProgramming = "programming"
	ClusterMemory      = "memory"
	ClusterPersonal    = "personal"
	ClusterResearch    = "research"
	ClusterOps         = "ops"
	ClusterOther       = "other"
)

// ClusterLabels lists the fixed taxonomy in a stable order.
var ClusterLabels = []string{
	ClusterTime, ClusterWeather, ClusterProgramming, ClusterMemory,
	ClusterPersonal, ClusterResearch, ClusterOps, ClusterOther,
}

// MemoryCluster groups a user's records around a running-mean centroid.
type MemoryCluster struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	Centroid  []float32 `json:"centroid,omitempty"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Absorb folds one embedding into the running-mean centroid.
func (c *MemoryCluster) Absorb(embedding []float32) {
	if len(c.Centroid) != len(embedding) {
		c.Centroid = append([]float32(nil), embedding...)
		c.Size = 1
		c.UpdatedAt = time.Now()
		return
	}
	n := float32(c.Size)
	for i := range c.Centroid {
		c.Centroid[i] = (c.Centroid[i]*n + embedding[i]) / (n + 1)
	}
	c.Size++
	c.UpdatedAt = time.Now()
}

// UserProfile is a per-user aggregate derived from committed records.
type UserProfile struct {
	UserID        string         `json:"user_id"`
	ThemeCounts   map[string]int `json:"theme_counts"`
	ToolHistogram map[string]int `json:"tool_histogram"`
	TurnCount     int            `json:"turn_count"`
	SuccessCount  int            `json:"success_count"`
	FirstSeen     time.Time      `json:"first_seen"`
	LastSeen      time.Time      `json:"last_seen"`
}

func NewUserProfile(userID string) *UserProfile {
	now := time.Now()
	return &UserProfile{
		UserID:        userID,
		ThemeCounts:   make(map[string]int),
		ToolHistogram: make(map[string]int),
		FirstSeen:     now,
		LastSeen:      now,
	}
}

// Observe updates the profile counters for one committed record.
func (p *UserProfile) Observe(rec *MemoryRecord, theme string) {
	p.TurnCount++
	if rec.Success {
		p.SuccessCount++
	}
	if rec.ToolName != "" {
		p.ToolHistogram[rec.ToolName]++
	}
	if theme != "" {
		p.ThemeCounts[theme]++
	}
	p.LastSeen = time.Now()
}

// SuccessRate returns the running success rate in [0,1].
func (p *UserProfile) SuccessRate() float64 {
	if p.TurnCount == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.TurnCount)
}

// TopThemes returns up to n dominant theme labels by count.
func (p *UserProfile) TopThemes(n int) []string {
	return topKeys(p.ThemeCounts, n)
}

// TopTools returns up to n most-used tool names by count.
func (p *UserProfile) TopTools(n int) []string {
	return topKeys(p.ToolHistogram, n)
}

func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// insertion sort by count desc, key asc for determinism
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0; j-- {
			a, b := keys[j-1], keys[j]
			if counts[b] > counts[a] || (counts[b] == counts[a] && b < a) {
				keys[j-1], keys[j] = b, a
			} else {
				break
			}
		}
	}
	if n < len(keys) {
		keys = keys[:n]
	}
	return keys
}

// ScoredRecord pairs a record with its query similarity in [0,1].
type ScoredRecord struct {
	Record     *MemoryRecord `json:"record"`
	Similarity float64       `json:"similarity"`
}

// ThemeExemplar is the top record of one cluster attached to a context
// bundle as a theme anchor.
type ThemeExemplar struct {
	Label  string        `json:"label"`
	Record *MemoryRecord `json:"record"`
}

// ContextBundle is the assembled context handed to the planner.
type ContextBundle struct {
	UserID    string          `json:"user_id"`
	Query     string          `json:"query"`
	Recent    []*MemoryRecord `json:"recent,omitempty"`
	Semantic  []ScoredRecord  `json:"semantic,omitempty"`
	Exemplars []ThemeExemplar `json:"exemplars,omitempty"`
	Profile   *UserProfile    `json:"profile,omitempty"`
	Degraded  bool            `json:"degraded,omitempty"`
}
