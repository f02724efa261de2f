package memstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

// Backend is an in-process MemoryBackend with linear-scan nearest-neighbor.
// Suitable for small deployments and tests; the postgres backend covers the
// rest.
type Backend struct {
	mu      sync.RWMutex
	records map[string]*models.MemoryRecord
	byUser  map[string][]string
}

func New() *Backend {
	return &Backend{
		records: make(map[string]*models.MemoryRecord),
		byUser:  make(map[string][]string),
	}
}

func (b *Backend) Put(ctx context.Context, record *models.MemoryRecord) error {
	if record.ID == "" || record.UserID == "" {
		return domain.NewDomainError(domain.ErrInvalidInput, "record requires id and user_id")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.records[record.ID]; !exists {
		b.byUser[record.UserID] = append(b.byUser[record.UserID], record.ID)
	}
	clone := *record
	b.records[record.ID] = &clone
	return nil
}

func (b *Backend) GetByID(ctx context.Context, id string) (*models.MemoryRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrMemoryNotFound, id)
	}
	clone := *rec
	return &clone, nil
}

// ListByUser returns the user's records newest first. limit <= 0 means all.
func (b *Backend) ListByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.byUser[userID]
	out := make([]*models.MemoryRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		rec, ok := b.records[ids[i]]
		if !ok {
			continue
		}
		clone := *rec
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (b *Backend) VectorQuery(ctx context.Context, userID string, vector []float32, k int) ([]ports.VectorMatch, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	matches := make([]ports.VectorMatch, 0, len(b.byUser[userID]))
	for _, id := range b.byUser[userID] {
		rec, ok := b.records[id]
		if !ok || !rec.HasEmbeddings() {
			continue
		}
		sim := CosineSimilarity(vector, rec.Embeddings)
		matches = append(matches, ports.VectorMatch{ID: id, Similarity: sim})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (b *Backend) DeleteByID(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok {
		return domain.NewDomainError(domain.ErrMemoryNotFound, id)
	}
	delete(b.records, id)
	ids := b.byUser[rec.UserID]
	for i, rid := range ids {
		if rid == id {
			b.byUser[rec.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// CosineSimilarity returns cosine similarity clamped to [0,1], matching the
// 1 - cosine_distance convention of the postgres backend.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
