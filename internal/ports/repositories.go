package ports

import (
	"context"

	"github.com/longregen/cogito/internal/domain/models"
)

// VectorMatch is one nearest-neighbor hit from a MemoryBackend.
type VectorMatch struct {
	ID         string
	Similarity float64
}

// MemoryBackend is the capability set a concrete store must provide to back
// the memory service. The service layer owns importance, clustering, and
// context assembly; backends own storage and nearest-neighbor search.
// Implementations must be safe for concurrent use.
type MemoryBackend interface {
	Put(ctx context.Context, record *models.MemoryRecord) error
	GetByID(ctx context.Context, id string) (*models.MemoryRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryRecord, error)
	VectorQuery(ctx context.Context, userID string, vector []float32, k int) ([]VectorMatch, error)
	DeleteByID(ctx context.Context, id string) error
}

// TurnRepository persists completed turns for audit and replay.
type TurnRepository interface {
	Save(ctx context.Context, turn *models.Turn) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Turn, error)
}

// IDGenerator generates unique identifiers for domain entities
type IDGenerator interface {
	GenerateTurnID() string
	GenerateMemoryID() string
	GenerateClusterID() string
	GeneratePlanID() string
	GenerateCitationID() string
	GenerateAuditID() string
	GenerateConfirmationToken() string
}
